package litua

// Version is the litua release version.
const Version = "1.2.0"

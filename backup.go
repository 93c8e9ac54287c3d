package litua

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/klauspost/compress/gzip"
)

// BackupManager is a helper struct to manage backups of output files
//
// An existing output file is copied aside gzip-compressed before it is
// overwritten, so a mistaken run does not destroy a previous result.
type BackupManager struct {
	path string
}

func NewBackupManager(path string) *BackupManager {
	return &BackupManager{
		path: path,
	}
}

// CreateBackup creates a compressed backup of the output file if it already
// exists
//
// Returns the path to the backup file, or an empty string if no backup was
// created
func (bm *BackupManager) CreateBackup() (backupPath string, err error) {
	if _, err := os.Stat(bm.path); os.IsNotExist(err) {
		return "", nil
	} else if err != nil {
		return "", fmt.Errorf("checking file existence: %w", err)
	}

	backupPath = fmt.Sprintf("%s.%s.bak.gz", bm.path, time.Now().Format("20060102_150405"))

	if err := bm.compressFile(bm.path, backupPath); err != nil {
		return "", fmt.Errorf("creating backup: %w", err)
	}

	slog.Info("output file already existed. Created a backup.", "backup", backupPath, "output", bm.path)
	return backupPath, nil
}

func (bm *BackupManager) compressFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("opening source file: %w", err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("creating destination file: %w", err)
	}
	defer out.Close()

	zw := gzip.NewWriter(out)
	if _, err := io.Copy(zw, in); err != nil {
		return fmt.Errorf("compressing file: %w", err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("flushing compressed backup: %w", err)
	}

	return nil
}

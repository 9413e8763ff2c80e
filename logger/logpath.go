// logger/logpath.go
package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// EnsureLogFilePath prepares logPath for use as a zap output path.
// An existing file is used as is. A directory, or a path that does not exist yet
// and has no extension, gets a timestamped "fhir-client_<time>.log" file inside it.
// Parent directories are created as needed.
func EnsureLogFilePath(logPath string) (string, error) {
	info, err := os.Stat(logPath)
	switch {
	case err == nil && !info.IsDir():
		return logPath, nil
	case err == nil && info.IsDir(), os.IsNotExist(err) && filepath.Ext(logPath) == "":
		logPath = filepath.Join(logPath, timestampedLogName(time.Now()))
	case err != nil && !os.IsNotExist(err):
		return "", fmt.Errorf("checking log path %q: %w", logPath, err)
	}

	if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
		return "", fmt.Errorf("creating log directory: %w", err)
	}

	return logPath, nil
}

func timestampedLogName(now time.Time) string {
	return "fhir-client_" + now.Format("20060102_150405") + ".log"
}

package service

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// StartupErrorFileName is the file WriteStartupErrorFile writes under its directory.
const StartupErrorFileName = "startup-error.log"

// WriteStartupErrorFile records an error that happened before logging was
// initialized. Only the most recent error is kept. It returns the file path,
// or "" when the file could not be written.
func WriteStartupErrorFile(logDir string, err error) string {
	if mkErr := os.MkdirAll(logDir, 0755); mkErr != nil {
		return ""
	}

	path := filepath.Join(logDir, StartupErrorFileName)
	f, ferr := os.Create(path)
	if ferr != nil {
		return ""
	}
	defer f.Close()

	ts := time.Now().Format("2006-01-02 15:04:05")
	fmt.Fprintf(f, "[%s] telemetrychannel failed to start\n%v\n", ts, err)
	return path
}

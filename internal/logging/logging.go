package logging

import (
	"fmt"
	"path/filepath"
	"time"
)

// LogFilePath builds the log file path of one session.
func LogFilePath(logsDir, appName string, sessionStart time.Time) string {
	return filepath.Join(
		logsDir,
		fmt.Sprintf("%s.%s.log", appName, sessionStart.Format("20060102_150405")),
	)
}

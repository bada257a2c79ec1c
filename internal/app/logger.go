package app

import (
	"strings"

	"github.com/charlesng35/ftpstore/pkg/logger"
)

// ConfigureLogging installs the process logger from the log_level and log_format
// settings. Empty values mean info and JSON.
func ConfigureLogging(level, format string) error {
	return logger.Init(level, logger.Format(strings.TrimSpace(format)))
}

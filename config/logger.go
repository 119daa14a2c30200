package config

import (
	"io"
	"os"

	log "github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// NewLogger builds the process logger. Output goes to stdout and, when
// LOG_FILE is set, to a size-rotated file as well. The returned closer
// releases the file.
func NewLogger(cfg Config) (*log.Logger, io.Closer) {
	logger := log.New()
	logger.SetFormatter(&log.JSONFormatter{})
	logger.SetLevel(log.InfoLevel)
	if cfg.Debug {
		logger.SetLevel(log.DebugLevel)
	}

	if cfg.LogFile == "" {
		logger.SetOutput(os.Stdout)
		return logger, io.NopCloser(nil)
	}
	file := &lumberjack.Logger{
		Filename:   cfg.LogFile,
		MaxSize:    cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
		MaxAge:     cfg.LogMaxAgeDays,
		Compress:   true,
	}
	logger.SetOutput(io.MultiWriter(os.Stdout, file))
	return logger, file
}

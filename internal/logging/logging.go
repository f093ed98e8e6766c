// Package logging configures logrus for the server and its HTTP router.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options mirror the logging section of the configuration file
type Options struct {
	Level      string
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// New builds a logger writing to a rotated file, or stdout when no file is set
func New(opts Options) *log.Logger {
	logger := log.New()

	var out io.Writer = os.Stdout
	if opts.File != "" {
		out = &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    opts.MaxSizeMB, // megabytes
			MaxBackups: opts.MaxBackups,
			MaxAge:     opts.MaxAgeDays, // days
			Compress:   opts.Compress,
		}
	}
	logger.SetOutput(out)

	level, err := log.ParseLevel(opts.Level)
	if err != nil {
		level = log.InfoLevel
		logger.WithField("level", opts.Level).Warn("Unknown logging level, using info")
	}
	logger.SetLevel(level)

	logger.SetFormatter(&log.TextFormatter{
		PadLevelText:    true,
		DisableColors:   opts.File != "",
		FullTimestamp:   true,
		TimestampFormat: time.DateTime,
	})
	return logger
}

// Component returns an entry tagged with the component name
func Component(logger *log.Logger, name string) *log.Entry {
	return logger.WithField("component", name)
}

// GinMiddleware logs each request through logrus instead of gin's default writer
func GinMiddleware(logger *log.Logger) gin.HandlerFunc {
	entry := Component(logger, "http")
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := log.Fields{
			"method":    c.Request.Method,
			"path":      c.FullPath(),
			"status":    c.Writer.Status(),
			"latency":   time.Since(start).String(),
			"client":    c.ClientIP(),
			"outlet_id": c.GetHeader("X-Outlet-ID"),
		}
		e := entry.WithFields(fields)
		switch {
		case c.Writer.Status() >= 500:
			e.Error("Request failed")
		case c.Writer.Status() >= 400:
			e.Warn("Request rejected")
		default:
			e.Debug("Request served")
		}
	}
}

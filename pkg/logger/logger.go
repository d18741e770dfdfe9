package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type LoggerConfig struct {
	Debug bool
}

// NewLogger returns a JSON production logger, or a console development logger when debug is enabled.
func NewLogger(cfg *LoggerConfig) (*zap.Logger, error) {
	var c zap.Config
	if cfg.Debug {
		c = zap.NewDevelopmentConfig()
		c.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		c = zap.NewProductionConfig()
		c.EncoderConfig.TimeKey = "time"
		c.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	return c.Build()
}

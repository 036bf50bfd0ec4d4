package logger

import (
	"fmt"

	"tweet-sentiment-trader-go/internal/config"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger creates a new zap.Logger from the logger section of the configuration.
// "json" selects the production encoder, anything else the console encoder.
func NewLogger(cfg config.Logger) (*zap.Logger, error) {
	logLevel, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}

	var zcfg zap.Config
	if cfg.Format == "json" {
		zcfg = zap.NewProductionConfig()
	} else {
		zcfg = zap.NewDevelopmentConfig()
	}

	zcfg.Level = zap.NewAtomicLevelAt(logLevel)
	zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	// Reports go to stdout, so logs default to stderr.
	zcfg.OutputPaths = []string{"stderr"}
	if len(cfg.Outputs) > 0 {
		zcfg.OutputPaths = cfg.Outputs
	}

	return zcfg.Build()
}

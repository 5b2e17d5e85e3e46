package log

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/term"
)

// Options tunes NewLogger beyond what the environment implies.
type Options struct {
	// Level overrides the environment's default level ("debug", "warn", ...).
	Level string
	// Color forces colored console levels on or off. When nil, levels are
	// colored only if stderr is a terminal.
	Color *bool
}

// NewLogger returns a JSON logger at info level for production and a console
// logger at debug level for every other environment.
func NewLogger(env string, opts Options) (*zap.Logger, error) {
	var config zap.Config

	if env == "production" {
		config = zap.NewProductionConfig()
		config.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	} else {
		config = zap.NewDevelopmentConfig()
		config.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
		if useColor(opts, stderrIsTerminal) {
			config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		} else {
			config.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
		}
	}

	if opts.Level != "" {
		level, err := zapcore.ParseLevel(opts.Level)
		if err != nil {
			return nil, fmt.Errorf("log level: %w", err)
		}
		config.Level = zap.NewAtomicLevelAt(level)
	}

	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.RFC3339TimeEncoder

	return config.Build()
}

func NewSugar(env string, opts Options) (*zap.SugaredLogger, error) {
	logger, err := NewLogger(env, opts)
	if err != nil {
		return nil, err
	}
	return logger.Sugar(), nil
}

func useColor(opts Options, isTerminal func() bool) bool {
	if opts.Color != nil {
		return *opts.Color
	}
	return isTerminal()
}

// Console logs go to stderr.
func stderrIsTerminal() bool {
	return term.IsTerminal(int(os.Stderr.Fd()))
}

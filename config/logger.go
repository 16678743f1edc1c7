package config

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type LoggerConfig struct {
	Level       string `yaml:"level"`
	Destination string `yaml:"destination,omitempty"`
	Mode        string `yaml:"mode,omitempty"`
}

type LoggingConfig struct {
	FileLogger    LoggerConfig `yaml:"file"`
	ConsoleLogger LoggerConfig `yaml:"console"`
}

// Prepare returns our standard logger: informational messages go to stdout,
// errors to stderr and, when requested, everything to a file.
func (conf *LoggingConfig) Prepare() (*zap.Logger, error) {
	ec := zap.NewDevelopmentEncoderConfig()
	ec.EncodeCaller = nil
	ec.EncodeLevel = zapcore.CapitalLevelEncoder
	consoleEncoder := zapcore.NewConsoleEncoder(ec)

	highPriority := zap.LevelEnablerFunc(func(lvl zapcore.Level) bool {
		return lvl >= zapcore.ErrorLevel
	})

	var consoleCoreHP, consoleCoreLP zapcore.Core
	switch conf.ConsoleLogger.Level {
	case "normal":
		consoleCoreLP = zapcore.NewCore(consoleEncoder, zapcore.Lock(os.Stdout),
			zap.LevelEnablerFunc(func(lvl zapcore.Level) bool {
				return zapcore.InfoLevel <= lvl && lvl < zapcore.ErrorLevel
			}))
		consoleCoreHP = zapcore.NewCore(consoleEncoder, zapcore.Lock(os.Stderr), highPriority)
	case "debug":
		consoleCoreLP = zapcore.NewCore(consoleEncoder, zapcore.Lock(os.Stdout),
			zap.LevelEnablerFunc(func(lvl zapcore.Level) bool {
				return zapcore.DebugLevel <= lvl && lvl < zapcore.ErrorLevel
			}))
		consoleCoreHP = zapcore.NewCore(consoleEncoder, zapcore.Lock(os.Stderr), highPriority)
	default:
		consoleCoreLP = zapcore.NewNopCore()
		consoleCoreHP = zapcore.NewNopCore()
	}

	fileCore := zapcore.NewNopCore()
	var level zapcore.Level
	switch conf.FileLogger.Level {
	case "debug":
		level = zapcore.DebugLevel
	case "normal":
		level = zapcore.InfoLevel
	default:
		return zap.New(zapcore.NewTee(consoleCoreHP, consoleCoreLP)), nil
	}
	if conf.FileLogger.Destination == "" {
		return nil, fmt.Errorf("file logger requested without destination")
	}
	flags := os.O_CREATE | os.O_WRONLY
	if conf.FileLogger.Mode == "append" {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}
	f, err := os.OpenFile(conf.FileLogger.Destination, flags, 0644)
	if err != nil {
		return nil, fmt.Errorf("unable to access file log destination (%s): %w", conf.FileLogger.Destination, err)
	}
	fileCore = zapcore.NewCore(zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig()), zapcore.Lock(f), zap.NewAtomicLevelAt(level))

	return zap.New(zapcore.NewTee(consoleCoreHP, consoleCoreLP, fileCore)), nil
}

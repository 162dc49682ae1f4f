// Package logging initializes the zap logging subsystem shared by
// softnet binaries.
package logging

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"
)

// Config is the configuration for the logging subsystem.
type Config struct {
	// Level is the logging level.
	Level Level `yaml:"level"`
}

// Level is a YAML-friendly wrapper over zapcore.Level. The zero value
// is the info level.
type Level struct {
	zapcore.Level
}

// UnmarshalYAML decodes textual levels ("debug", "info", ...), which
// yaml.v3 does not route through encoding.TextUnmarshaler on its own.
func (m *Level) UnmarshalYAML(value *yaml.Node) error {
	var text string
	if err := value.Decode(&text); err != nil {
		return err
	}

	if err := m.Level.UnmarshalText([]byte(text)); err != nil {
		return fmt.Errorf("failed to parse logging level: %w", err)
	}
	return nil
}

// Init initializes the logging subsystem.
//
// Output goes to stderr using the console encoder, with colored levels
// when stderr is a terminal. The returned atomic level can be used to
// change verbosity at runtime.
func Init(cfg *Config) (*zap.SugaredLogger, zap.AtomicLevel, error) {
	encoderConfig := zap.NewDevelopmentEncoderConfig()
	encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	if term.IsTerminal(int(os.Stderr.Fd())) {
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	level := zap.NewAtomicLevelAt(cfg.Level.Level)
	config := zap.Config{
		Level:            level,
		Encoding:         "console",
		EncoderConfig:    encoderConfig,
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	}

	logger, err := config.Build()
	if err != nil {
		return nil, zap.AtomicLevel{}, fmt.Errorf("failed to initialize logger: %w", err)
	}

	return logger.Sugar(), level, nil
}

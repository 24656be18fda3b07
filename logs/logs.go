package logs

import (
	"os"
	"path/filepath"

	"github.com/mitchellh/go-homedir"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// CacheDir is the directory the log file is kept in, ~/.octopipe.
func CacheDir() (string, error) {
	dir, err := homedir.Dir()
	if err != nil {
		return "", errors.Wrap(err, "couldn't get user home directory")
	}
	return filepath.Join(dir, ".octopipe"), nil
}

// New builds the logger at the given level.
// A file logger writes JSON lines to logs.txt in the cache directory, otherwise a console logger writes to stderr.
func New(level string, toFile bool) (*zap.Logger, error) {
	atomicLevel, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid log level %s", level)
	}
	if !toFile {
		cfg := zap.NewDevelopmentConfig()
		cfg.Level = atomicLevel
		cfg.DisableStacktrace = true
		return cfg.Build()
	}

	dir, err := CacheDir()
	if err != nil {
		return nil, err
	}
	return NewFileLogger(filepath.Join(dir, "logs.txt"), atomicLevel.Level())
}

// NewFileLogger writes JSON lines to the given file, truncating it first.
func NewFileLogger(path string, level zapcore.Level) (*zap.Logger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, errors.Wrap(err, "couldn't create log directory")
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, errors.Wrap(err, "couldn't create logs file")
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig), zapcore.Lock(f), level)
	return zap.New(core, zap.ErrorOutput(zapcore.Lock(os.Stderr))), nil
}

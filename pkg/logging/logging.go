package logging

import (
	"fmt"

	"github.com/Gobusters/ectologger"
	"github.com/Gobusters/ectologger/zapadapter"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/vicc-go/disease-normalizer/config"
)

// New builds the application logger from config. Zap handles encoding
// and level filtering; the ecto adapter provides the structured API the
// rest of the service uses.
func New(cfg config.Config) (ectologger.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.LogLevel, err)
	}

	zapCfg := zap.NewProductionConfig()
	if cfg.PrettyLogs {
		zapCfg = zap.NewDevelopmentConfig()
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)
	zapCfg.InitialFields = map[string]any{
		"app": cfg.AppName,
	}

	zl, err := zapCfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build zap logger: %w", err)
	}

	return zapadapter.NewZapEctoLogger(zl, nil), nil
}

package observability

import (
	"os"

	"github.com/storefront-api/internal/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// NewLogger builds the process logger: JSON in production, console in
// development, and a rotating file sink when LOG_FILE is set.
func NewLogger(cfg *config.Config) (*zap.Logger, error) {
	encCfg := zap.NewProductionEncoderConfig()
	if !cfg.IsProduction() {
		encCfg = zap.NewDevelopmentEncoderConfig()
	}
	encCfg.TimeKey = "timestamp"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encCfg.EncodeCaller = zapcore.ShortCallerEncoder

	var encoder zapcore.Encoder
	if cfg.IsProduction() {
		encoder = zapcore.NewJSONEncoder(encCfg)
	} else {
		encoder = zapcore.NewConsoleEncoder(encCfg)
	}

	level := zap.NewAtomicLevelAt(zap.InfoLevel)
	if cfg.LogLevel != "" {
		if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
			return nil, err
		}
	}

	cores := []zapcore.Core{zapcore.NewCore(encoder, zapcore.AddSync(os.Stdout), level)}
	if cfg.LogFile != "" {
		fileWriter := zapcore.AddSync(&lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    10, // MB
			MaxBackups: 7,
			MaxAge:     28, // days
			Compress:   true,
		})
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), fileWriter, level))
	}

	return zap.New(zapcore.NewTee(cores...),
		zap.AddCaller(),
		zap.Fields(zap.String("service", "storefront-api"), zap.String("env", cfg.AppEnv)),
	), nil
}

package middleware

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// InitLogger builds the process logger. It writes JSON to stdout and to a
// rotating app.log in logDir.
func InitLogger(level, logDir string) (*zap.Logger, error) {
	// Get absolute path for log directory
	absLogDir, err := filepath.Abs(logDir)
	if err != nil {
		absLogDir = logDir
	}

	// Create logs directory if not exists
	if err := os.MkdirAll(absLogDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory %s: %w", absLogDir, err)
	}

	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	appLogFile := &lumberjack.Logger{
		Filename:   filepath.Join(absLogDir, "app.log"),
		MaxSize:    10, // 10 MB
		MaxBackups: 30, // Keep 30 old files
		MaxAge:     30, // 30 days
		Compress:   true,
		LocalTime:  true,
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "time"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderConfig),
		zapcore.NewMultiWriteSyncer(zapcore.AddSync(os.Stdout), zapcore.AddSync(appLogFile)),
		lvl,
	)
	logger := zap.New(core, zap.AddCaller())

	logger.Info("logger initialized", zap.String("dir", absLogDir), zap.String("level", lvl.String()))
	return logger, nil
}

// RequestLoggerMiddleware logs every request with its status and latency.
// Responses with status >= 400 are logged at error level.
func RequestLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()

		// Build full URL
		fullURL := c.Request.URL.Path
		if c.Request.URL.RawQuery != "" {
			fullURL = fullURL + "?" + c.Request.URL.RawQuery
		}

		// Process request
		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("url", fullURL),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(startTime)),
		}
		if userID := GetUserID(c); userID != 0 {
			fields = append(fields, zap.Uint("user_id", userID))
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}

		if c.Writer.Status() >= 400 {
			logger.Error("request", fields...)
		} else {
			logger.Info("request", fields...)
		}
	}
}

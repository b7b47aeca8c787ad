package router

import (
	"net/http"
	"time"

	"go.uber.org/zap"
)

// wireLogger adapts zap to httplogger for --debug request tracing.
type wireLogger struct {
	logger *zap.Logger
}

func newWireLogger(logger *zap.Logger) *wireLogger {
	return &wireLogger{logger: logger.Named("wire")}
}

func (l *wireLogger) LogRequest(req *http.Request) {
	fields := []zap.Field{
		zap.String("method", req.Method),
		zap.String("url", req.URL.String()),
	}
	for name, value := range req.Header {
		if name == "Authorization" {
			continue
		}
		fields = append(fields, zap.Strings("header."+name, value))
	}
	l.logger.Debug("request", fields...)
}

func (l *wireLogger) LogResponse(req *http.Request, res *http.Response, err error, duration time.Duration) {
	if err != nil {
		l.logger.Debug("request failed",
			zap.String("method", req.Method),
			zap.String("url", req.URL.String()),
			zap.Error(err),
		)
		return
	}
	l.logger.Debug("response",
		zap.String("method", req.Method),
		zap.String("url", req.URL.String()),
		zap.Int("status", res.StatusCode),
		zap.Duration("duration", duration),
	)
}

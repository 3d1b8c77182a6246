// Package observability provides OpenTelemetry tracing, metrics, and structured logging
// with trace correlation for the feedback service.
package observability

import (
	"context"
	"os"

	"feedbackapp/internal/config"
	contextutils "feedbackapp/internal/utils"

	"go.opentelemetry.io/contrib/bridges/otelzap"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type requestIDContextKey struct{}

// WithRequestID returns a context whose log lines carry the given request ID
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDContextKey{}, id)
}

// RequestIDFromContext returns the request ID stored by WithRequestID, if any
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(requestIDContextKey{}).(string)
	return id
}

// Logger wraps the zap logger with request and trace correlation
type Logger struct {
	*zap.Logger
}

// NewLogger creates an info-level logger
func NewLogger(cfg *config.OpenTelemetryConfig) *Logger {
	return NewLoggerWithLevel(cfg, zap.InfoLevel)
}

// NewLoggerWithLevel writes JSON to stdout and, when an endpoint is configured, tees every
// entry to the OTLP log exporter. A nil or logging-disabled config yields a no-op logger.
func NewLoggerWithLevel(cfg *config.OpenTelemetryConfig, level zapcore.Level) *Logger {
	if cfg == nil || !cfg.EnableLogging {
		return &Logger{Logger: zap.NewNop()}
	}

	zapLogger := consoleLogger(level).With(zap.String("service", cfg.ServiceName))
	if cfg.Endpoint == "" {
		return &Logger{Logger: zapLogger}
	}

	otelCore, err := otlpCore(cfg)
	if err != nil {
		zapLogger.Error("OTLP log export unavailable, using stdout only",
			zap.Error(err), zap.String("endpoint", cfg.Endpoint))
		return &Logger{Logger: zapLogger}
	}

	zapLogger = zap.New(zapcore.NewTee(zapLogger.Core(), otelCore))
	zapLogger.Info("OTLP log export configured", zap.String("endpoint", cfg.Endpoint))
	return &Logger{Logger: zapLogger}
}

func consoleLogger(level zapcore.Level) *zap.Logger {
	zapConfig := zap.NewProductionConfig()
	if os.Getenv("ENV") == "development" {
		zapConfig = zap.NewDevelopmentConfig()
	}
	zapConfig.Level = zap.NewAtomicLevelAt(level)
	zapConfig.EncoderConfig.TimeKey = "timestamp"
	zapConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	zapLogger, err := zapConfig.Build()
	if err != nil {
		return zap.NewExample()
	}
	return zapLogger
}

func otlpCore(cfg *config.OpenTelemetryConfig) (zapcore.Core, error) {
	res, err := resource.New(context.Background(),
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
		),
	)
	if err != nil {
		return nil, err
	}

	opts := []otlploggrpc.Option{otlploggrpc.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlploggrpc.WithInsecure())
	}
	exporter, err := otlploggrpc.New(context.Background(), opts...)
	if err != nil {
		return nil, err
	}

	provider := log.NewLoggerProvider(
		log.WithProcessor(log.NewBatchProcessor(exporter)),
		log.WithResource(res),
	)
	return otelzap.NewCore(cfg.ServiceName, otelzap.WithLoggerProvider(provider)), nil
}

// Debug logs a debug message with context
func (l *Logger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {
	l.write(ctx, zap.DebugLevel, msg, mergeFields(fields...))
}

// Info logs an info message with context
func (l *Logger) Info(ctx context.Context, msg string, fields ...map[string]interface{}) {
	l.write(ctx, zap.InfoLevel, msg, mergeFields(fields...))
}

// Warn logs a warning message with context
func (l *Logger) Warn(ctx context.Context, msg string, fields ...map[string]interface{}) {
	l.write(ctx, zap.WarnLevel, msg, mergeFields(fields...))
}

// Error logs err along with its application error code and severity
func (l *Logger) Error(ctx context.Context, msg string, err error, fields ...map[string]interface{}) {
	allFields := mergeFields(fields...)
	if err != nil {
		allFields["error"] = err.Error()
		allFields["error_code"] = string(contextutils.GetErrorCode(err))
		allFields["error_severity"] = string(contextutils.GetErrorSeverity(err))
	}
	l.write(ctx, zap.ErrorLevel, msg, allFields)
}

func (l *Logger) write(ctx context.Context, level zapcore.Level, msg string, fields map[string]interface{}) {
	if ce := l.Logger.Check(level, msg); ce != nil {
		ce.Write(correlationFields(ctx, fields)...)
	}
}

// correlationFields converts fields and adds request_id, trace_id and span_id when ctx has them.
// Caller-supplied keys win over the correlation keys.
func correlationFields(ctx context.Context, fields map[string]interface{}) []zap.Field {
	zapFields := make([]zap.Field, 0, len(fields)+3)
	if ctx != nil {
		if id := RequestIDFromContext(ctx); id != "" {
			if _, set := fields["request_id"]; !set {
				zapFields = append(zapFields, zap.String("request_id", id))
			}
		}
		if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
			zapFields = append(zapFields,
				zap.String("trace_id", sc.TraceID().String()),
				zap.String("span_id", sc.SpanID().String()),
			)
		}
	}
	for k, v := range fields {
		zapFields = append(zapFields, zap.Any(k, v))
	}
	return zapFields
}

// mergeFields flattens field maps into a fresh map; later maps override earlier ones
func mergeFields(fields ...map[string]interface{}) map[string]interface{} {
	merged := make(map[string]interface{})
	for _, fieldMap := range fields {
		for k, v := range fieldMap {
			merged[k] = v
		}
	}
	return merged
}

// Sync flushes any buffered log entries
func (l *Logger) Sync() error {
	return l.Logger.Sync()
}

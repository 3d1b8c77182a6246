package observability

import (
	"context"
	"errors"
	"testing"

	contextutils "feedbackapp/internal/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func finishedSpan(t *testing.T, err error) sdktrace.ReadOnlySpan {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	tracer := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder)).Tracer("test")

	_, span := tracer.Start(context.Background(), "op")
	FinishSpan(span, &err)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	return spans[0]
}

func spanAttr(span sdktrace.ReadOnlySpan, key string) (attribute.Value, bool) {
	for _, kv := range span.Attributes() {
		if string(kv.Key) == key {
			return kv.Value, true
		}
	}
	return attribute.Value{}, false
}

func TestFinishSpan_Success(t *testing.T) {
	span := finishedSpan(t, nil)

	assert.Equal(t, codes.Unset, span.Status().Code)
	_, ok := spanAttr(span, "error.code")
	assert.False(t, ok)
}

func TestFinishSpan_AppError(t *testing.T) {
	span := finishedSpan(t, contextutils.WrapError(contextutils.ErrStorageWriteFailed, "append failed"))

	assert.Equal(t, codes.Error, span.Status().Code)
	code, ok := spanAttr(span, "error.code")
	require.True(t, ok)
	assert.Equal(t, string(contextutils.ErrorCodeStorageWriteFailed), code.AsString())
	severity, ok := spanAttr(span, "error.severity")
	require.True(t, ok)
	assert.Equal(t, string(contextutils.ErrStorageWriteFailed.Severity), severity.AsString())
}

func TestFinishSpan_PlainError(t *testing.T) {
	span := finishedSpan(t, errors.New("boom"))

	assert.Equal(t, "boom", span.Status().Description)
	code, ok := spanAttr(span, "error.code")
	require.True(t, ok)
	assert.Equal(t, string(contextutils.ErrorCodeInternalError), code.AsString())
}

func TestFinishSpan_NilSpan(t *testing.T) {
	err := errors.New("ignored")
	assert.NotPanics(t, func() { FinishSpan(nil, &err) })
}

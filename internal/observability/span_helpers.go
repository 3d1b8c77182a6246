package observability

import (
	contextutils "feedbackapp/internal/utils"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// FinishSpan ends a span and records any error pointed to by errPtr, tagging it with the
// application error code and severity. Use with a named error return:
// `defer observability.FinishSpan(span, &err)`
func FinishSpan(span trace.Span, errPtr *error) {
	if span == nil {
		return
	}
	if errPtr != nil && *errPtr != nil {
		err := *errPtr
		span.SetAttributes(
			attribute.String("error.code", string(contextutils.GetErrorCode(err))),
			attribute.String("error.severity", string(contextutils.GetErrorSeverity(err))),
		)
		span.RecordError(err, trace.WithStackTrace(true))
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

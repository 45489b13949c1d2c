package modelrunner

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/rubriq/appraise/internal/domain"
)

// tracedModel wraps each invocation in an OpenTelemetry span for
// debugging and performance analysis.
type tracedModel struct {
	next   CoreModel
	tracer trace.Tracer
}

// TracingMiddleware creates middleware that traces invocations under
// the given service name.
func TracingMiddleware(serviceName string) Middleware {
	tracer := otel.Tracer(serviceName)

	return func(next CoreModel) CoreModel {
		return &tracedModel{
			next:   next,
			tracer: tracer,
		}
	}
}

// Invoke executes the invocation inside a span carrying the model name
// and prompt length. Prompt text itself is never recorded; evaluation
// datasets may hold sensitive content.
func (t *tracedModel) Invoke(ctx context.Context, prompt string) (domain.Prediction, error) {
	ctx, span := t.tracer.Start(ctx, "model.predict",
		trace.WithAttributes(
			attribute.String("model.name", t.next.GetModel()),
			attribute.Int("prompt.length", len(prompt)),
		),
	)
	defer span.End()

	prediction, err := t.next.Invoke(ctx, prompt)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return prediction, err
	}

	if prediction.Output != nil {
		span.SetAttributes(attribute.Int("response.length", len(*prediction.Output)))
	}
	span.SetAttributes(attribute.Bool("response.has_log_probability", prediction.LogProbability != nil))
	span.SetStatus(codes.Ok, "")

	return prediction, nil
}

// GetModel returns the model name from the wrapped implementation.
func (t *tracedModel) GetModel() string { return t.next.GetModel() }

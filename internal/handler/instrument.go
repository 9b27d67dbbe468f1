package handler

import (
	"context"

	"github.com/go-logr/logr"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/UltraSive/ttlkv/internal/handler"

type instruments struct {
	tracer   trace.Tracer
	commands metric.Int64Counter
}

func newInstruments(log logr.Logger) *instruments {
	meter := otel.Meter(instrumentationName)
	counter, err := meter.Int64Counter("ttlkv.commands",
		metric.WithDescription("Commands executed, by name and outcome."),
		metric.WithUnit("{command}"),
	)
	if err != nil {
		log.Error(err, "creating command counter")
	}
	return &instruments{
		tracer:   otel.Tracer(instrumentationName),
		commands: counter,
	}
}

// start opens a span for one command and returns a func that closes it and
// records the outcome.
func (in *instruments) start(ctx context.Context, name string) (context.Context, func(context.Context, error)) {
	if in == nil {
		return ctx, func(context.Context, error) {}
	}
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, span := in.tracer.Start(ctx, "ttlkv."+spanName(name), trace.WithSpanKind(trace.SpanKindServer))
	return ctx, func(ctx context.Context, err error) {
		outcome := "ok"
		if err != nil {
			outcome = "error"
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		if in.commands != nil {
			in.commands.Add(ctx, 1, metric.WithAttributes(
				attribute.String("command", spanName(name)),
				attribute.String("outcome", outcome),
			))
		}
		span.End()
	}
}

// spanName keeps span and metric cardinality bounded to the known commands.
func spanName(name string) string {
	if _, ok := commands[name]; ok {
		return name
	}
	return "UNKNOWN"
}

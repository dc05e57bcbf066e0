package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/alexanderramin/timeclock/internal/domain"
)

const tracerName = "github.com/alexanderramin/timeclock/internal/service"

// UseCaseEvent captures lightweight execution telemetry for a service use case.
type UseCaseEvent struct {
	Name      string
	Duration  time.Duration
	Success   bool
	Err       error
	Fields    map[string]any
	StartedAt time.Time
}

// UseCaseObserver receives use-case execution events.
type UseCaseObserver interface {
	ObserveUseCase(ctx context.Context, event UseCaseEvent)
}

// NoopUseCaseObserver ignores all events.
type NoopUseCaseObserver struct{}

func (NoopUseCaseObserver) ObserveUseCase(context.Context, UseCaseEvent) {}

type logUseCaseObserver struct {
	logger *slog.Logger
}

// NewLogUseCaseObserver writes service use-case events to logger. Expected
// domain rejections log at WARN; anything else that failed logs at ERROR.
func NewLogUseCaseObserver(logger *slog.Logger) UseCaseObserver {
	if logger == nil {
		return NoopUseCaseObserver{}
	}
	return &logUseCaseObserver{logger: logger}
}

func (o *logUseCaseObserver) ObserveUseCase(ctx context.Context, event UseCaseEvent) {
	attrs := make([]any, 0, 8+len(event.Fields)*2)
	attrs = append(attrs,
		"use_case", event.Name,
		"duration_ms", event.Duration.Milliseconds(),
		"success", event.Success,
	)
	for k, v := range event.Fields {
		attrs = append(attrs, k, v)
	}
	if event.Err != nil {
		attrs = append(attrs, "error", event.Err.Error())
		if domain.IsDomainError(event.Err) {
			o.logger.WarnContext(ctx, "service_use_case", attrs...)
			return
		}
		o.logger.ErrorContext(ctx, "service_use_case", attrs...)
		return
	}
	o.logger.InfoContext(ctx, "service_use_case", attrs...)
}

func useCaseObserverOrNoop(observers []UseCaseObserver) UseCaseObserver {
	for _, obs := range observers {
		if obs != nil {
			return obs
		}
	}
	return NoopUseCaseObserver{}
}

// useCase pairs a trace span with the observer event for one operation.
type useCase struct {
	name      string
	startedAt time.Time
	fields    map[string]any
	span      trace.Span
	observer  UseCaseObserver
}

func beginUseCase(ctx context.Context, observer UseCaseObserver, name string, fields map[string]any) (context.Context, *useCase) {
	if fields == nil {
		fields = map[string]any{}
	}
	ctx, span := otel.Tracer(tracerName).Start(ctx, name)
	return ctx, &useCase{
		name:      name,
		startedAt: time.Now(),
		fields:    fields,
		span:      span,
		observer:  observer,
	}
}

func (u *useCase) set(key string, value any) {
	u.fields[key] = value
}

func (u *useCase) end(ctx context.Context, err error) {
	u.span.SetAttributes(spanAttributes(u.fields)...)
	if err != nil {
		u.span.RecordError(err)
		u.span.SetStatus(codes.Error, err.Error())
	}
	u.span.End()

	u.observer.ObserveUseCase(ctx, UseCaseEvent{
		Name:      u.name,
		StartedAt: u.startedAt,
		Duration:  time.Since(u.startedAt),
		Success:   err == nil,
		Err:       err,
		Fields:    u.fields,
	})
}

func spanAttributes(fields map[string]any) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, len(fields))
	for k, v := range fields {
		switch val := v.(type) {
		case string:
			attrs = append(attrs, attribute.String(k, val))
		case int:
			attrs = append(attrs, attribute.Int(k, val))
		case int64:
			attrs = append(attrs, attribute.Int64(k, val))
		case bool:
			attrs = append(attrs, attribute.Bool(k, val))
		case fmt.Stringer:
			attrs = append(attrs, attribute.String(k, val.String()))
		default:
			attrs = append(attrs, attribute.String(k, fmt.Sprint(val)))
		}
	}
	return attrs
}

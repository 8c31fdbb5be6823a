package services

import (
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-meteo-warnings/internal/observability"
)

func tracer(name string) trace.Tracer { return observability.Tracer(name) }

package track

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/evdisplay/evd/internal/track"

func meter() metric.Meter {
	return otel.Meter(instrumentationName)
}

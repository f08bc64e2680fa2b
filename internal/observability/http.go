package observability

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsHandler serves the request, grading, upload and feed collectors.
// A collector failing to gather does not hide the others from the scrape.
func MetricsHandler() fiber.Handler {
	RegisterMetrics()
	scrape := promhttp.HandlerFor(prometheus.DefaultGatherer, promhttp.HandlerOpts{
		ErrorHandling: promhttp.ContinueOnError,
	})
	return adaptor.HTTPHandler(promhttp.InstrumentMetricHandler(prometheus.DefaultRegisterer, scrape))
}

package observability

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
)

func TestMetricsHandlerExposesGradingCollectors(t *testing.T) {
	app := fiber.New()
	app.Get("/metrics", MetricsHandler())

	GradeUpdates().WithLabelValues("ok").Inc()
	StatisticsCache().WithLabelValues("miss").Inc()

	resp, err := app.Test(httptest.NewRequest("GET", "/metrics", nil))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), `bargeh_grade_updates_total{outcome="ok"}`)
	require.Contains(t, string(body), `bargeh_statistics_cache_total{result="miss"}`)
	require.Contains(t, string(body), "bargeh_grading_feed_clients")
}

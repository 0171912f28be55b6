package httpapi

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// promHandler exposes the internal/metrics counters/gauges for Prometheus
// scraping, grounded on the same promhttp wiring used across the retrieved
// pack's services.
func promHandler() http.Handler {
	return promhttp.Handler()
}

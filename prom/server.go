package prom

import (
	"github.com/prometheus/client_golang/prometheus"
)

// WriteTextfile dumps all registered metrics in the text exposition format, suitable
// for the node exporter textfile collector. There is no scrape endpoint for a one-shot run.
func WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, prometheus.DefaultGatherer)
}

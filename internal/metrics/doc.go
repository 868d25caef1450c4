// Package metrics exposes observability hooks for the synchronization stores.
//
// Stores depend only on the Recorder interface. NoopRecorder is the default;
// PrometheusRecorder registers collectors on a caller-supplied registry and
// HTTPHandler serves that registry for scraping.
package metrics

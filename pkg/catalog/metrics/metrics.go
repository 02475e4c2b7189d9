// Package metrics exposes Prometheus counters for media resolution and
// thumbnail generation.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder owns the catalog collectors. It implements media.Observer and
// thumbnail.Observer.
type Recorder struct {
	registry    *prometheus.Registry
	resolutions *prometheus.CounterVec
	resolveErrs *prometheus.CounterVec
	thumbnails  *prometheus.CounterVec
	events      *prometheus.CounterVec
}

// New registers the collectors on a fresh registry together with the Go and
// process collectors.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		resolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "catalog_media_resolutions_total",
			Help: "Image references resolved, by the kind of object the URL points at.",
		}, []string{"kind"}),
		resolveErrs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "catalog_media_resolution_errors_total",
			Help: "Image references that failed to resolve, by reason.",
		}, []string{"reason"}),
		thumbnails: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "catalog_thumbnails_total",
			Help: "Thumbnail generation attempts, by outcome.",
		}, []string{"outcome"}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "catalog_change_events_total",
			Help: "Change events handed to the publisher, by result.",
		}, []string{"result"}),
	}
	r.registry.MustRegister(
		r.resolutions,
		r.resolveErrs,
		r.thumbnails,
		r.events,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// Registry returns the underlying registry
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus exposition format
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

func (r *Recorder) ObserveResolution(kind string) {
	r.resolutions.WithLabelValues(kind).Inc()
}

func (r *Recorder) ObserveResolutionError(reason string) {
	r.resolveErrs.WithLabelValues(reason).Inc()
}

func (r *Recorder) ObserveThumbnail(outcome string) {
	r.thumbnails.WithLabelValues(outcome).Inc()
}

func (r *Recorder) ObserveEvent(result string) {
	r.events.WithLabelValues(result).Inc()
}

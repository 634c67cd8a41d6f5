package mapcache

import "github.com/prometheus/client_golang/prometheus"

var (
	hardwareMaps = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "mapcache_hardware_maps_total",
		Help: "Total number of calls into the external mapping primitive.",
	})
	mappingReuses = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "mapcache_reuses_total",
		Help: "Total number of acquires satisfied by an existing mapping.",
	})
	incompatibleReuses = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "mapcache_incompatible_reuses_total",
		Help: "Total number of acquires rejected for diverging from the live mapping.",
	})
	doubleReleases = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "mapcache_double_releases_total",
		Help: "Total number of releases with no matching mapping.",
	})
	leakedMappings = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "mapcache_leaked_mappings_total",
		Help: "Total number of caller-held mappings reclaimed by buffer or device teardown.",
	})
	liveRecords = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "mapcache_live_records",
		Help: "Number of live mapping records.",
	})
)

func init() {
	prometheus.MustRegister(hardwareMaps, mappingReuses, incompatibleReuses,
		doubleReleases, leakedMappings, liveRecords)
}

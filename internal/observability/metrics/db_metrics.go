package metrics

import (
	"database/sql"
	"log"

	"github.com/prometheus/client_golang/prometheus"
)

func registerDBMetrics(db *sql.DB, logger *log.Logger) {
	prometheus.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: metricPrefix + "meters_total",
			Help: "Registered meters",
		},
		func() float64 {
			return queryCount(db, logger, "SELECT COUNT(*) FROM meters")
		},
	))

	prometheus.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: metricPrefix + "meters_retired",
			Help: "Meters replaced by a successor",
		},
		func() float64 {
			return queryCount(db, logger, "SELECT COUNT(*) FROM meters WHERE replaced_by IS NOT NULL")
		},
	))

	prometheus.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: metricPrefix + "readings_total",
			Help: "Stored meter readings",
		},
		func() float64 {
			return queryCount(db, logger, "SELECT COUNT(*) FROM meter_readings")
		},
	))
}

func queryCount(db *sql.DB, logger *log.Logger, query string) float64 {
	if db == nil {
		return 0
	}
	var count int64
	if err := db.QueryRow(query).Scan(&count); err != nil {
		if logger != nil {
			logger.Printf("metrics query failed: %v", err)
		}
		return 0
	}
	if count < 0 {
		return 0
	}
	return float64(count)
}

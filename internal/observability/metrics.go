package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PostsCreatedTotal counts posts created, labelled by origin ("form" or "csv").
	PostsCreatedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bulletinboard_posts_created_total",
		Help: "Total number of posts created by origin",
	}, []string{"origin"})

	// RecordsDeletedTotal counts soft-deletions by resource type.
	RecordsDeletedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bulletinboard_records_deleted_total",
		Help: "Total number of soft-deleted records by resource type",
	}, []string{"resource"})

	// CSVImportRowsTotal counts rows handled by CSV import, labelled by outcome.
	CSVImportRowsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bulletinboard_csv_import_rows_total",
		Help: "Total number of CSV import rows by outcome",
	}, []string{"outcome"})

	// ConfirmationsTotal counts two-phase workflow transitions by resource and step.
	ConfirmationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bulletinboard_confirmations_total",
		Help: "Total number of confirmation workflow transitions by resource and step",
	}, []string{"resource", "step"})
)

package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/txn-aggregator/internal/aggregator"
	"github.com/dvloznov/txn-aggregator/internal/api/handlers"
	"github.com/dvloznov/txn-aggregator/internal/api/middleware"
	"github.com/dvloznov/txn-aggregator/internal/bigquery"
	"github.com/dvloznov/txn-aggregator/internal/jobs"
)

// Dependencies are the collaborators behind the HTTP surface.
// Repository may be nil. GCSBucket scopes the locations report jobs may use.
type Dependencies struct {
	Rules      aggregator.Config
	Publisher  jobs.Publisher
	Store      jobs.JobStore
	Repository bigquery.ReportRepository
	GCSBucket  string
	APIToken   string
}

// NewHandler builds the routed and middleware-wrapped HTTP handler.
func NewHandler(deps Dependencies, log zerolog.Logger) http.Handler {
	aggregateHandler := handlers.NewAggregateHandler(deps.Rules, log)
	reportsHandler := handlers.NewReportsHandler(deps.Publisher, deps.GCSBucket, log)
	jobsHandler := handlers.NewJobsHandler(deps.Store, log)
	runsHandler := handlers.NewRunsHandler(deps.Repository, log)

	mux := http.NewServeMux()

	mux.HandleFunc("/api/aggregate", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			aggregateHandler.Aggregate(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/reports", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			reportsHandler.EnqueueReport(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/jobs", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			jobsHandler.ListJobs(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/jobs/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			jobID := strings.TrimPrefix(r.URL.Path, "/api/jobs/")
			if jobID == "" {
				middleware.WriteError(w, http.StatusBadRequest, "Job ID is required")
				return
			}
			jobsHandler.GetJob(w, r, jobID)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/runs", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			runsHandler.ListRuns(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/runs/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		runID, ok := handlers.SplitRunPath(r.URL.Path)
		if !ok {
			middleware.WriteError(w, http.StatusNotFound, "Not found")
			return
		}
		runsHandler.ListAccountSummaries(w, r, runID)
	})

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	return middleware.Recovery(log)(
		middleware.RequestID(
			middleware.Logger(log)(
				middleware.CORS(
					middleware.Auth(deps.APIToken)(mux),
				),
			),
		),
	)
}

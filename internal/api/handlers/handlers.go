package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/dvloznov/txn-aggregator/internal/aggregator"
	"github.com/dvloznov/txn-aggregator/internal/api/middleware"
	"github.com/dvloznov/txn-aggregator/internal/bigquery"
	"github.com/dvloznov/txn-aggregator/internal/domain"
	"github.com/dvloznov/txn-aggregator/internal/export"
	infra "github.com/dvloznov/txn-aggregator/internal/infra/bigquery"
	"github.com/dvloznov/txn-aggregator/internal/ingest"
	"github.com/dvloznov/txn-aggregator/internal/jobs"
	"github.com/dvloznov/txn-aggregator/internal/logger"
	"github.com/dvloznov/txn-aggregator/internal/pipeline"
	"github.com/dvloznov/txn-aggregator/internal/report"
	"github.com/dvloznov/txn-aggregator/internal/storage"
)

// MaxBodyBytes caps the size of a posted record set.
const MaxBodyBytes = 32 << 20

// FilterRequest is the optional report filter of a request.
type FilterRequest struct {
	Field     string  `json:"field"`
	Threshold float64 `json:"threshold"`
	AtLeast   *bool   `json:"at_least,omitempty"`
}

func (f *FilterRequest) toPipeline() (*pipeline.ReportFilter, error) {
	if f == nil {
		return nil, nil
	}
	field, err := report.ParseField(f.Field)
	if err != nil {
		return nil, err
	}
	atLeast := true
	if f.AtLeast != nil {
		atLeast = *f.AtLeast
	}
	return &pipeline.ReportFilter{Field: field, Threshold: f.Threshold, AtLeast: atLeast}, nil
}

// StatisticResponse is one transaction type with its average.
type StatisticResponse struct {
	Type             string  `json:"transaction_type"`
	TotalAmount      float64 `json:"total_amount"`
	TransactionCount int     `json:"transaction_count"`
	AverageAmount    float64 `json:"average_amount"`
}

// AggregateResponse is the body returned by POST /api/aggregate.
type AggregateResponse struct {
	RunID                  string                  `json:"run_id"`
	RecordsRead            int                     `json:"records_read"`
	RecordsRejected        int                     `json:"records_rejected"`
	AccountSummaries       []domain.AccountSummary `json:"account_summaries"`
	SuspiciousTransactions []domain.Record         `json:"suspicious_transactions"`
	TransactionStatistics  []StatisticResponse     `json:"transaction_statistics"`
	FilteredAccounts       []domain.AccountSummary `json:"filtered_accounts,omitempty"`
}

// AggregateHandler runs the report pipeline synchronously over posted records.
type AggregateHandler struct {
	rules aggregator.Config
	log   zerolog.Logger
}

// NewAggregateHandler creates a new aggregate handler.
func NewAggregateHandler(rules aggregator.Config, log zerolog.Logger) *AggregateHandler {
	return &AggregateHandler{
		rules: rules,
		log:   log,
	}
}

// Aggregate handles POST /api/aggregate. The body is either a JSON array of
// records or an object {"records": [...], "filter": {...}}.
func (h *AggregateHandler) Aggregate(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	if err != nil {
		middleware.WriteError(w, http.StatusRequestEntityTooLarge, "Request body too large")
		return
	}

	records, filterReq, err := decodeAggregateRequest(body)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	filter, err := filterReq.toPipeline()
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	state, err := pipeline.Run(r.Context(), pipeline.Deps{}, pipeline.Options{
		Records: records,
		Rules:   h.rules,
		Filter:  filter,
	})
	if err != nil {
		if errors.Is(err, domain.ErrFieldMissing) || errors.Is(err, domain.ErrConversion) {
			middleware.WriteError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		log := logger.FromContext(r.Context())
		log.Error().Err(err).Msg("Failed to aggregate records")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to aggregate records")
		return
	}

	if !finite(state.Result) {
		middleware.WriteError(w, http.StatusUnprocessableEntity, "Aggregated amounts exceed the float64 range")
		return
	}

	stats := make([]StatisticResponse, 0, len(state.Result.TransactionStatistics))
	for _, s := range state.Result.TransactionStatistics {
		stats = append(stats, StatisticResponse{
			Type:             s.Type,
			TotalAmount:      s.TotalAmount,
			TransactionCount: s.TransactionCount,
			AverageAmount:    s.Average(),
		})
	}

	resp := AggregateResponse{
		RunID:                  state.RunID,
		RecordsRead:            len(state.Records),
		RecordsRejected:        state.Rejected,
		AccountSummaries:       nonNil(state.Result.AccountSummaries),
		SuspiciousTransactions: nonNil(state.Result.SuspiciousTransactions),
		TransactionStatistics:  stats,
	}
	if filter != nil {
		resp.FilteredAccounts = nonNil(state.Filtered)
	}

	middleware.WriteJSON(w, http.StatusOK, resp)
}

func decodeAggregateRequest(body []byte) ([]domain.Record, *FilterRequest, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, nil, fmt.Errorf("request body is empty")
	}

	if trimmed[0] == '[' {
		records, err := ingest.DecodeJSON(bytes.NewReader(trimmed))
		if err != nil {
			return nil, nil, fmt.Errorf("invalid records: %w", err)
		}
		return records, nil, nil
	}

	var req struct {
		Records json.RawMessage `json:"records"`
		Filter  *FilterRequest  `json:"filter"`
	}
	if err := json.Unmarshal(trimmed, &req); err != nil {
		return nil, nil, fmt.Errorf("invalid request body: %w", err)
	}
	if len(req.Records) == 0 {
		return nil, nil, fmt.Errorf("records are required")
	}
	records, err := ingest.DecodeJSON(bytes.NewReader(req.Records))
	if err != nil {
		return nil, nil, fmt.Errorf("invalid records: %w", err)
	}
	return records, req.Filter, nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

// finite reports whether every total in res can be encoded as JSON.
func finite(res aggregator.Result) bool {
	ok := func(f float64) bool { return !math.IsInf(f, 0) && !math.IsNaN(f) }
	for _, a := range res.AccountSummaries {
		if !ok(a.Balance) || !ok(a.TotalDeposits) || !ok(a.TotalWithdrawals) {
			return false
		}
	}
	for _, s := range res.TransactionStatistics {
		if !ok(s.TotalAmount) || !ok(s.Average()) {
			return false
		}
	}
	return true
}

// ReportsHandler enqueues asynchronous report jobs. Jobs read and write
// only inside the configured bucket.
type ReportsHandler struct {
	publisher jobs.Publisher
	bucket    string
	log       zerolog.Logger
}

// NewReportsHandler creates a new reports handler. An empty bucket disables
// job submission.
func NewReportsHandler(publisher jobs.Publisher, bucket string, log zerolog.Logger) *ReportsHandler {
	return &ReportsHandler{
		publisher: publisher,
		bucket:    bucket,
		log:       log,
	}
}

func (h *ReportsHandler) checkLocation(field, uri string) error {
	bucket, err := storage.BucketFromGCSURI(uri)
	if err != nil {
		return fmt.Errorf("%s must be a gs:// URI", field)
	}
	if bucket != h.bucket {
		return fmt.Errorf("%s must be in bucket %s", field, h.bucket)
	}
	return nil
}

// EnqueueReport handles POST /api/reports
func (h *ReportsHandler) EnqueueReport(w http.ResponseWriter, r *http.Request) {
	var req struct {
		InputURI  string         `json:"input_uri"`
		OutputDir string         `json:"output_dir"`
		Prefix    string         `json:"prefix"`
		Filter    *FilterRequest `json:"filter"`
	}

	if h.bucket == "" {
		middleware.WriteError(w, http.StatusServiceUnavailable, "Report jobs need GCS_BUCKET to be configured")
		return
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.InputURI == "" {
		middleware.WriteError(w, http.StatusBadRequest, "input_uri is required")
		return
	}
	if err := h.checkLocation("input_uri", req.InputURI); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if _, err := ingest.DetectFormat(req.InputURI); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.OutputDir != "" {
		if err := h.checkLocation("output_dir", req.OutputDir); err != nil {
			middleware.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	if err := export.ValidatePrefix(req.Prefix); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	job := &jobs.ReportJob{
		InputURI:  req.InputURI,
		OutputDir: req.OutputDir,
		Prefix:    req.Prefix,
	}
	if req.Filter != nil {
		filter, err := req.Filter.toPipeline()
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		job.Filter = &jobs.ReportFilterSpec{
			Field:     string(filter.Field),
			Threshold: filter.Threshold,
			AtLeast:   filter.AtLeast,
		}
	}

	if err := h.publisher.PublishReport(r.Context(), job); err != nil {
		h.log.Error().Err(err).Msg("Failed to enqueue report job")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to enqueue report job")
		return
	}

	h.log.Info().Str("job_id", job.JobID).Str("input_uri", job.InputURI).Msg("Report job enqueued")

	middleware.WriteJSON(w, http.StatusAccepted, map[string]string{
		"job_id":    job.JobID,
		"input_uri": job.InputURI,
		"status":    string(job.Status),
	})
}

// JobsHandler handles job-related endpoints.
type JobsHandler struct {
	store jobs.JobStore
	log   zerolog.Logger
}

// NewJobsHandler creates a new jobs handler.
func NewJobsHandler(store jobs.JobStore, log zerolog.Logger) *JobsHandler {
	return &JobsHandler{
		store: store,
		log:   log,
	}
}

// GetJob handles GET /api/jobs/{id}
func (h *JobsHandler) GetJob(w http.ResponseWriter, r *http.Request, jobID string) {
	job, err := h.store.GetJob(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, jobs.ErrJobNotFound) {
			middleware.WriteError(w, http.StatusNotFound, "Job not found")
			return
		}
		h.log.Error().Err(err).Str("job_id", jobID).Msg("Failed to get job")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to get job")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, job)
}

// ListJobs handles GET /api/jobs
func (h *JobsHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := jobs.JobFilter{
		InputURI: query.Get("input_uri"),
		Status:   jobs.JobStatus(query.Get("status")),
		Limit:    intParam(query.Get("limit")),
		Offset:   intParam(query.Get("offset")),
	}

	jobsList, err := h.store.ListJobs(r.Context(), filter)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list jobs")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list jobs")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  jobsList,
		"count": len(jobsList),
	})
}

// RunsHandler reads published runs back from the warehouse.
type RunsHandler struct {
	repo bigquery.ReportRepository
	log  zerolog.Logger
}

// NewRunsHandler creates a new runs handler. repo may be nil when no
// warehouse is configured.
func NewRunsHandler(repo bigquery.ReportRepository, log zerolog.Logger) *RunsHandler {
	return &RunsHandler{
		repo: repo,
		log:  log,
	}
}

// ListRuns handles GET /api/runs
func (h *RunsHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	if h.repo == nil {
		middleware.WriteError(w, http.StatusServiceUnavailable, "Warehouse not configured")
		return
	}

	runs, err := h.repo.ListRuns(r.Context(), intParam(r.URL.Query().Get("limit")))
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list runs")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list runs")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"runs":  nonNil(runs),
		"count": len(runs),
	})
}

// ListAccountSummaries handles GET /api/runs/{id}/accounts
func (h *RunsHandler) ListAccountSummaries(w http.ResponseWriter, r *http.Request, runID string) {
	if h.repo == nil {
		middleware.WriteError(w, http.StatusServiceUnavailable, "Warehouse not configured")
		return
	}

	rows, err := h.repo.ListAccountSummaries(r.Context(), runID)
	if err != nil {
		h.log.Error().Err(err).Str("run_id", runID).Msg("Failed to list account summaries")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list account summaries")
		return
	}

	summaries := infra.AccountSummariesFromRows(rows)

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"run_id":            runID,
		"account_summaries": summaries,
		"count":             len(summaries),
	})
}

// SplitRunPath extracts the run ID from /api/runs/{id}/accounts.
func SplitRunPath(path string) (string, bool) {
	rest := strings.TrimPrefix(path, "/api/runs/")
	runID, ok := strings.CutSuffix(rest, "/accounts")
	if !ok || runID == "" || strings.Contains(runID, "/") {
		return "", false
	}
	return runID, true
}

func intParam(s string) int {
	if s == "" {
		return 0
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

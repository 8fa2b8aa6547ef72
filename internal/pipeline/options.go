package pipeline

import (
	"github.com/dvloznov/txn-aggregator/internal/aggregator"
	"github.com/dvloznov/txn-aggregator/internal/domain"
	"github.com/dvloznov/txn-aggregator/internal/report"
)

// ReportFilter selects the accounts written to the filtered report.
type ReportFilter struct {
	Field     report.Field
	Threshold float64
	AtLeast   bool
}

// Options describe one run.
type Options struct {
	// InputURI is a local path or gs:// URI. When empty, Records is used.
	InputURI string
	Records  []domain.Record

	// OutputDir is a local directory or gs:// prefix. When empty, no files are written.
	OutputDir string
	Prefix    string

	Rules  aggregator.Config
	Filter *ReportFilter
}

package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dvloznov/txn-aggregator/internal/aggregator"
	"github.com/dvloznov/txn-aggregator/internal/domain"
	"github.com/dvloznov/txn-aggregator/internal/storage"
)

// DefaultFilePrefix is prepended to every output file name.
const DefaultFilePrefix = "output_data"

// ErrInvalidPrefix is returned for a file prefix that is not a plain name.
var ErrInvalidPrefix = errors.New("invalid file prefix")

// ValidatePrefix checks that prefix names files inside the output directory.
func ValidatePrefix(prefix string) error {
	if prefix == "." || strings.Contains(prefix, "..") || strings.ContainsAny(prefix, `/\`) {
		return fmt.Errorf("%w: %q", ErrInvalidPrefix, prefix)
	}
	return nil
}

// Paths are the destinations of one run's output files.
type Paths struct {
	AccountSummaries       string
	SuspiciousTransactions string
	TransactionStatistics  string
	FilteredAccounts       string
}

// PathsFor names the output files inside dir, which may be a local directory
// or a gs:// prefix.
func PathsFor(dir, prefix string) Paths {
	if prefix == "" {
		prefix = DefaultFilePrefix
	}
	name := func(kind string) string {
		return storage.Join(dir, fmt.Sprintf("%s_%s.csv", prefix, kind))
	}
	return Paths{
		AccountSummaries:       name("account_summaries"),
		SuspiciousTransactions: name("suspicious_transactions"),
		TransactionStatistics:  name("transaction_statistics"),
		FilteredAccounts:       name("filtered_accounts"),
	}
}

// Writer encodes results and stores them through a storage.Service.
type Writer struct {
	store storage.Service
}

// NewWriter creates a Writer that stores files in store.
func NewWriter(store storage.Service) *Writer {
	return &Writer{store: store}
}

// WriteAll writes the three result files, and the filtered report when
// filtered is non-nil. It returns the paths that were written.
func (w *Writer) WriteAll(ctx context.Context, paths Paths, res aggregator.Result, filtered []domain.AccountSummary) ([]string, error) {
	var written []string

	if err := w.write(ctx, paths.AccountSummaries, func(buf *bytes.Buffer) error {
		return EncodeAccountSummaries(buf, res.AccountSummaries)
	}); err != nil {
		return written, err
	}
	written = append(written, paths.AccountSummaries)

	if err := w.write(ctx, paths.SuspiciousTransactions, func(buf *bytes.Buffer) error {
		return EncodeSuspicious(buf, res.SuspiciousTransactions)
	}); err != nil {
		return written, err
	}
	written = append(written, paths.SuspiciousTransactions)

	if err := w.write(ctx, paths.TransactionStatistics, func(buf *bytes.Buffer) error {
		return EncodeStatistics(buf, res.TransactionStatistics)
	}); err != nil {
		return written, err
	}
	written = append(written, paths.TransactionStatistics)

	if filtered != nil {
		if err := w.write(ctx, paths.FilteredAccounts, func(buf *bytes.Buffer) error {
			return EncodeAccountSummaries(buf, filtered)
		}); err != nil {
			return written, err
		}
		written = append(written, paths.FilteredAccounts)
	}

	return written, nil
}

func (w *Writer) write(ctx context.Context, uri string, encode func(*bytes.Buffer) error) error {
	var buf bytes.Buffer
	if err := encode(&buf); err != nil {
		return err
	}
	if err := w.store.Write(ctx, uri, buf.Bytes()); err != nil {
		return fmt.Errorf("WriteAll: storing %s: %w", uri, err)
	}
	return nil
}

// Package ingest reads transaction records from CSV or JSON files, stored
// locally or in Cloud Storage.
package ingest

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/dvloznov/txn-aggregator/internal/domain"
	"github.com/dvloznov/txn-aggregator/internal/storage"
)

var (
	// ErrNotFound is returned when the input file does not exist.
	ErrNotFound = storage.ErrNotFound

	// ErrUnsupportedFormat is returned for files that are neither csv nor json.
	ErrUnsupportedFormat = errors.New("unsupported input format")
)

// Format is the encoding of an input file.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
)

// DetectFormat returns the format implied by the file extension of uri.
func DetectFormat(uri string) (Format, error) {
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(uri), "."))
	switch Format(ext) {
	case FormatCSV:
		return FormatCSV, nil
	case FormatJSON:
		return FormatJSON, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, uri)
}

// Reader loads records through a storage.Service.
type Reader struct {
	store storage.Service
}

// NewReader creates a Reader that fetches files from store.
func NewReader(store storage.Service) *Reader {
	return &Reader{store: store}
}

// ReadRecords fetches uri and decodes it according to its extension.
func (r *Reader) ReadRecords(ctx context.Context, uri string) ([]domain.Record, error) {
	format, err := DetectFormat(uri)
	if err != nil {
		return nil, err
	}

	data, err := r.store.Read(ctx, uri)
	if err != nil {
		return nil, fmt.Errorf("ReadRecords: %w", err)
	}

	switch format {
	case FormatJSON:
		return DecodeJSON(bytes.NewReader(data))
	default:
		return DecodeCSV(bytes.NewReader(data))
	}
}

// DecodeCSV reads a header row followed by one record per row. Every value is
// kept as a string. Short rows only carry the columns they have; columns
// beyond the header are ignored.
func DecodeCSV(src io.Reader) ([]domain.Record, error) {
	reader := csv.NewReader(src)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return []domain.Record{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("DecodeCSV: reading header: %w", err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	records := []domain.Record{}
	for line := 2; ; line++ {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("DecodeCSV: line %d: %w", line, err)
		}

		rec := make(domain.Record, len(header))
		for i, name := range header {
			if i < len(row) {
				rec[name] = row[i]
			}
		}
		records = append(records, rec)
	}

	return records, nil
}

// DecodeJSON reads an array of objects. Numbers are kept as json.Number so
// their original text survives to the output files.
func DecodeJSON(src io.Reader) ([]domain.Record, error) {
	dec := json.NewDecoder(src)
	dec.UseNumber()

	var records []domain.Record
	if err := dec.Decode(&records); err != nil {
		return nil, fmt.Errorf("DecodeJSON: %w", err)
	}

	for i, rec := range records {
		if rec == nil {
			return nil, fmt.Errorf("DecodeJSON: element %d is null", i)
		}
	}
	if records == nil {
		records = []domain.Record{}
	}
	return records, nil
}

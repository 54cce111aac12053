// Package ingest parses ledger exports at the system boundary into
// datasets. JSON payloads must be a top-level array of row objects;
// CSV files use their header row as field labels.
package ingest

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// ErrNotArray reports a JSON payload whose top level is not an array.
// Its message is the one checks and the API surface verbatim.
var ErrNotArray = errors.New(domain.MsgDataNotArray)

// ParseJSON decodes a JSON array of row objects into a dataset.
// Anything other than a top-level array fails with ErrNotArray; a
// non-object element fails with its position.
func ParseJSON(raw []byte) (domain.Dataset, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var rows []any
	if err := dec.Decode(&rows); err != nil {
		return nil, ErrNotArray
	}
	if rows == nil {
		// JSON null decodes without error but is not an array.
		return nil, ErrNotArray
	}

	ds := make(domain.Dataset, 0, len(rows))
	for i, el := range rows {
		obj, ok := el.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("row %d is not an object", i)
		}
		rec := make(domain.Record, len(obj))
		for k, v := range obj {
			rec[k] = normalizeJSONValue(v)
		}
		ds = append(ds, rec)
	}
	return ds, nil
}

// normalizeJSONValue maps json.Number to float64 and leaves the other
// scalar shapes alone. Nested structures stay as decoded; checks treat
// them as opaque.
func normalizeJSONValue(v any) any {
	if n, ok := v.(json.Number); ok {
		if f, err := n.Float64(); err == nil {
			return f
		}
		return n.String()
	}
	return v
}

// ParseCSV reads a headered CSV export into a dataset. Numeric-looking
// cells become float64, blank cells nil, everything else stays a
// string. Short rows are padded with nil; long rows keep only the
// headered columns.
func ParseCSV(r io.Reader) (domain.Dataset, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	for i, col := range header {
		header[i] = strings.TrimSpace(col)
	}

	var ds domain.Dataset
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read row %d: %w", len(ds)+1, err)
		}

		rec := make(domain.Record, len(header))
		for i, col := range header {
			if col == "" {
				continue
			}
			if i >= len(record) {
				rec[col] = nil
				continue
			}
			rec[col] = coerceCell(record[i])
		}
		ds = append(ds, rec)
	}
	if ds == nil {
		ds = domain.Dataset{}
	}
	return ds, nil
}

// coerceCell turns a raw CSV cell into its natural scalar.
func coerceCell(cell string) any {
	s := strings.TrimSpace(cell)
	if s == "" {
		return nil
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}

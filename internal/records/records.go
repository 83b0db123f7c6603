// Package records reads and writes flat tabular records from CSV and JSON
// files. The format follows the file extension. Input may be in any
// WHATWG-named encoding; output is always UTF-8.
package records

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Sentinel errors.
var (
	ErrUnsupportedFormat = errors.New("records: unsupported file format")
	ErrNoData            = errors.New("records: no data to write")
)

// Record is one row: column name to value.
type Record map[string]string

// Format is a supported file format.
type Format int

// Supported formats.
const (
	CSV Format = iota + 1
	JSON
)

func (f Format) String() string {
	switch f {
	case CSV:
		return "csv"
	case JSON:
		return "json"
	default:
		return fmt.Sprintf("Format(%d)", int(f))
	}
}

// FormatFor picks the format from path's extension, ignoring case.
func FormatFor(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return CSV, nil
	case ".json":
		return JSON, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(path))
	}
}

// ReadFile reads every record in path. encodingName is a WHATWG label such
// as "utf-8", "utf-16le" or "windows-1251"; empty means UTF-8. A byte
// order mark overrides the label.
func ReadFile(path, encodingName string) ([]Record, error) {
	format, err := FormatFor(path)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("records: opening %s: %w", path, err)
	}
	defer f.Close()

	recs, err := Read(f, format, encodingName)
	if err != nil {
		return nil, fmt.Errorf("records: reading %s: %w", path, err)
	}

	return recs, nil
}

// Read decodes records of the given format from r.
func Read(r io.Reader, format Format, encodingName string) ([]Record, error) {
	decoded, err := decoder(r, encodingName)
	if err != nil {
		return nil, err
	}

	switch format {
	case CSV:
		return readCSV(decoded)
	case JSON:
		return readJSON(decoded)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
}

func decoder(r io.Reader, encodingName string) (io.Reader, error) {
	if encodingName == "" {
		encodingName = "utf-8"
	}

	enc, err := htmlindex.Get(encodingName)
	if err != nil {
		return nil, fmt.Errorf("records: unknown encoding %q: %w", encodingName, err)
	}

	return transform.NewReader(r, unicode.BOMOverride(enc.NewDecoder())), nil
}

func readCSV(r io.Reader) ([]Record, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return []Record{}, nil
	}

	if err != nil {
		return nil, fmt.Errorf("parsing csv header: %w", err)
	}

	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	var recs []Record

	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}

		if err != nil {
			return nil, fmt.Errorf("parsing csv: %w", err)
		}

		rec := make(Record, len(header))
		for i, col := range header {
			if i < len(row) {
				rec[col] = row[i]
			}
		}

		recs = append(recs, rec)
	}

	if recs == nil {
		recs = []Record{}
	}

	return recs, nil
}

func readJSON(r io.Reader) ([]Record, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	var raw []map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("parsing json (want an array of objects): %w", err)
	}

	recs := make([]Record, 0, len(raw))
	for _, obj := range raw {
		rec := make(Record, len(obj))

		for k, v := range obj {
			s, ok, err := stringify(v)
			if err != nil {
				return nil, fmt.Errorf("field %q: %w", k, err)
			}

			if ok {
				rec[k] = s
			}
		}

		recs = append(recs, rec)
	}

	return recs, nil
}

// stringify flattens a decoded JSON value. Nulls are dropped; nested
// values are kept as compact JSON.
func stringify(v any) (string, bool, error) {
	switch t := v.(type) {
	case nil:
		return "", false, nil
	case string:
		return t, true, nil
	case json.Number:
		return t.String(), true, nil
	case bool:
		if t {
			return "true", true, nil
		}

		return "false", true, nil
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return "", false, err
		}

		return string(b), true, nil
	}
}

// Columns returns the sorted union of keys across recs.
func Columns(recs []Record) []string {
	seen := make(map[string]struct{})
	for _, rec := range recs {
		for k := range rec {
			seen[k] = struct{}{}
		}
	}

	cols := make([]string, 0, len(seen))
	for k := range seen {
		cols = append(cols, k)
	}

	sort.Strings(cols)

	return cols
}

// WriteFile writes recs to path in the format its extension names, with
// columns in the given order. Nil columns means Columns(recs). An empty
// recs is ErrNoData and nothing is written.
func WriteFile(path string, columns []string, recs []Record) error {
	format, err := FormatFor(path)
	if err != nil {
		return err
	}

	if len(recs) == 0 {
		return ErrNoData
	}

	if columns == nil {
		columns = Columns(recs)
	}

	var buf bytes.Buffer

	switch format {
	case CSV:
		err = writeCSV(&buf, columns, recs)
	case JSON:
		err = writeJSON(&buf, columns, recs)
	}

	if err != nil {
		return fmt.Errorf("records: encoding %s: %w", path, err)
	}

	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("records: writing %s: %w", path, err)
	}

	return nil
}

func writeCSV(w io.Writer, columns []string, recs []Record) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(columns); err != nil {
		return err
	}

	row := make([]string, len(columns))
	for _, rec := range recs {
		for i, col := range columns {
			row[i] = rec[col]
		}

		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()

	return cw.Error()
}

// orderedRecord marshals a Record with keys in column order.
type orderedRecord struct {
	columns []string
	rec     Record
}

func (o orderedRecord) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteByte('{')

	for i, col := range o.columns {
		if i > 0 {
			buf.WriteByte(',')
		}

		if err := writeJSONString(&buf, col); err != nil {
			return nil, err
		}

		buf.WriteByte(':')

		if err := writeJSONString(&buf, o.rec[col]); err != nil {
			return nil, err
		}
	}

	buf.WriteByte('}')

	return buf.Bytes(), nil
}

func writeJSONString(buf *bytes.Buffer, s string) error {
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)

	if err := enc.Encode(s); err != nil {
		return err
	}

	// Encode appends a newline.
	buf.Truncate(buf.Len() - 1)

	return nil
}

func writeJSON(w io.Writer, columns []string, recs []Record) error {
	out := make([]orderedRecord, len(recs))
	for i, rec := range recs {
		out[i] = orderedRecord{columns: columns, rec: rec}
	}

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")

	return enc.Encode(out)
}

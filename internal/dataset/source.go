package dataset

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/bobby-s-dev/airquality-aggregator/internal/store"
	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/transform"
)

// nullValues are the cell values read as missing measurements.
var nullValues = []string{"NA", "NaN", "nan", "", "<nil>"}

// Table is the parsed content of one source. Frame is only set when the source
// has data rows; a header-only source still carries its Header.
type Table struct {
	Header []string
	Frame  dataframe.DataFrame
	Rows   int
}

// Source is one tabular input of the dataset.
type Source interface {
	Name() string
	Table(ctx context.Context) (Table, error)
}

// Fetcher downloads remote sources.
type Fetcher interface {
	GetWithRetry(ctx context.Context, url string) ([]byte, error)
}

type ResolveOptions struct {
	// Encoding is an IANA/WHATWG name such as "gbk" or "latin1"; empty means UTF-8.
	Encoding string
	// Sheet selects the XLSX sheet; empty means the first one.
	Sheet   string
	Fetcher Fetcher
	// Exclude lists files skipped while expanding directories, e.g. the snapshot
	// the service writes next to its sources.
	Exclude []string
}

// CSVFile is a local delimited file. The delimiter is sniffed from the header.
type CSVFile struct {
	Path     string
	Encoding string
}

func (s CSVFile) Name() string { return s.Path }

func (s CSVFile) Table(ctx context.Context) (Table, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return Table{}, err
	}
	defer f.Close()

	r, err := decodingReader(f, s.Encoding)
	if err != nil {
		return Table{}, err
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return Table{}, fmt.Errorf("read %s: %w", s.Path, err)
	}
	return readDelimited(b)
}

// RemoteCSV is a delimited file served over HTTP(S).
type RemoteCSV struct {
	URL      string
	Encoding string
	Fetcher  Fetcher
}

func (s RemoteCSV) Name() string { return s.URL }

func (s RemoteCSV) Table(ctx context.Context) (Table, error) {
	body, err := s.Fetcher.GetWithRetry(ctx, s.URL)
	if err != nil {
		return Table{}, fmt.Errorf("fetch %s: %w", s.URL, err)
	}
	r, err := decodingReader(bytes.NewReader(body), s.Encoding)
	if err != nil {
		return Table{}, err
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return Table{}, err
	}
	return readDelimited(b)
}

// XLSXFile reads one sheet of a workbook, header in the first row.
type XLSXFile struct {
	Path  string
	Sheet string
}

func (s XLSXFile) Name() string { return s.Path }

func (s XLSXFile) Table(ctx context.Context) (Table, error) {
	f, err := excelize.OpenFile(s.Path)
	if err != nil {
		return Table{}, fmt.Errorf("failed to open xlsx file: %w", err)
	}
	defer f.Close()

	sheet := s.Sheet
	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return Table{}, fmt.Errorf("workbook %s has no sheets", s.Path)
		}
		sheet = sheets[0]
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return Table{}, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	if len(rows) == 0 {
		return Table{}, fmt.Errorf("sheet %q is empty", sheet)
	}

	// excelize drops trailing empty cells
	width := len(rows[0])
	records := make([][]string, 0, len(rows))
	for _, row := range rows {
		if len(row) == 0 {
			continue
		}
		rec := make([]string, width)
		copy(rec, row)
		records = append(records, rec)
	}
	return loadRecords(records)
}

// SnapshotFile is an SQLite snapshot written by the store package.
type SnapshotFile struct {
	Path string
}

func (s SnapshotFile) Name() string { return s.Path }

func (s SnapshotFile) Table(ctx context.Context) (Table, error) {
	st, err := store.Open(s.Path)
	if err != nil {
		return Table{}, err
	}
	defer st.Close()

	records, err := st.Records(ctx)
	if err != nil {
		return Table{}, err
	}
	return loadRecords(records)
}

// ResolveSources turns paths, directories and URLs into sources. Directory entries
// are taken in filename order so concatenation does not depend on the filesystem.
func ResolveSources(specs []string, opts ResolveOptions) ([]Source, error) {
	excluded := make(map[string]bool, len(opts.Exclude))
	for _, p := range opts.Exclude {
		if p != "" {
			excluded[absPath(p)] = true
		}
	}

	var sources []Source
	for _, spec := range specs {
		spec = strings.TrimSpace(spec)
		if spec == "" {
			continue
		}

		if strings.HasPrefix(spec, "http://") || strings.HasPrefix(spec, "https://") {
			if opts.Fetcher == nil {
				return nil, fmt.Errorf("no fetcher configured for %s", spec)
			}
			sources = append(sources, RemoteCSV{URL: spec, Encoding: opts.Encoding, Fetcher: opts.Fetcher})
			continue
		}

		info, err := os.Stat(spec)
		if err != nil {
			return nil, fmt.Errorf("source %s: %w", spec, err)
		}

		if !info.IsDir() {
			src, ok := fileSource(spec, opts)
			if !ok {
				return nil, fmt.Errorf("source %s: unsupported file type", spec)
			}
			sources = append(sources, src)
			continue
		}

		// os.ReadDir returns entries sorted by filename
		entries, err := os.ReadDir(spec)
		if err != nil {
			return nil, fmt.Errorf("source %s: %w", spec, err)
		}
		for _, entry := range entries {
			if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
				continue
			}
			path := filepath.Join(spec, entry.Name())
			if excluded[absPath(path)] {
				continue
			}
			if src, ok := fileSource(path, opts); ok {
				sources = append(sources, src)
			}
		}
	}

	if len(sources) == 0 {
		return nil, fmt.Errorf("no data sources found in %v", specs)
	}
	return sources, nil
}

func fileSource(path string, opts ResolveOptions) (Source, bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv", ".txt":
		return CSVFile{Path: path, Encoding: opts.Encoding}, true
	case ".xlsx":
		return XLSXFile{Path: path, Sheet: opts.Sheet}, true
	case ".db", ".sqlite", ".sqlite3":
		return SnapshotFile{Path: path}, true
	}
	return nil, false
}

func decodingReader(r io.Reader, name string) (io.Reader, error) {
	if name == "" {
		return r, nil
	}
	enc, err := htmlindex.Get(name)
	if err != nil {
		return nil, fmt.Errorf("unknown encoding %q: %w", name, err)
	}
	return transform.NewReader(r, enc.NewDecoder()), nil
}

func absPath(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return filepath.Clean(path)
}

var errNoHeader = errors.New("source has no header row")

func readDelimited(b []byte) (Table, error) {
	delim := sniffDelimiter(b)

	// gota cannot build a frame without rows, so the header is read separately
	r := csv.NewReader(bytes.NewReader(b))
	r.Comma = delim
	r.FieldsPerRecord = -1
	header, err := r.Read()
	if err == io.EOF {
		return Table{}, errNoHeader
	}
	if err != nil {
		return Table{}, fmt.Errorf("parse header: %w", err)
	}
	if _, err := r.Read(); err == io.EOF {
		return Table{Header: header}, nil
	}

	df := dataframe.ReadCSV(bytes.NewReader(b),
		dataframe.HasHeader(true),
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
		dataframe.WithDelimiter(delim),
		dataframe.NaNValues(nullValues),
	)
	if df.Err != nil {
		return Table{}, fmt.Errorf("parse table: %w", df.Err)
	}
	return Table{Header: df.Names(), Frame: df, Rows: df.Nrow()}, nil
}

func loadRecords(records [][]string) (Table, error) {
	switch len(records) {
	case 0:
		return Table{}, errNoHeader
	case 1:
		return Table{Header: records[0]}, nil
	}

	df := dataframe.LoadRecords(records,
		dataframe.HasHeader(true),
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
		dataframe.NaNValues(nullValues),
	)
	if df.Err != nil {
		return Table{}, fmt.Errorf("parse table: %w", df.Err)
	}
	return Table{Header: df.Names(), Frame: df, Rows: df.Nrow()}, nil
}

// sniffDelimiter picks ';' or ',' from the header line.
func sniffDelimiter(b []byte) rune {
	line := b
	if i := bytes.IndexByte(b, '\n'); i >= 0 {
		line = b[:i]
	}
	if bytes.Count(line, []byte(";")) > bytes.Count(line, []byte(",")) {
		return ';'
	}
	return ','
}

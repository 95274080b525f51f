// Package ingest turns open-data exports of municipality statistics into
// validated records for the dataset store.
package ingest

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"belgian-housing-api/models"
)

// Source produces a complete dataset. Implementations return a *models.LoadError
// for malformed or unreadable input.
type Source interface {
	Name() string
	Load(ctx context.Context) ([]models.Municipality, error)
}

type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
	FormatJSON Format = "json"
)

// FormatFromPath picks the format from a file name or URL path extension.
func FormatFromPath(path string) (Format, bool) {
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv", ".txt":
		return FormatCSV, true
	case ".xlsx":
		return FormatXLSX, true
	case ".json":
		return FormatJSON, true
	}
	return "", false
}

// Parse decodes r according to format.
func Parse(source string, format Format, r io.Reader) ([]models.Municipality, error) {
	switch format {
	case FormatCSV:
		return ParseCSV(source, r)
	case FormatXLSX:
		return ParseXLSX(source, r)
	case FormatJSON:
		return ParseJSON(source, r)
	}
	return nil, models.NewLoadError(source, 0, "", fmt.Sprintf("unsupported format %q", format))
}

type FileSource struct {
	Path string
}

func (s FileSource) Name() string { return s.Path }

func (s FileSource) Load(ctx context.Context) ([]models.Municipality, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	format, ok := FormatFromPath(s.Path)
	if !ok {
		return nil, models.NewLoadError(s.Path, 0, "", "cannot tell the format from the file extension")
	}
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, &models.LoadError{Source: s.Path, Reason: "open failed", Err: err}
	}
	defer f.Close()
	return Parse(s.Path, format, f)
}

// ReaderSource serves an in-memory payload, e.g. an uploaded file.
type ReaderSource struct {
	Label  string
	Format Format
	Data   []byte
}

func (s ReaderSource) Name() string { return s.Label }

func (s ReaderSource) Load(ctx context.Context) ([]models.Municipality, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return Parse(s.Label, s.Format, bytes.NewReader(s.Data))
}

//go:embed seed/municipalities.csv
var seedFS embed.FS

const seedName = "seed"

// SeedSource is the built-in dataset of the largest Belgian cities.
func SeedSource() Source {
	data, err := seedFS.ReadFile("seed/municipalities.csv")
	if err != nil {
		panic(fmt.Sprintf("embedded seed dataset missing: %v", err))
	}
	return ReaderSource{Label: seedName, Format: FormatCSV, Data: data}
}

// New resolves a configured location: empty or "seed" is the embedded
// dataset, http(s) URLs are downloaded, anything else is a local path.
func New(location string, timeout time.Duration, retries int) Source {
	switch {
	case location == "" || location == seedName:
		return SeedSource()
	case strings.HasPrefix(location, "http://"), strings.HasPrefix(location, "https://"):
		return NewHTTPSource(location, timeout, retries)
	default:
		return FileSource{Path: location}
	}
}

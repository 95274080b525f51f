package ingest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"belgian-housing-api/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleCSV = "nis_code,name_nl,population,area_km2\n24062,Leuven,102275,56.63\n"

func TestSeedSource(t *testing.T) {
	records, err := SeedSource().Load(context.Background())
	require.NoError(t, err)
	assert.Len(t, records, 20)

	byCode := make(map[string]models.Municipality, len(records))
	for _, m := range records {
		assert.NotNil(t, m.Density, m.Code)
		byCode[m.Code] = m
	}
	assert.Equal(t, "Brussels", byCode["21004"].Region)
	assert.Equal(t, "Liège", byCode["62063"].NameFR)
}

func TestNewResolvesLocation(t *testing.T) {
	assert.Equal(t, seedName, New("", time.Second, 0).Name())
	assert.Equal(t, seedName, New("seed", time.Second, 0).Name())
	assert.IsType(t, &HTTPSource{}, New("https://statbel.fgov.be/x.csv", time.Second, 0))
	assert.Equal(t, FileSource{Path: "data/municipalities.csv"}, New("data/municipalities.csv", time.Second, 0))
}

func TestFormatFromPath(t *testing.T) {
	tests := map[string]Format{
		"a.csv":             FormatCSV,
		"A.XLSX":            FormatXLSX,
		"/x/y.json?page=1":  FormatJSON,
		"export.txt#anchor": FormatCSV,
	}
	for in, want := range tests {
		got, ok := FormatFromPath(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}
	_, ok := FormatFromPath("data.parquet")
	assert.False(t, ok)
}

func TestFileSource(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cities.csv")
	require.NoError(t, os.WriteFile(path, []byte(sampleCSV), 0o600))

	records, err := FileSource{Path: path}.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Leuven", records[0].Name)

	_, err = FileSource{Path: filepath.Join(dir, "missing.csv")}.Load(context.Background())
	assert.True(t, models.IsLoadError(err))
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = FileSource{Path: filepath.Join(dir, "cities.parquet")}.Load(context.Background())
	assert.True(t, models.IsLoadError(err))
}

func TestReaderSourceCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := ReaderSource{Label: "upload", Format: FormatCSV, Data: []byte(sampleCSV)}.Load(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestHTTPSource(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/typed":
			w.Header().Set("Content-Type", "text/csv; charset=utf-8")
			_, _ = w.Write([]byte(sampleCSV))
		case "/export.json":
			w.Header().Set("Content-Type", "application/octet-stream")
			_, _ = w.Write([]byte(`[{"nis_code":"24062","name":"Leuven","population":102275,"area_km2":56.63}]`))
		case "/unknown":
			w.Header().Set("Content-Type", "application/octet-stream")
			_, _ = w.Write([]byte("?"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	records, err := NewHTTPSource(srv.URL+"/typed", 5*time.Second, 0).Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "24062", records[0].Code)

	records, err = NewHTTPSource(srv.URL+"/export.json", 5*time.Second, 0).Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Leuven", records[0].Name)

	_, err = NewHTTPSource(srv.URL+"/unknown", 5*time.Second, 0).Load(context.Background())
	assert.True(t, models.IsLoadError(err))

	_, err = NewHTTPSource(srv.URL+"/missing.csv", 5*time.Second, 0).Load(context.Background())
	var lerr *models.LoadError
	require.ErrorAs(t, err, &lerr)
	assert.Contains(t, lerr.Reason, "404")
}

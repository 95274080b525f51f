package ingest

import (
	"bytes"
	"context"
	"fmt"
	"mime"
	"net/url"
	"time"

	"belgian-housing-api/models"

	"github.com/go-resty/resty/v2"
)

// HTTPSource downloads a dataset export, e.g. from statbel.fgov.be.
type HTTPSource struct {
	URL    string
	Client *resty.Client
}

func NewHTTPSource(rawURL string, timeout time.Duration, retries int) *HTTPSource {
	client := resty.New().
		SetTimeout(timeout).
		SetRetryCount(retries).
		SetRetryWaitTime(1 * time.Second).
		SetRetryMaxWaitTime(5 * time.Second).
		SetHeader("Accept", "text/csv, application/json, application/vnd.openxmlformats-officedocument.spreadsheetml.sheet;q=0.9, */*;q=0.5").
		SetHeader("User-Agent", "belgian-housing-api/1.0")
	return &HTTPSource{URL: rawURL, Client: client}
}

func (s *HTTPSource) Name() string { return s.URL }

func (s *HTTPSource) Load(ctx context.Context) ([]models.Municipality, error) {
	resp, err := s.Client.R().SetContext(ctx).Get(s.URL)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &models.LoadError{Source: s.URL, Reason: "download failed", Err: err}
	}
	if resp.IsError() {
		return nil, models.NewLoadError(s.URL, 0, "", fmt.Sprintf("unexpected status %d", resp.StatusCode()))
	}

	format, ok := formatFromContentType(resp.Header().Get("Content-Type"))
	if !ok {
		path := s.URL
		if u, perr := url.Parse(s.URL); perr == nil {
			path = u.Path
		}
		if format, ok = FormatFromPath(path); !ok {
			return nil, models.NewLoadError(s.URL, 0, "", "cannot tell the format from the response")
		}
	}
	return Parse(s.URL, format, bytes.NewReader(resp.Body()))
}

func formatFromContentType(contentType string) (Format, bool) {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return "", false
	}
	switch mediaType {
	case "text/csv", "application/csv":
		return FormatCSV, true
	case "application/json":
		return FormatJSON, true
	case "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":
		return FormatXLSX, true
	}
	return "", false
}

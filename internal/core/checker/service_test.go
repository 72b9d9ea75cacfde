package checker

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sitecheck/sitecheck/internal/core"
	"github.com/sitecheck/sitecheck/internal/core/engine"
)

func TestServiceClientCheckBulk(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/check-bulk", r.URL.Path)

		var req BulkRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, []string{"ok.com", "down.com"}, req.Domains)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"results": [
				{"domain": "ok.com", "status_code": 200, "message": "OK", "response_time_sec": 0.12, "category": "active"},
				{"domain": "down.com", "status_code": 500, "message": "Internal Server Error", "category": "error"}
			],
			"processed_at": "2025-02-03T04:05:06Z"
		}`))
	}))
	defer server.Close()

	client := &ServiceClient{BaseURL: server.URL}
	report, err := client.CheckBulk(context.Background(), []core.Domain{"ok.com", "down.com"})
	require.NoError(t, err)
	require.Len(t, report.Results, 2)
	require.Equal(t, map[core.Category]int{core.CategoryActive: 1, core.CategoryError: 1}, report.Summary.Counts)

	first := report.Results[0]
	require.Equal(t, core.Domain("ok.com"), first.Domain)
	require.Equal(t, core.StatusCode(200), first.Status)
	require.InDelta(t, 0.12, first.ResponseTime(), 1e-9)
	require.NotEmpty(t, first.CheckID)
	require.Equal(t, time.Date(2025, 2, 3, 4, 5, 6, 0, time.UTC), first.CheckedAt)

	require.Nil(t, report.Results[1].ResponseTimeSeconds)
}

func TestServiceClientPrefersServiceCategoryCounts(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{
			"results": [{"url": "https://www.ok.com/", "status_code": "200", "category": "active"}],
			"category_counts": {"active": 1, "redirects": 0}
		}`))
	}))
	defer server.Close()

	report, err := (&ServiceClient{BaseURL: server.URL}).CheckBulk(context.Background(), []core.Domain{"ok.com"})
	require.NoError(t, err)
	require.Equal(t, core.Domain("ok.com"), report.Results[0].Domain)
	require.Equal(t, "No message", report.Results[0].Message)
	require.Equal(t, 0, report.Summary.Counts["redirects"])
	require.Contains(t, report.Summary.Counts, core.Category("redirects"))
}

func TestServiceClientBulkTimeoutIsDistinct(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	client := &ServiceClient{BaseURL: server.URL, Timeout: 50 * time.Millisecond}
	report, err := client.CheckBulk(context.Background(), []core.Domain{"slow.com"})
	require.ErrorIs(t, err, core.ErrTimeout)
	require.NotErrorIs(t, err, core.ErrUnreachable)
	require.Nil(t, report)
}

func TestServiceClientUnreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	_, err := (&ServiceClient{BaseURL: url}).CheckBulk(context.Background(), []core.Domain{"a.com"})
	require.ErrorIs(t, err, core.ErrUnreachable)
}

func TestServiceClientMalformedJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"results": [`))
	}))
	defer server.Close()

	_, err := (&ServiceClient{BaseURL: server.URL}).CheckBulk(context.Background(), []core.Domain{"a.com"})
	require.ErrorIs(t, err, core.ErrBadResponse)
}

func TestServiceClientSingleTimeoutFailsSoft(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/check-single", r.URL.Path)
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	runner := &engine.PacedRunner{Prober: &ServiceClient{BaseURL: server.URL, SingleTimeout: 50 * time.Millisecond}}
	result := runner.ProbeOne(context.Background(), "slow.com")

	require.Equal(t, core.CategoryConnectionError, result.Category)
	require.Equal(t, core.StatusLabelError, result.Status.String())
	require.Equal(t, "Request timed out", result.Message)
}

func TestServiceClientCheckSingle(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req SingleRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "redirect.com", req.Domain)
		_, _ = w.Write([]byte(`{"status_code": 301, "message": "Moved", "response_time_sec": 0.5, "category": "redirect"}`))
	}))
	defer server.Close()

	result, err := (&ServiceClient{BaseURL: server.URL}).CheckSingle(context.Background(), "redirect.com")
	require.NoError(t, err)
	require.Equal(t, core.Domain("redirect.com"), result.Domain)
	require.Equal(t, core.CategoryRedirect, result.Category)
	require.Equal(t, 3, result.Status.Class())
}

func TestServiceClientUploadFile(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/file_upload", r.URL.Path)
		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		require.Equal(t, "sites.csv", header.Filename)
		data, err := io.ReadAll(file)
		require.NoError(t, err)
		require.Equal(t, "domain\nok.com\n", string(data))

		_, _ = w.Write([]byte(`{
			"results": [{"url": "http://www.ok.com", "status_code": 200, "message": "OK", "category": "active"}],
			"category_counts": {"active": 1, "error": 0},
			"processed_at": "2025-02-03 04:05:06"
		}`))
	}))
	defer server.Close()

	report, err := (&ServiceClient{BaseURL: server.URL}).UploadFile(context.Background(), "/tmp/sites.csv", strings.NewReader("domain\nok.com\n"))
	require.NoError(t, err)
	require.Len(t, report.Results, 1)
	require.Equal(t, core.Domain("ok.com"), report.Results[0].Domain)
	require.Equal(t, 1, report.Summary.Active())
	require.Equal(t, 0, report.Summary.Errors())
	require.Equal(t, time.Date(2025, 2, 3, 4, 5, 6, 0, time.UTC), report.Summary.ProcessedAt)
}

func TestServiceClientUploadErrorMessages(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		body        string
		status      int
		want        string
	}{
		{name: "JSONMessage", contentType: "application/json", body: `{"message":"No valid URLs found"}`, status: http.StatusBadRequest, want: "No valid URLs found"},
		{name: "JSONError", contentType: "application/json", body: `{"error":"bad file"}`, status: http.StatusBadRequest, want: "bad file"},
		{name: "EnvelopeError", contentType: "application/json", body: `{"error":{"code":"VALIDATION_FAILED","message":"file too large"}}`, status: http.StatusRequestEntityTooLarge, want: "file too large"},
		{name: "HTMLBody", contentType: "text/html", body: `<html>oops</html>`, status: http.StatusBadGateway, want: "HTTP 502: Bad Gateway"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", tt.contentType)
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			_, err := (&ServiceClient{BaseURL: server.URL}).UploadFile(context.Background(), "x.csv", strings.NewReader("a.com"))
			require.ErrorIs(t, err, core.ErrBadResponse)
			require.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestServiceClientUploadRejectsMissingResults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}))
	defer server.Close()

	_, err := (&ServiceClient{BaseURL: server.URL}).UploadFile(context.Background(), "x.csv", strings.NewReader("a.com"))
	require.ErrorIs(t, err, core.ErrBadResponse)
}

func TestServiceClientUploadKeepsUnnamedRows(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{
			"results": [
				{"status_code": 500, "message": "row 3 unreadable", "category": "error"},
				{"domain": "ok.com", "status_code": 200, "category": "active"},
				{"status_code": "Unknown", "message": "row 7 unreadable", "category": "error"}
			],
			"category_counts": {"error": 2, "active": 1}
		}`))
	}))
	defer server.Close()

	report, err := (&ServiceClient{BaseURL: server.URL}).UploadFile(context.Background(), "x.csv", strings.NewReader("ok.com"))
	require.NoError(t, err)
	require.Len(t, report.Results, 3)
	require.Equal(t, core.Domain("Unknown-1"), report.Results[0].Domain)
	require.Equal(t, core.Domain("ok.com"), report.Results[1].Domain)
	require.Equal(t, core.Domain("Unknown-2"), report.Results[2].Domain)

	set := core.NewResultSet(report.Results)
	require.Equal(t, 3, set.Len())
	total := 0
	for _, count := range report.Summary.Counts {
		total += count
	}
	require.Equal(t, total, set.Len())
}

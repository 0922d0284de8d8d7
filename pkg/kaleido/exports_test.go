package kaleido

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_ExportsService_PullData(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, exportCSVPath, r.URL.Path)
		assert.Equal(t, "slice-1", r.URL.Query().Get("entity_slice_id"))
		w.Header().Set("Content-Type", "text/csv")
		fmt.Fprint(w, "Compound ID,IC50\nCMP-001,42\n")
	})

	downloadPath := filepath.Join(t.TempDir(), "export.csv")
	savedPath, err := client.Exports.PullData(context.Background(), downloadPath, SearchRecordsQuery{EntitySliceID: "slice-1"})
	require.NoError(t, err)
	assert.Equal(t, downloadPath, savedPath)

	contents, err := os.ReadFile(downloadPath)
	require.NoError(t, err)
	assert.Contains(t, string(contents), "CMP-001")
}

func Test_ExportsService_PullDataWithRetry(t *testing.T) {
	var attempts atomic.Int64
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) < 3 {
			// export still assembling: JSON status body, not a CSV
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, `{"status": "pending"}`)
			return
		}
		w.Header().Set("Content-Type", "text/csv")
		fmt.Fprint(w, "Compound ID\nCMP-001\n")
	})

	client.Exports.pollDelay = time.Millisecond

	downloadPath := filepath.Join(t.TempDir(), "export.csv")
	savedPath, err := client.Exports.PullDataWithRetry(context.Background(), downloadPath, SearchRecordsQuery{})
	require.NoError(t, err)
	assert.Equal(t, downloadPath, savedPath)
	assert.EqualValues(t, 3, attempts.Load())
}

func Test_ExportsService_PullDataWithRetry_terminalError(t *testing.T) {
	var attempts atomic.Int64
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		http.Error(w, `{"detail": "forbidden"}`, http.StatusForbidden)
	})

	downloadPath := filepath.Join(t.TempDir(), "export.csv")
	_, err := client.Exports.PullDataWithRetry(context.Background(), downloadPath, SearchRecordsQuery{})

	var httpErr *HTTPStatusError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusForbidden, httpErr.StatusCode)
	// HTTP errors are terminal, only content-type rejections poll
	assert.EqualValues(t, 1, attempts.Load())
}

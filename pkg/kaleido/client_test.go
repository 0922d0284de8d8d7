package kaleido

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	logrustest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kaleidoscope-bio/kaleido-go/pkg/kaleido/auth"
)

// newTestClient builds a Client against an httptest server that answers the
// token exchange and routes everything else to handler.
func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *logrustest.Hook) {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc(auth.TokenPath, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"access_token": "test-token", "refresh_token": "test-refresh", "expires_in": 3600}`)
	})
	if handler != nil {
		mux.HandleFunc("/", handler)
	}
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	log, hook := logrustest.NewNullLogger()
	client, err := NewClient(context.Background(), Options{
		ClientID:     "test-client",
		ClientSecret: "test-secret",
		BaseURL:      server.URL,
		Log:          log,
	})
	require.NoError(t, err)

	return client, hook
}

func Test_NewClient_validatesOptions(t *testing.T) {
	testCases := []struct {
		name string
		opts Options
	}{
		{name: "missing client ID", opts: Options{ClientSecret: "secret"}},
		{name: "missing client secret", opts: Options{ClientID: "id"}},
		{name: "malformed base URL", opts: Options{ClientID: "id", ClientSecret: "secret", BaseURL: "not-a-url"}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			client, err := NewClient(context.Background(), tc.opts)
			assert.ErrorContains(t, err, "validating client options")
			assert.Nil(t, client)
		})
	}
}

func Test_NewClient_invalidCredentials(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == auth.TokenPath {
			http.Error(w, `{"detail": "invalid client"}`, http.StatusUnauthorized)
			return
		}
		t.Errorf("unexpected request to %s", r.URL.Path)
	}))
	defer server.Close()

	log, _ := logrustest.NewNullLogger()
	client, err := NewClient(context.Background(), Options{
		ClientID:     "bad-client",
		ClientSecret: "bad-secret",
		BaseURL:      server.URL,
		Log:          log,
	})
	require.NoError(t, err)
	assert.False(t, client.IsAuthenticated())

	raw, err := client.Get(context.Background(), "/records", nil)
	assert.ErrorIs(t, err, auth.ErrNotAuthenticated)
	assert.Nil(t, raw)
}

func Test_Client_Get(t *testing.T) {
	t.Run("🎉 returns raw JSON on 200", func(t *testing.T) {
		client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
			assert.Equal(t, "/records/r1", r.URL.Path)
			fmt.Fprint(w, `{"id": "r1"}`)
		})

		raw, err := client.Get(context.Background(), "/records/r1", nil)
		require.NoError(t, err)
		assert.JSONEq(t, `{"id": "r1"}`, string(raw))
	})

	t.Run("500 returns error and logs", func(t *testing.T) {
		client, hook := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, `{"detail": "boom"}`, http.StatusInternalServerError)
		})

		raw, err := client.Get(context.Background(), "/records", nil)
		assert.Nil(t, raw)

		var httpErr *HTTPStatusError
		require.ErrorAs(t, err, &httpErr)
		assert.Equal(t, http.StatusInternalServerError, httpErr.StatusCode)

		require.NotEmpty(t, hook.Entries)
		last := hook.LastEntry()
		assert.Equal(t, logrus.ErrorLevel, last.Level)
		assert.Contains(t, last.Message, "statusCode=500")
	})

	t.Run("200 with non-JSON body returns nil without error", func(t *testing.T) {
		client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, "OK")
		})

		raw, err := client.Get(context.Background(), "/records", nil)
		require.NoError(t, err)
		assert.Nil(t, raw)
	})
}

func Test_Client_PostFile(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))

		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		assert.Equal(t, "data.csv", header.Filename)

		assert.JSONEq(t, `{"field_id": "f1"}`, r.FormValue("body"))
		fmt.Fprint(w, `{"resource": {"id": "v1"}}`)
	})

	raw, err := client.PostFile(context.Background(), "/records/r1/values/file", File{
		Name:        "data.csv",
		Reader:      strings.NewReader("a,b\n1,2\n"),
		ContentType: "text/csv",
	}, map[string]any{"field_id": "f1"})
	require.NoError(t, err)

	var envelope struct {
		Resource struct {
			ID string `json:"id"`
		} `json:"resource"`
	}
	require.NoError(t, json.Unmarshal(raw, &envelope))
	assert.Equal(t, "v1", envelope.Resource.ID)
}

func Test_Client_GetFile(t *testing.T) {
	t.Run("🎉 saves CSV download", func(t *testing.T) {
		client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/csv")
			fmt.Fprint(w, "a,b\n1,2\n")
		})

		downloadPath := filepath.Join(t.TempDir(), "export.csv")
		savedPath, err := client.GetFile(context.Background(), "/records/export/csv", downloadPath, nil)
		require.NoError(t, err)
		assert.Equal(t, downloadPath, savedPath)

		contents, err := os.ReadFile(downloadPath)
		require.NoError(t, err)
		assert.Equal(t, "a,b\n1,2\n", string(contents))
	})

	t.Run("rejected content type leaves no file", func(t *testing.T) {
		client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, `{"status": "pending"}`)
		})

		downloadPath := filepath.Join(t.TempDir(), "export.csv")
		savedPath, err := client.GetFile(context.Background(), "/records/export/csv", downloadPath, nil)
		assert.ErrorIs(t, err, ErrInvalidContentType)
		assert.Empty(t, savedPath)

		_, statErr := os.Stat(downloadPath)
		assert.True(t, os.IsNotExist(statErr))
	})

	t.Run("HTTP error leaves no file", func(t *testing.T) {
		client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, `{"detail": "no export"}`, http.StatusNotFound)
		})

		downloadPath := filepath.Join(t.TempDir(), "export.csv")
		_, err := client.GetFile(context.Background(), "/records/export/csv", downloadPath, nil)

		var httpErr *HTTPStatusError
		require.ErrorAs(t, err, &httpErr)
		assert.Equal(t, http.StatusNotFound, httpErr.StatusCode)

		_, statErr := os.Stat(downloadPath)
		assert.True(t, os.IsNotExist(statErr))
	})
}

func Test_parseResponseBody(t *testing.T) {
	t.Run("nil payload yields nil without error", func(t *testing.T) {
		result, err := parseResponseBody[Record](nil)
		require.NoError(t, err)
		assert.Nil(t, result)
	})

	t.Run("mismatched shape yields error", func(t *testing.T) {
		result, err := parseResponseBody[[]Record](json.RawMessage(`{"id": "r1"}`))
		assert.ErrorContains(t, err, "unmarshalling response body")
		assert.Nil(t, result)
	})
}

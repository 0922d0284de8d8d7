package kaleido

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_RecordViewsService_ExtendView(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/record_views":
			fmt.Fprint(w, `[{"id": "view-1", "created_at": "2024-01-01T00:00:00Z", "name": "Screening", "key_field_ids": ["kf-1"]}]`)
		case r.Method == http.MethodPut && r.URL.Path == "/record_views/view-1/add_key_field":
			var payload map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
			assert.Equal(t, "kf-2", payload["key_field_id"])
			fmt.Fprint(w, `{}`)
		default:
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
	})

	view, err := client.RecordViews.GetRecordViewByName(context.Background(), "Screening")
	require.NoError(t, err)
	require.NotNil(t, view)

	require.NoError(t, view.ExtendView(context.Background(), "kf-2"))
}

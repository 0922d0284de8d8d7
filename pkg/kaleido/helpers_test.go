package kaleido

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/guregu/null"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_ExportData(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/key_fields":
			fmt.Fprint(w, `[{"id": "kf-1", "created_at": "2024-01-01T00:00:00Z", "is_key": true, "field_name": "Compound ID", "field_type": "text", "ref_slice_id": null}]`)
		case "/data_fields":
			fmt.Fprint(w, `[{"id": "df-1", "created_at": "2024-01-01T00:00:00Z", "is_key": false, "field_name": "IC50", "field_type": "number", "ref_slice_id": null}]`)
		default:
			t.Errorf("unexpected request to %s", r.URL.Path)
		}
	})

	records := []Record{
		{
			ID: "rec-1",
			RecordValues: map[string][]RecordValue{
				"kf-1":       {{Content: "CMP-001"}},
				"df-1":       {{Content: 42, CreatedAt: timestamp(t, "2024-01-01T00:00:00Z"), RecordID: null.StringFrom("rec-1")}},
				"unknown-id": {{Content: "kept under raw id"}},
			},
		},
	}

	rows, err := ExportData(context.Background(), client, records, "")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, map[string]any{
		"Compound ID": "CMP-001",
		"IC50":        42,
		"unknown-id":  "kept under raw id",
	}, rows[0])
}

package kaleido

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_EntityFieldsService_GetKeyFields(t *testing.T) {
	var requests atomic.Int64
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		assert.Equal(t, "/key_fields", r.URL.Path)
		fmt.Fprint(w, `[
			{"id": "kf-1", "created_at": "2024-01-01T00:00:00Z", "is_key": true, "field_name": "Compound ID", "field_type": "text", "ref_slice_id": null},
			{"id": "kf-2", "created_at": "2024-01-01T00:00:00Z", "is_key": true, "field_name": "Batch", "field_type": "text", "ref_slice_id": null}
		]`)
	})

	fields, err := client.EntityFields.GetKeyFields(context.Background())
	require.NoError(t, err)
	require.Len(t, fields, 2)
	assert.Equal(t, "Compound ID", fields[0].FieldName)
	assert.True(t, fields[0].IsKey)

	// second lookup hits the cache
	field, err := client.EntityFields.GetKeyFieldByName(context.Background(), "Batch")
	require.NoError(t, err)
	require.NotNil(t, field)
	assert.Equal(t, "kf-2", field.ID)
	assert.EqualValues(t, 1, requests.Load())

	missing, err := client.EntityFields.GetKeyFieldByName(context.Background(), "Nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func Test_EntityFieldsService_GetOrCreateDataField(t *testing.T) {
	var listRequests atomic.Int64
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/data_fields":
			listRequests.Add(1)
			if listRequests.Load() == 1 {
				fmt.Fprint(w, `[]`)
				return
			}
			fmt.Fprint(w, `[{"id": "df-1", "created_at": "2024-01-01T00:00:00Z", "is_key": false, "field_name": "IC50", "field_type": "number", "ref_slice_id": null}]`)
		case r.Method == http.MethodPost && r.URL.Path == "/data_fields/":
			var payload map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
			assert.Equal(t, "IC50", payload["field_name"])
			assert.Equal(t, "number", payload["field_type"])
			assert.Equal(t, map[string]any{}, payload["attrs"])
			fmt.Fprint(w, `{"id": "df-1", "created_at": "2024-01-01T00:00:00Z", "is_key": false, "field_name": "IC50", "field_type": "number", "ref_slice_id": null}`)
		default:
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
	})

	fields, err := client.EntityFields.GetDataFields(context.Background())
	require.NoError(t, err)
	assert.Empty(t, fields)

	created, err := client.EntityFields.GetOrCreateDataField(context.Background(), "IC50", FieldNumber)
	require.NoError(t, err)
	require.NotNil(t, created)
	assert.Equal(t, "df-1", created.ID)

	// the create invalidated the listing cache
	field, err := client.EntityFields.GetDataFieldByName(context.Background(), "IC50")
	require.NoError(t, err)
	require.NotNil(t, field)
	assert.Equal(t, FieldNumber, field.FieldType)
	assert.EqualValues(t, 2, listRequests.Load())
}

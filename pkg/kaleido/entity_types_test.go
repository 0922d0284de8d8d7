package kaleido

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEntityTypesClient(t *testing.T) *Client {
	t.Helper()
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/entity_slices", r.URL.Path)
		fmt.Fprint(w, `[
			{"id": "slice-1", "created_at": "2024-01-01T00:00:00Z", "name": "Compound", "key_field_ids": ["kf-1"]},
			{"id": "slice-2", "created_at": "2024-01-01T00:00:00Z", "name": "Batch", "key_field_ids": ["kf-1", "kf-2"]}
		]`)
	})
	return client
}

func Test_EntityTypesService_GetTypeByName(t *testing.T) {
	client := newEntityTypesClient(t)

	entityType, err := client.EntityTypes.GetTypeByName(context.Background(), "Batch")
	require.NoError(t, err)
	require.NotNil(t, entityType)
	assert.Equal(t, "slice-2", entityType.ID)

	missing, err := client.EntityTypes.GetTypeByName(context.Background(), "Nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func Test_EntityTypesService_GetTypesWithKeyFields(t *testing.T) {
	client := newEntityTypesClient(t)

	types, err := client.EntityTypes.GetTypesWithKeyFields(context.Background(), []string{"kf-1"})
	require.NoError(t, err)
	assert.Len(t, types, 2)

	types, err = client.EntityTypes.GetTypesWithKeyFields(context.Background(), []string{"kf-2"})
	require.NoError(t, err)
	require.Len(t, types, 1)
	assert.Equal(t, "slice-2", types[0].ID)
}

func Test_EntityTypesService_GetTypeExactKeys(t *testing.T) {
	client := newEntityTypesClient(t)

	t.Run("matches regardless of key order", func(t *testing.T) {
		entityType, err := client.EntityTypes.GetTypeExactKeys(context.Background(), []string{"kf-2", "kf-1"})
		require.NoError(t, err)
		require.NotNil(t, entityType)
		assert.Equal(t, "slice-2", entityType.ID)
	})

	t.Run("subset is not an exact match", func(t *testing.T) {
		entityType, err := client.EntityTypes.GetTypeExactKeys(context.Background(), []string{"kf-2"})
		require.NoError(t, err)
		assert.Nil(t, entityType)
	})
}

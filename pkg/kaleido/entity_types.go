package kaleido

import (
	"context"
	"fmt"
	"time"

	set "github.com/deckarep/golang-set/v2"
)

// EntityType is a slice of the workspace's entity space, defined by the set
// of key fields that identify its records.
type EntityType struct {
	ID          string    `json:"id"`
	CreatedAt   time.Time `json:"created_at"`
	Name        string    `json:"name"`
	KeyFieldIDs []string  `json:"key_field_ids"`

	client *Client
}

func (t *EntityType) String() string {
	return t.Name
}

// KeyFields fetches the key field definitions of this entity type.
func (t *EntityType) KeyFields(ctx context.Context) ([]EntityField, error) {
	allFields, err := t.client.EntityFields.GetKeyFields(ctx)
	if err != nil {
		return nil, err
	}
	wanted := set.NewSet(t.KeyFieldIDs...)
	var fields []EntityField
	for _, field := range allFields {
		if wanted.Contains(field.ID) {
			fields = append(fields, field)
		}
	}
	return fields, nil
}

// GetRecordIDs returns the IDs of all records of this entity type.
func (t *EntityType) GetRecordIDs(ctx context.Context) ([]string, error) {
	return t.client.Records.SearchRecords(ctx, SearchRecordsQuery{EntitySliceID: t.ID})
}

// GetRecords fetches all records of this entity type.
func (t *EntityType) GetRecords(ctx context.Context) ([]Record, error) {
	ids, err := t.GetRecordIDs(ctx)
	if err != nil {
		return nil, err
	}
	return t.client.Records.GetRecordsByIDs(ctx, ids)
}

// EntityTypesService lists entity types and matches them by their key-field
// composition.
type EntityTypesService struct {
	client *Client
}

func (s *EntityTypesService) decodeTypeList(ctx context.Context) ([]EntityType, error) {
	raw, err := s.client.Get(ctx, "/entity_slices", nil)
	if err != nil {
		return nil, fmt.Errorf("fetching entity types: %w", err)
	}
	types, err := parseResponseBody[[]EntityType](raw)
	if err != nil || types == nil {
		return nil, err
	}
	for i := range *types {
		(*types)[i].client = s.client
	}
	return *types, nil
}

// GetTypes fetches all entity types in the workspace.
func (s *EntityTypesService) GetTypes(ctx context.Context) ([]EntityType, error) {
	return s.decodeTypeList(ctx)
}

// GetTypeByName fetches the entity type with the given name, or nil when none
// matches.
func (s *EntityTypesService) GetTypeByName(ctx context.Context, name string) (*EntityType, error) {
	types, err := s.GetTypes(ctx)
	if err != nil {
		return nil, err
	}
	for i := range types {
		if types[i].Name == name {
			return &types[i], nil
		}
	}
	return nil, nil
}

// GetTypesWithKeyFields fetches the entity types whose key fields include
// every given key field ID.
func (s *EntityTypesService) GetTypesWithKeyFields(ctx context.Context, keyFieldIDs []string) ([]EntityType, error) {
	types, err := s.GetTypes(ctx)
	if err != nil {
		return nil, err
	}
	wanted := set.NewSet(keyFieldIDs...)
	var matched []EntityType
	for _, entityType := range types {
		if wanted.IsSubset(set.NewSet(entityType.KeyFieldIDs...)) {
			matched = append(matched, entityType)
		}
	}
	return matched, nil
}

// GetTypeExactKeys fetches the entity type whose key fields are exactly the
// given set, in any order, or nil when none matches.
func (s *EntityTypesService) GetTypeExactKeys(ctx context.Context, keyFieldIDs []string) (*EntityType, error) {
	types, err := s.GetTypes(ctx)
	if err != nil {
		return nil, err
	}
	wanted := set.NewSet(keyFieldIDs...)
	for i := range types {
		if wanted.Equal(set.NewSet(types[i].KeyFieldIDs...)) {
			return &types[i], nil
		}
	}
	return nil, nil
}

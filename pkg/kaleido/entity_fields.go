package kaleido

import (
	"context"
	"fmt"
	"time"

	"github.com/guregu/null"
)

// DataFieldType enumerates the data types a field can carry, from plain text
// and numbers to chemistry and sequence formats and external file references.
type DataFieldType string

const (
	FieldText            DataFieldType = "text"
	FieldNumber          DataFieldType = "number"
	FieldQualifiedNumber DataFieldType = "qualified-number"

	FieldSmilesString    DataFieldType = "smiles-string"
	FieldSelect          DataFieldType = "select"
	FieldMultiselect     DataFieldType = "multiselect"
	FieldMolfile         DataFieldType = "molfile"
	FieldRecordReference DataFieldType = "record-reference"
	FieldFile            DataFieldType = "file"
	FieldImage           DataFieldType = "image"
	FieldDate            DataFieldType = "date"
	FieldURL             DataFieldType = "URL"
	FieldBoolean         DataFieldType = "boolean"
	FieldEmail           DataFieldType = "email"
	FieldPhone           DataFieldType = "phone"
	FieldFormula         DataFieldType = "formula"
	FieldPeople          DataFieldType = "people"
	FieldVotes           DataFieldType = "votes"
	FieldXYArray         DataFieldType = "xy-array"
	FieldDNAOligo        DataFieldType = "dna-oligo"
	FieldRNAOligo        DataFieldType = "rna-oligo"
	FieldPeptide         DataFieldType = "peptide"
	FieldPlasmid         DataFieldType = "plasmid"
	FieldGoogleDrive     DataFieldType = "google-drive-file"
	FieldS3File          DataFieldType = "s3-file"
	FieldSnowflakeQuery  DataFieldType = "snowflake-query"
)

// EntityField is a field schema definition. Key fields identify entities,
// data fields carry their measurements and annotations.
type EntityField struct {
	ID         string        `json:"id"`
	CreatedAt  time.Time     `json:"created_at"`
	IsKey      bool          `json:"is_key"`
	FieldName  string        `json:"field_name"`
	FieldType  DataFieldType `json:"field_type"`
	RefSliceID null.String   `json:"ref_slice_id"`
}

func (f EntityField) String() string {
	return f.FieldName
}

// EntityFieldsService lists and creates key and data fields. Field listings
// are cached and the affected listing is invalidated on every create, so a
// created field is visible to the next lookup.
type EntityFieldsService struct {
	client *Client
	cache  *Cache[[]EntityField]
}

const (
	keyFieldsCacheKey  = "key_fields"
	dataFieldsCacheKey = "data_fields"
)

func NewEntityFieldsService(client *Client) *EntityFieldsService {
	return &EntityFieldsService{
		client: client,
		cache:  NewCache[[]EntityField](),
	}
}

func (s *EntityFieldsService) fetchFields(ctx context.Context, cacheKey, path string) ([]EntityField, error) {
	return s.cache.GetOrFill(cacheKey, func() ([]EntityField, error) {
		raw, err := s.client.Get(ctx, path, nil)
		if err != nil {
			return nil, fmt.Errorf("fetching %s: %w", path, err)
		}
		fields, err := parseResponseBody[[]EntityField](raw)
		if err != nil || fields == nil {
			return nil, err
		}
		return *fields, nil
	})
}

// GetKeyFields fetches all key fields in the workspace.
func (s *EntityFieldsService) GetKeyFields(ctx context.Context) ([]EntityField, error) {
	return s.fetchFields(ctx, keyFieldsCacheKey, "/key_fields")
}

// GetKeyFieldByName fetches the key field with the given name, or nil when
// none matches.
func (s *EntityFieldsService) GetKeyFieldByName(ctx context.Context, name string) (*EntityField, error) {
	fields, err := s.GetKeyFields(ctx)
	if err != nil {
		return nil, err
	}
	return fieldByName(fields, name), nil
}

// GetOrCreateKeyField fetches the key field with the given name, creating it
// when none exists.
func (s *EntityFieldsService) GetOrCreateKeyField(ctx context.Context, fieldName string) (*EntityField, error) {
	raw, err := s.client.Post(ctx, "/key_fields/", map[string]any{"field_name": fieldName})
	if err != nil {
		return nil, fmt.Errorf("getting or creating key field %s: %w", fieldName, err)
	}
	s.cache.Invalidate(keyFieldsCacheKey)
	return parseResponseBody[EntityField](raw)
}

// GetDataFields fetches all data fields in the workspace.
func (s *EntityFieldsService) GetDataFields(ctx context.Context) ([]EntityField, error) {
	return s.fetchFields(ctx, dataFieldsCacheKey, "/data_fields")
}

// GetDataFieldByName fetches the data field with the given name, or nil when
// none matches.
func (s *EntityFieldsService) GetDataFieldByName(ctx context.Context, name string) (*EntityField, error) {
	fields, err := s.GetDataFields(ctx)
	if err != nil {
		return nil, err
	}
	return fieldByName(fields, name), nil
}

// GetOrCreateDataField fetches the data field with the given name, creating
// it with the given type when none exists.
func (s *EntityFieldsService) GetOrCreateDataField(ctx context.Context, fieldName string, fieldType DataFieldType) (*EntityField, error) {
	payload := map[string]any{
		"field_name": fieldName,
		"field_type": fieldType,
		"attrs":      map[string]any{},
	}
	raw, err := s.client.Post(ctx, "/data_fields/", payload)
	if err != nil {
		return nil, fmt.Errorf("getting or creating data field %s: %w", fieldName, err)
	}
	s.cache.Invalidate(dataFieldsCacheKey)
	return parseResponseBody[EntityField](raw)
}

func fieldByName(fields []EntityField, name string) *EntityField {
	for i := range fields {
		if fields[i].FieldName == name {
			return &fields[i]
		}
	}
	return nil
}

package kaleido

import (
	"context"
	"encoding/json"
	"fmt"
)

// PushDataParams describes one bulk import: the key field names identifying
// each row, the row maps themselves and the record views to surface the
// imported records in.
type PushDataParams struct {
	// SourceID routes the import through a configured push source. Empty uses
	// the default intake.
	SourceID      string
	KeyFieldNames []string
	// Data is a list of field-name to value maps, one per record.
	Data          []map[string]any
	RecordViewIDs []string
	ProgramID     string
	SetName       string
}

// ImportsService pushes bulk data into the platform.
type ImportsService struct {
	client *Client
}

// PushData imports the given rows and returns the raw import receipt.
func (s *ImportsService) PushData(ctx context.Context, params PushDataParams) (json.RawMessage, error) {
	path := "/push/imports"
	if params.SourceID != "" {
		path += "/" + params.SourceID
	}

	payload := map[string]any{
		"key_field_names": params.KeyFieldNames,
		"data":            params.Data,
		"record_view_ids": params.RecordViewIDs,
	}
	if params.ProgramID != "" {
		payload["program_id"] = params.ProgramID
	}
	if params.SetName != "" {
		payload["set_name"] = params.SetName
	}

	raw, err := s.client.Post(ctx, path, payload)
	if err != nil {
		return nil, fmt.Errorf("pushing %d records: %w", len(params.Data), err)
	}
	return raw, nil
}

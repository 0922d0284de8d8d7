package kaleido

import (
	"context"
	"fmt"
)

// ExportData resolves the current values of the given records under the given
// activity scope and remaps the field-ID keys to field names. Fields whose ID
// is not a known key or data field keep the raw ID as the key. An empty
// activityID resolves without activity scoping.
func ExportData(ctx context.Context, c *Client, records []Record, activityID string) ([]map[string]any, error) {
	names, err := fieldNames(ctx, c)
	if err != nil {
		return nil, err
	}

	rows := make([]map[string]any, 0, len(records))
	for i := range records {
		data := records[i].ActivityData(activityID)
		row := make(map[string]any, len(data))
		for fieldID, content := range data {
			key := fieldID
			if name, ok := names[fieldID]; ok {
				key = name
			}
			row[key] = content
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func fieldNames(ctx context.Context, c *Client) (map[string]string, error) {
	keyFields, err := c.EntityFields.GetKeyFields(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching key fields for export: %w", err)
	}
	dataFields, err := c.EntityFields.GetDataFields(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching data fields for export: %w", err)
	}

	names := make(map[string]string, len(keyFields)+len(dataFields))
	for _, field := range keyFields {
		names[field.ID] = field.FieldName
	}
	for _, field := range dataFields {
		names[field.ID] = field.FieldName
	}
	return names, nil
}

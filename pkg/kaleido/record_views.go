package kaleido

import (
	"context"
	"fmt"
	"time"
)

// RecordView is a saved, filterable tabular view over records.
type RecordView struct {
	ID          string    `json:"id"`
	CreatedAt   time.Time `json:"created_at"`
	Name        string    `json:"name"`
	KeyFieldIDs []string  `json:"key_field_ids"`

	client *Client
}

func (v *RecordView) String() string {
	return v.Name
}

// ExtendView adds a key field as a new column of the view.
func (v *RecordView) ExtendView(ctx context.Context, keyFieldID string) error {
	payload := map[string]any{"key_field_id": keyFieldID}
	if _, err := v.client.Put(ctx, "/record_views/"+v.ID+"/add_key_field", payload); err != nil {
		return fmt.Errorf("extending record view %s: %w", v.ID, err)
	}
	return nil
}

// RecordViewsService lists the workspace's record views.
type RecordViewsService struct {
	client *Client
}

// GetRecordViews fetches all record views in the workspace.
func (s *RecordViewsService) GetRecordViews(ctx context.Context) ([]RecordView, error) {
	raw, err := s.client.Get(ctx, "/record_views", nil)
	if err != nil {
		return nil, fmt.Errorf("fetching record views: %w", err)
	}
	views, err := parseResponseBody[[]RecordView](raw)
	if err != nil || views == nil {
		return nil, err
	}
	for i := range *views {
		(*views)[i].client = s.client
	}
	return *views, nil
}

// GetRecordViewByName fetches the record view with the given name, or nil
// when none matches.
func (s *RecordViewsService) GetRecordViewByName(ctx context.Context, name string) (*RecordView, error) {
	views, err := s.GetRecordViews(ctx)
	if err != nil {
		return nil, err
	}
	for i := range views {
		if views[i].Name == name {
			return &views[i], nil
		}
	}
	return nil, nil
}

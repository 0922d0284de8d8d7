package kaleido

import (
	"context"
	"fmt"
	"time"

	set "github.com/deckarep/golang-set/v2"
	"github.com/guregu/null"
)

// Label is a colored tag that can be attached to activities.
type Label struct {
	ID        string      `json:"id"`
	CreatedAt time.Time   `json:"created_at"`
	Name      string      `json:"name"`
	Color     null.String `json:"color"`
}

func (l Label) String() string {
	return l.Name
}

// LabelsService lists the workspace's labels.
type LabelsService struct {
	client *Client
}

// GetLabels fetches all labels in the workspace.
func (s *LabelsService) GetLabels(ctx context.Context) ([]Label, error) {
	raw, err := s.client.Get(ctx, "/labels", nil)
	if err != nil {
		return nil, fmt.Errorf("fetching labels: %w", err)
	}
	labels, err := parseResponseBody[[]Label](raw)
	if err != nil || labels == nil {
		return nil, err
	}
	return *labels, nil
}

// GetLabelByName fetches the label with the given name, or nil when none
// matches.
func (s *LabelsService) GetLabelByName(ctx context.Context, name string) (*Label, error) {
	labels, err := s.GetLabels(ctx)
	if err != nil {
		return nil, err
	}
	for i := range labels {
		if labels[i].Name == name {
			return &labels[i], nil
		}
	}
	return nil, nil
}

// GetLabelsByIDs fetches the labels with the given IDs.
func (s *LabelsService) GetLabelsByIDs(ctx context.Context, ids []string) ([]Label, error) {
	labels, err := s.GetLabels(ctx)
	if err != nil {
		return nil, err
	}
	wanted := set.NewSet(ids...)
	var matched []Label
	for _, label := range labels {
		if wanted.Contains(label.ID) {
			matched = append(matched, label)
		}
	}
	return matched, nil
}

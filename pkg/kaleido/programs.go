package kaleido

import (
	"context"
	"fmt"
	"time"

	set "github.com/deckarep/golang-set/v2"
)

// Program is a top-level grouping of activities and records, typically one
// drug-discovery program.
type Program struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	Name      string    `json:"name"`

	client *Client
}

func (p *Program) String() string {
	return p.Name
}

// Activities fetches the activities belonging to this program.
func (p *Program) Activities(ctx context.Context) ([]Activity, error) {
	activities, err := p.client.Activities.GetActivities(ctx)
	if err != nil {
		return nil, err
	}
	var matched []Activity
	for _, activity := range activities {
		if set.NewSet(activity.ProgramIDs...).Contains(p.ID) {
			matched = append(matched, activity)
		}
	}
	return matched, nil
}

// ProgramsService lists the workspace's programs.
type ProgramsService struct {
	client *Client
}

// GetPrograms fetches all programs in the workspace.
func (s *ProgramsService) GetPrograms(ctx context.Context) ([]Program, error) {
	raw, err := s.client.Get(ctx, "/programs", nil)
	if err != nil {
		return nil, fmt.Errorf("fetching programs: %w", err)
	}
	programs, err := parseResponseBody[[]Program](raw)
	if err != nil || programs == nil {
		return nil, err
	}
	for i := range *programs {
		(*programs)[i].client = s.client
	}
	return *programs, nil
}

// GetProgramByName fetches the program with the given name, or nil when none
// matches.
func (s *ProgramsService) GetProgramByName(ctx context.Context, name string) (*Program, error) {
	programs, err := s.GetPrograms(ctx)
	if err != nil {
		return nil, err
	}
	for i := range programs {
		if programs[i].Name == name {
			return &programs[i], nil
		}
	}
	return nil, nil
}

// GetProgramsByIDs fetches the programs with the given IDs.
func (s *ProgramsService) GetProgramsByIDs(ctx context.Context, ids []string) ([]Program, error) {
	programs, err := s.GetPrograms(ctx)
	if err != nil {
		return nil, err
	}
	wanted := set.NewSet(ids...)
	var matched []Program
	for _, program := range programs {
		if wanted.Contains(program.ID) {
			matched = append(matched, program)
		}
	}
	return matched, nil
}

package kaleido

import (
	"context"
	"fmt"

	set "github.com/deckarep/golang-set/v2"
	"github.com/guregu/null"
)

// WorkspaceUser is a member of the workspace.
type WorkspaceUser struct {
	ID        string      `json:"id"`
	Email     string      `json:"email"`
	FirstName null.String `json:"first_name"`
	LastName  null.String `json:"last_name"`
}

func (u WorkspaceUser) String() string {
	return u.Email
}

// WorkspaceGroup is a named group of workspace members.
type WorkspaceGroup struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	UserIDs []string `json:"user_ids"`
}

func (g WorkspaceGroup) String() string {
	return g.Name
}

// WorkspaceService lists the workspace's members and groups.
type WorkspaceService struct {
	client *Client
}

// GetMembers fetches all members of the workspace.
func (s *WorkspaceService) GetMembers(ctx context.Context) ([]WorkspaceUser, error) {
	raw, err := s.client.Get(ctx, "/workspace/members", nil)
	if err != nil {
		return nil, fmt.Errorf("fetching workspace members: %w", err)
	}
	members, err := parseResponseBody[[]WorkspaceUser](raw)
	if err != nil || members == nil {
		return nil, err
	}
	return *members, nil
}

// GetMemberByEmail fetches the member with the given email, or nil when none
// matches.
func (s *WorkspaceService) GetMemberByEmail(ctx context.Context, email string) (*WorkspaceUser, error) {
	members, err := s.GetMembers(ctx)
	if err != nil {
		return nil, err
	}
	for i := range members {
		if members[i].Email == email {
			return &members[i], nil
		}
	}
	return nil, nil
}

// GetMembersByIDs fetches the members with the given IDs.
func (s *WorkspaceService) GetMembersByIDs(ctx context.Context, ids []string) ([]WorkspaceUser, error) {
	members, err := s.GetMembers(ctx)
	if err != nil {
		return nil, err
	}
	wanted := set.NewSet(ids...)
	var matched []WorkspaceUser
	for _, member := range members {
		if wanted.Contains(member.ID) {
			matched = append(matched, member)
		}
	}
	return matched, nil
}

// GetGroups fetches all groups in the workspace.
func (s *WorkspaceService) GetGroups(ctx context.Context) ([]WorkspaceGroup, error) {
	raw, err := s.client.Get(ctx, "/workspace/groups", nil)
	if err != nil {
		return nil, fmt.Errorf("fetching workspace groups: %w", err)
	}
	groups, err := parseResponseBody[[]WorkspaceGroup](raw)
	if err != nil || groups == nil {
		return nil, err
	}
	return *groups, nil
}

// GetGroupsByIDs fetches the groups with the given IDs.
func (s *WorkspaceService) GetGroupsByIDs(ctx context.Context, ids []string) ([]WorkspaceGroup, error) {
	groups, err := s.GetGroups(ctx)
	if err != nil {
		return nil, err
	}
	wanted := set.NewSet(ids...)
	var matched []WorkspaceGroup
	for _, group := range groups {
		if wanted.Contains(group.ID) {
			matched = append(matched, group)
		}
	}
	return matched, nil
}

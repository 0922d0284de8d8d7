package kaleido

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/guregu/null"
)

// ActivityStatus enumerates the states an activity can be in during its
// lifecycle, including general workflow states, review states and the
// domain-specific design/synthesis/test/selection states.
type ActivityStatus string

const (
	StatusRequested   ActivityStatus = "requested"
	StatusTodo        ActivityStatus = "to do"
	StatusInProgress  ActivityStatus = "in progress"
	StatusNeedsReview ActivityStatus = "needs review"
	StatusBlocked     ActivityStatus = "blocked"
	StatusPaused      ActivityStatus = "paused"
	StatusCancelled   ActivityStatus = "cancelled"
	StatusInReview    ActivityStatus = "in review"
	StatusLocked      ActivityStatus = "locked"

	StatusToReview       ActivityStatus = "to review"
	StatusUploadComplete ActivityStatus = "upload complete"

	StatusNew          ActivityStatus = "new"
	StatusInDesign     ActivityStatus = "in design"
	StatusReadyForMake ActivityStatus = "ready for make"
	StatusInSynthesis  ActivityStatus = "in synthesis"
	StatusInTest       ActivityStatus = "in test"
	StatusInAnalysis   ActivityStatus = "in analysis"
	StatusParked       ActivityStatus = "parked"
	StatusComplete     ActivityStatus = "complete"

	StatusIdeation          ActivityStatus = "ideation"
	StatusTwoDSelection     ActivityStatus = "2D selection"
	StatusComputation       ActivityStatus = "computation"
	StatusCompoundSelection ActivityStatus = "compound selection"
	StatusSelected          ActivityStatus = "selected"
	StatusQueueForSynthesis ActivityStatus = "queue for synthesis"
	StatusDataReview        ActivityStatus = "data review"

	StatusDone ActivityStatus = "done"
)

// ActivityType is the category of an activity.
type ActivityType string

const (
	ActivityTask       ActivityType = "task"
	ActivityExperiment ActivityType = "experiment"
	ActivityProject    ActivityType = "project"
	ActivityStage      ActivityType = "stage"
	ActivityMilestone  ActivityType = "milestone"
	ActivityCycle      ActivityType = "cycle"
)

// ActivityTypeLabels maps activity types to display labels.
var ActivityTypeLabels = map[ActivityType]string{
	ActivityTask:       "Task",
	ActivityExperiment: "Experiment",
	ActivityProject:    "Project",
	ActivityStage:      "Stage",
	ActivityMilestone:  "Milestone",
	ActivityCycle:      "Design cycle",
}

// Property is a typed data field attached to an activity.
type Property struct {
	ID              string        `json:"id"`
	PropertyFieldID string        `json:"property_field_id"`
	Content         any           `json:"content"`
	CreatedAt       time.Time     `json:"created_at"`
	LastUpdatedBy   string        `json:"last_updated_by"`
	CreatedBy       string        `json:"created_by"`
	PropertyName    string        `json:"property_name"`
	FieldType       DataFieldType `json:"field_type"`

	client *Client
}

func (p *Property) String() string {
	return fmt.Sprintf("%s:%v", p.PropertyName, p.Content)
}

// UpdateProperty sets a new content value and returns the updated property as
// a fresh instance decoded from the response.
func (p *Property) UpdateProperty(ctx context.Context, content any) (*Property, error) {
	raw, err := p.client.Put(ctx, "/properties/"+p.ID, map[string]any{"content": content})
	if err != nil {
		return nil, fmt.Errorf("updating property %s: %w", p.ID, err)
	}
	updated, err := parseResponseBody[Property](raw)
	if err != nil || updated == nil {
		return nil, err
	}
	updated.client = p.client
	return updated, nil
}

// UpdatePropertyFile uploads a file as the property's content and returns the
// raw response, which carries a reference to the uploaded file.
func (p *Property) UpdatePropertyFile(ctx context.Context, file File) (json.RawMessage, error) {
	raw, err := p.client.PostFile(ctx, "/properties/"+p.ID+"/file", file, nil)
	if err != nil {
		return nil, fmt.Errorf("adding file to property %s: %w", p.ID, err)
	}
	return raw, nil
}

// ActivityDefinition is a template for activities: programs, assignees,
// labels and properties stamped onto every activity created from it.
type ActivityDefinition struct {
	ID               string         `json:"id"`
	ProgramIDs       []string       `json:"program_ids"`
	Title            string         `json:"title"`
	ActivityType     ActivityType   `json:"activity_type"`
	Status           ActivityStatus `json:"status,omitempty"`
	AssignedUserIDs  []string       `json:"assigned_user_ids"`
	AssignedGroupIDs []string       `json:"assigned_group_ids"`
	LabelIDs         []string       `json:"label_ids"`
	Properties       []Property     `json:"properties"`
	ExternalID       null.String    `json:"external_id"`

	client *Client
}

func (d *ActivityDefinition) String() string {
	return d.ID + ":" + d.Title
}

// Activities fetches the activities created from this definition.
func (d *ActivityDefinition) Activities(ctx context.Context) ([]Activity, error) {
	activities, err := d.client.Activities.GetActivities(ctx)
	if err != nil {
		return nil, err
	}
	var matched []Activity
	for _, activity := range activities {
		if activity.DefinitionID.String == d.ID {
			matched = append(matched, activity)
		}
	}
	return matched, nil
}

// Activity is a unit of work (task, experiment, project...) that can be
// assigned, scheduled, organized hierarchically and linked to records.
type Activity struct {
	ID               string         `json:"id"`
	CreatedAt        time.Time      `json:"created_at"`
	ParentID         null.String    `json:"parent_id"`
	ChildIDs         []string       `json:"child_ids"`
	DefinitionID     null.String    `json:"definition_id"`
	ProgramIDs       []string       `json:"program_ids"`
	ActivityType     ActivityType   `json:"activity_type"`
	Title            string         `json:"title"`
	Description      any            `json:"description"`
	Status           ActivityStatus `json:"status"`
	AssignedUserIDs  []string       `json:"assigned_user_ids"`
	AssignedGroupIDs []string       `json:"assigned_group_ids"`
	DueDate          null.Time      `json:"due_date"`
	StartDate        null.Time      `json:"start_date"`
	Duration         null.Int       `json:"duration"`
	CompletedAtDate  null.Time      `json:"completed_at_date"`
	Dependencies     []string       `json:"dependencies"`
	LabelIDs         []string       `json:"label_ids"`
	IsDraft          bool           `json:"is_draft"`
	Properties       []Property     `json:"properties"`
	ExternalID       null.String    `json:"external_id"`
	AllRecordIDs     []string       `json:"all_record_ids"`

	client *Client
}

func (a *Activity) String() string {
	return a.ID + ":" + a.Title
}

// Definition fetches the activity definition this activity was created from,
// or nil when it has none.
func (a *Activity) Definition(ctx context.Context) (*ActivityDefinition, error) {
	if !a.DefinitionID.Valid {
		return nil, nil
	}
	return a.client.Activities.GetDefinitionByID(ctx, a.DefinitionID.String)
}

// AssignedUsers fetches the users assigned to this activity.
func (a *Activity) AssignedUsers(ctx context.Context) ([]WorkspaceUser, error) {
	return a.client.Workspace.GetMembersByIDs(ctx, a.AssignedUserIDs)
}

// AssignedGroups fetches the groups assigned to this activity.
func (a *Activity) AssignedGroups(ctx context.Context) ([]WorkspaceGroup, error) {
	return a.client.Workspace.GetGroupsByIDs(ctx, a.AssignedGroupIDs)
}

// Labels fetches the labels associated with this activity.
func (a *Activity) Labels(ctx context.Context) ([]Label, error) {
	return a.client.Labels.GetLabelsByIDs(ctx, a.LabelIDs)
}

// Programs fetches the programs this activity belongs to.
func (a *Activity) Programs(ctx context.Context) ([]Program, error) {
	return a.client.Programs.GetProgramsByIDs(ctx, a.ProgramIDs)
}

// ChildActivities fetches this activity's children.
func (a *Activity) ChildActivities(ctx context.Context) ([]Activity, error) {
	raw, err := a.client.Get(ctx, "/activities/"+a.ID+"/activities", nil)
	if err != nil {
		return nil, fmt.Errorf("fetching child activities: %w", err)
	}
	return a.client.Activities.decodeActivityList(raw)
}

// Records fetches the records associated with this activity.
func (a *Activity) Records(ctx context.Context) ([]Record, error) {
	raw, err := a.client.Get(ctx, "/operations/"+a.ID+"/records", nil)
	if err != nil {
		return nil, fmt.Errorf("fetching records for activity %s: %w", a.ID, err)
	}
	return a.client.Records.decodeRecordList(raw)
}

// GetRecord returns the activity's record with the given identifier, or nil
// when the activity has no such record.
func (a *Activity) GetRecord(ctx context.Context, identifier string) (*Record, error) {
	records, err := a.Records(ctx)
	if err != nil {
		return nil, err
	}
	for i := range records {
		if records[i].RecordIdentifier == identifier {
			return &records[i], nil
		}
	}
	return nil, nil
}

// HasRecord reports whether a record with the given identifier is in the
// activity.
func (a *Activity) HasRecord(ctx context.Context, identifier string) (bool, error) {
	record, err := a.GetRecord(ctx, identifier)
	if err != nil {
		return false, err
	}
	return record != nil, nil
}

// Update applies the given field changes and returns the updated activity as
// a fresh instance decoded from the response, leaving the receiver untouched.
func (a *Activity) Update(ctx context.Context, changes map[string]any) (*Activity, error) {
	raw, err := a.client.Put(ctx, "/activities/"+a.ID, changes)
	if err != nil {
		return nil, fmt.Errorf("updating activity %s: %w", a.ID, err)
	}
	updated, err := parseResponseBody[Activity](raw)
	if err != nil || updated == nil {
		return nil, err
	}
	updated.client = a.client
	return updated, nil
}

// AddRecords links the given records to this activity.
func (a *Activity) AddRecords(ctx context.Context, recordIDs []string) error {
	payload := map[string]any{"record_ids": recordIDs}
	if _, err := a.client.Put(ctx, "/operations/"+a.ID+"/records", payload); err != nil {
		return fmt.Errorf("adding records to activity %s: %w", a.ID, err)
	}
	return nil
}

// RecordData resolves the current per-field values of every associated record
// under this activity's scope.
func (a *Activity) RecordData(ctx context.Context) ([]map[string]any, error) {
	records, err := a.Records(ctx)
	if err != nil {
		return nil, err
	}
	data := make([]map[string]any, 0, len(records))
	for i := range records {
		data = append(data, records[i].ActivityData(a.ID))
	}
	return data, nil
}

// ActivitiesService provides CRUD and retrieval operations for activities and
// activity definitions.
type ActivitiesService struct {
	client      *Client
	definitions *Cache[[]ActivityDefinition]
}

const definitionsCacheKey = "activity_definitions"

func NewActivitiesService(client *Client) *ActivitiesService {
	return &ActivitiesService{
		client:      client,
		definitions: NewCache[[]ActivityDefinition](),
	}
}

func (s *ActivitiesService) decodeActivity(raw json.RawMessage) (*Activity, error) {
	activity, err := parseResponseBody[Activity](raw)
	if err != nil || activity == nil {
		return nil, err
	}
	activity.client = s.client
	return activity, nil
}

func (s *ActivitiesService) decodeActivityList(raw json.RawMessage) ([]Activity, error) {
	activities, err := parseResponseBody[[]Activity](raw)
	if err != nil || activities == nil {
		return nil, err
	}
	for i := range *activities {
		(*activities)[i].client = s.client
	}
	return *activities, nil
}

// CreateActivityParams holds the fields of a new activity. Optional fields
// are pointers or zero values.
type CreateActivityParams struct {
	Title                string
	ActivityType         ActivityType
	ProgramIDs           []string
	ActivityDefinitionID string
	AssignedUserIDs      []string
	StartDate            *time.Time
	Duration             *int
}

// CreateActivity creates a new activity.
func (s *ActivitiesService) CreateActivity(ctx context.Context, params CreateActivityParams) (*Activity, error) {
	programIDs := params.ProgramIDs
	if programIDs == nil {
		programIDs = []string{}
	}
	assignedUserIDs := params.AssignedUserIDs
	if assignedUserIDs == nil {
		assignedUserIDs = []string{}
	}
	var startDate any
	if params.StartDate != nil {
		startDate = params.StartDate.Format(time.RFC3339)
	}

	payload := map[string]any{
		"program_ids":       programIDs,
		"title":             params.Title,
		"activity_type":     params.ActivityType,
		"definition_id":     nullableID(params.ActivityDefinitionID),
		"record_ids":        []string{},
		"assigned_user_ids": assignedUserIDs,
		"start_date":        startDate,
		"duration":          params.Duration,
	}
	raw, err := s.client.Post(ctx, "/activities", payload)
	if err != nil {
		return nil, fmt.Errorf("creating activity %s: %w", params.Title, err)
	}

	created, err := s.decodeActivityList(raw)
	if err != nil {
		return nil, err
	}
	if len(created) == 0 {
		return nil, nil
	}
	return &created[0], nil
}

// GetActivities fetches all activities in the workspace, including
// experiments.
func (s *ActivitiesService) GetActivities(ctx context.Context) ([]Activity, error) {
	raw, err := s.client.Get(ctx, "/activities", nil)
	if err != nil {
		return nil, fmt.Errorf("fetching activities: %w", err)
	}
	return s.decodeActivityList(raw)
}

// GetActivityByID fetches one activity.
func (s *ActivitiesService) GetActivityByID(ctx context.Context, activityID string) (*Activity, error) {
	raw, err := s.client.Get(ctx, "/activities/"+activityID, nil)
	if err != nil {
		return nil, fmt.Errorf("fetching activity %s: %w", activityID, err)
	}
	return s.decodeActivity(raw)
}

// GetActivitiesByIDs fetches activities in batches of defaultBatchSize.
func (s *ActivitiesService) GetActivitiesByIDs(ctx context.Context, ids []string) ([]Activity, error) {
	var allActivities []Activity
	for i := 0; i < len(ids); i += defaultBatchSize {
		batch := ids[i:min(i+defaultBatchSize, len(ids))]
		raw, err := s.client.Get(ctx, "/activities", url.Values{"activity_ids": {strings.Join(batch, ",")}})
		if err != nil {
			return nil, fmt.Errorf("fetching activities batch: %w", err)
		}
		activities, err := s.decodeActivityList(raw)
		if err != nil {
			return nil, err
		}
		allActivities = append(allActivities, activities...)
	}
	return allActivities, nil
}

// GetDefinitions fetches all activity definitions, consulting the client's
// definitions cache.
func (s *ActivitiesService) GetDefinitions(ctx context.Context) ([]ActivityDefinition, error) {
	return s.definitions.GetOrFill(definitionsCacheKey, func() ([]ActivityDefinition, error) {
		raw, err := s.client.Get(ctx, "/activity_definitions", nil)
		if err != nil {
			return nil, fmt.Errorf("fetching activity definitions: %w", err)
		}
		definitions, err := parseResponseBody[[]ActivityDefinition](raw)
		if err != nil || definitions == nil {
			return nil, err
		}
		for i := range *definitions {
			(*definitions)[i].client = s.client
		}
		return *definitions, nil
	})
}

// GetDefinitionByName fetches the activity definition with the given title.
func (s *ActivitiesService) GetDefinitionByName(ctx context.Context, name string) (*ActivityDefinition, error) {
	definitions, err := s.GetDefinitions(ctx)
	if err != nil {
		return nil, err
	}
	for i := range definitions {
		if definitions[i].Title == name {
			return &definitions[i], nil
		}
	}
	return nil, nil
}

// GetDefinitionByID fetches the activity definition with the given ID.
func (s *ActivitiesService) GetDefinitionByID(ctx context.Context, definitionID string) (*ActivityDefinition, error) {
	definitions, err := s.GetDefinitions(ctx)
	if err != nil {
		return nil, err
	}
	for i := range definitions {
		if definitions[i].ID == definitionID {
			return &definitions[i], nil
		}
	}
	return nil, nil
}

// GetDefinitionByExternalID fetches the activity definition imported with the
// given external ID.
func (s *ActivitiesService) GetDefinitionByExternalID(ctx context.Context, externalID string) (*ActivityDefinition, error) {
	definitions, err := s.GetDefinitions(ctx)
	if err != nil {
		return nil, err
	}
	for i := range definitions {
		if definitions[i].ExternalID.String == externalID {
			return &definitions[i], nil
		}
	}
	return nil, nil
}

// GetActivitiesWithRecord fetches all activities that contain the given
// record.
func (s *ActivitiesService) GetActivitiesWithRecord(ctx context.Context, recordID string) ([]Activity, error) {
	raw, err := s.client.Get(ctx, "/records/"+recordID+"/operations", nil)
	if err != nil {
		return nil, fmt.Errorf("fetching activities with record %s: %w", recordID, err)
	}
	return s.decodeActivityList(raw)
}

package kaleido

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/alitto/pond/v2"
	set "github.com/deckarep/golang-set/v2"
	"github.com/guregu/null"
)

// FilterRuleType enumerates the filter rules that can be applied to record
// properties in searches and exports.
type FilterRuleType string

const (
	FilterIsSet   FilterRuleType = "is_set"
	FilterIsEmpty FilterRuleType = "is_empty"

	FilterIsEqual     FilterRuleType = "is_equal"
	FilterIsAnyOfText FilterRuleType = "is_any_of_text"
	FilterIsNotEqual  FilterRuleType = "is_not_equal"

	FilterIncludes       FilterRuleType = "includes"
	FilterDoesNotInclude FilterRuleType = "does_not_include"
	FilterStartsWith     FilterRuleType = "starts_with"
	FilterEndsWith       FilterRuleType = "ends_with"

	FilterIsIn    FilterRuleType = "is_in"
	FilterIsNotIn FilterRuleType = "is_not_in"

	FilterValueIsSubsetOfProps       FilterRuleType = "value_is_subset_of_props"
	FilterValueIsSupersetOfProps     FilterRuleType = "value_is_superset_of_props"
	FilterValueHasOverlapWithProps   FilterRuleType = "value_has_overlap_with_props"
	FilterValueHasNoOverlapWithProps FilterRuleType = "value_has_no_overlap_with_props"
	FilterValueHasSameElementsAsProp FilterRuleType = "value_has_same_elements_as_props"

	FilterIsLessThan         FilterRuleType = "is_less_than"
	FilterIsLessThanEqual    FilterRuleType = "is_less_than_equal"
	FilterIsGreaterThan      FilterRuleType = "is_greater_than"
	FilterIsGreaterThanEqual FilterRuleType = "is_greater_than_equal"

	FilterIsBefore  FilterRuleType = "is_before"
	FilterIsAfter   FilterRuleType = "is_after"
	FilterIsBetween FilterRuleType = "is_between"

	FilterIsBeforeRelativeDay    FilterRuleType = "is_before_relative_day"
	FilterIsAfterRelativeDay     FilterRuleType = "is_after_relative_day"
	FilterIsBetweenRelativeDay   FilterRuleType = "is_between_relative_day"
	FilterIsBeforeRelativeWeek   FilterRuleType = "is_before_relative_week"
	FilterIsAfterRelativeWeek    FilterRuleType = "is_after_relative_week"
	FilterIsBetweenRelativeWeek  FilterRuleType = "is_between_relative_week"
	FilterIsBeforeRelativeMonth  FilterRuleType = "is_before_relative_month"
	FilterIsAfterRelativeMonth   FilterRuleType = "is_after_relative_month"
	FilterIsBetweenRelativeMonth FilterRuleType = "is_between_relative_month"

	FilterIsLastWeek  FilterRuleType = "is_last_week"
	FilterIsThisWeek  FilterRuleType = "is_this_week"
	FilterIsNextWeek  FilterRuleType = "is_next_week"
	FilterIsThisMonth FilterRuleType = "is_this_month"
	FilterIsNextMonth FilterRuleType = "is_next_month"

	FilterIsLastUpdatedAfter FilterRuleType = "is_last_updated_after"
)

// ViewFieldFilter is a filter on a record-view field.
type ViewFieldFilter struct {
	KeyFieldID  null.String    `json:"key_field_id"`
	ViewFieldID null.String    `json:"view_field_id"`
	FilterType  FilterRuleType `json:"filter_type"`
	FilterProp  any            `json:"filter_prop"`
}

// ViewFieldSort is a sort criterion on a record-view field.
type ViewFieldSort struct {
	KeyFieldID  null.String `json:"key_field_id"`
	ViewFieldID null.String `json:"view_field_id"`
	Descending  bool        `json:"descending"`
}

// FieldFilter is a filter on an entity field.
type FieldFilter struct {
	FieldID    null.String    `json:"field_id"`
	FilterType FilterRuleType `json:"filter_type"`
	FilterProp any            `json:"filter_prop"`
}

// FieldSort is a sort criterion on an entity field.
type FieldSort struct {
	FieldID    null.String `json:"field_id"`
	Descending bool        `json:"descending"`
}

// RecordValue is one entry in a field's append-only value history. A null
// RecordID marks a key value shared across a record and its sub-records; a
// null OperationID marks a value not attributable to any particular activity.
type RecordValue struct {
	ID          string      `json:"id"`
	Content     any         `json:"content"`
	CreatedAt   null.Time   `json:"created_at"`
	RecordID    null.String `json:"record_id"`
	OperationID null.String `json:"operation_id"`
}

// Record is a data entity composed of per-field value histories, possibly
// with sub-records. Sub-records share the field mapping structurally and are
// distinguished by RecordID on each value.
type Record struct {
	ID                 string                   `json:"id"`
	CreatedAt          time.Time                `json:"created_at"`
	EntitySliceID      string                   `json:"entity_slice_id"`
	IdentifierIDs      []string                 `json:"identifier_ids"`
	RecordIdentifier   string                   `json:"record_identifier"`
	RecordValues       map[string][]RecordValue `json:"record_values"`
	InitialOperationID null.String              `json:"initial_operation_id"`
	SubRecordIDs       []string                 `json:"sub_record_ids"`

	client *Client
}

func (r *Record) String() string {
	return r.RecordIdentifier
}

// ValueOptions scopes value resolution. The zero value applies no scoping:
// latest own or key value wins.
type ValueOptions struct {
	// ActivityID keeps only values contributed by that activity, plus key
	// values (null RecordID), which are activity-agnostic by definition.
	ActivityID string
	// IncludeSubRecordValues keeps values contributed by sub-records. Without
	// it, only the record's own values and key values are considered.
	IncludeSubRecordValues bool
	// SubRecordID narrows to values of exactly that sub-record. It is applied
	// after the inclusion filter, so it only has an effect together with
	// IncludeSubRecordValues.
	SubRecordID string
}

// ValueContent resolves the current content of a field out of its value
// history. It is a pure function of the record and opts: the history is
// filtered per opts, then the entry with the latest CreatedAt wins. Entries
// without a timestamp sort as oldest, and ties are broken by the earliest
// position in the history list. The second return reports presence; an
// unknown field or fully filtered-out history resolves to absent.
func (r *Record) ValueContent(fieldID string, opts ValueOptions) (any, bool) {
	values := r.RecordValues[fieldID]
	if len(values) == 0 {
		return nil, false
	}

	filtered := make([]RecordValue, 0, len(values))
	for _, value := range values {
		// key values (null record_id) stay in scope for any activity
		if opts.ActivityID != "" && value.OperationID.String != opts.ActivityID && value.RecordID.Valid {
			continue
		}
		if !opts.IncludeSubRecordValues && value.RecordID.Valid && value.RecordID.String != r.ID {
			continue
		}
		if opts.SubRecordID != "" && value.RecordID.String != opts.SubRecordID {
			continue
		}
		filtered = append(filtered, value)
	}
	if len(filtered) == 0 {
		return nil, false
	}

	best := filtered[0]
	for _, value := range filtered[1:] {
		if value.CreatedAt.Valid && (!best.CreatedAt.Valid || value.CreatedAt.Time.After(best.CreatedAt.Time)) {
			best = value
		}
	}
	return best.Content, true
}

// ActivityData resolves the current value of every field under the given
// activity scope, collecting only the fields that resolved to a present
// value.
func (r *Record) ActivityData(activityID string) map[string]any {
	data := make(map[string]any)
	for fieldID := range r.RecordValues {
		if content, ok := r.ValueContent(fieldID, ValueOptions{ActivityID: activityID}); ok {
			data[fieldID] = content
		}
	}
	return data
}

// GetActivities fetches the activities associated with this record.
func (r *Record) GetActivities(ctx context.Context) ([]Activity, error) {
	raw, err := r.client.Get(ctx, "/records/"+r.ID+"/operations", nil)
	if err != nil {
		return nil, fmt.Errorf("fetching activities for record %s: %w", r.ID, err)
	}
	return r.client.Activities.decodeActivityList(raw)
}

// AddValue appends a new value to the given field, optionally attributed to
// an activity. An empty activityID records the value as not attributable.
func (r *Record) AddValue(ctx context.Context, fieldID string, content any, activityID string) error {
	payload := map[string]any{
		"content":      content,
		"field_id":     fieldID,
		"operation_id": nullableID(activityID),
	}
	if _, err := r.client.Post(ctx, "/records/"+r.ID+"/values", payload); err != nil {
		return fmt.Errorf("adding value to field %s: %w", fieldID, err)
	}
	return nil
}

// UpdateField appends a new value to the given field and returns the created
// value record. Updates never mutate history in place.
func (r *Record) UpdateField(ctx context.Context, fieldID string, content any, activityID string) (*RecordValue, error) {
	payload := map[string]any{
		"field_id":     fieldID,
		"content":      content,
		"operation_id": nullableID(activityID),
	}
	raw, err := r.client.Post(ctx, "/records/"+r.ID+"/values", payload)
	if err != nil {
		return nil, fmt.Errorf("updating field %s: %w", fieldID, err)
	}
	return decodeResource(raw)
}

// UpdateFieldFile uploads a file as the new value of the given field.
func (r *Record) UpdateFieldFile(ctx context.Context, fieldID string, file File, activityID string) (*RecordValue, error) {
	return r.client.Records.CreateRecordValueFile(ctx, r.ID, fieldID, file, activityID)
}

// GetValues fetches all value records of this record.
func (r *Record) GetValues(ctx context.Context) ([]RecordValue, error) {
	raw, err := r.client.Get(ctx, "/records/"+r.ID+"/values", nil)
	if err != nil {
		return nil, fmt.Errorf("fetching values for record %s: %w", r.ID, err)
	}
	values, err := parseResponseBody[[]RecordValue](raw)
	if err != nil || values == nil {
		return nil, err
	}
	return *values, nil
}

// RecordsService provides record CRUD and search operations.
type RecordsService struct {
	client *Client
	pool   pond.Pool
}

// defaultBatchSize is the number of IDs fetched per batched GET.
const defaultBatchSize = 250

func NewRecordsService(client *Client) *RecordsService {
	return &RecordsService{
		client: client,
		pool:   pond.NewPool(4),
	}
}

func (s *RecordsService) decodeRecord(raw json.RawMessage) (*Record, error) {
	record, err := parseResponseBody[Record](raw)
	if err != nil || record == nil {
		return nil, err
	}
	record.client = s.client
	return record, nil
}

func (s *RecordsService) decodeRecordList(raw json.RawMessage) ([]Record, error) {
	records, err := parseResponseBody[[]Record](raw)
	if err != nil || records == nil {
		return nil, err
	}
	for i := range *records {
		(*records)[i].client = s.client
	}
	return *records, nil
}

// GetRecordByID fetches one record.
func (s *RecordsService) GetRecordByID(ctx context.Context, recordID string) (*Record, error) {
	raw, err := s.client.Get(ctx, "/records/"+recordID, nil)
	if err != nil {
		return nil, fmt.Errorf("fetching record %s: %w", recordID, err)
	}
	return s.decodeRecord(raw)
}

// GetRecordsByIDs fetches records in deduplicated batches of defaultBatchSize,
// with batches issued in parallel on the service's worker pool.
func (s *RecordsService) GetRecordsByIDs(ctx context.Context, recordIDs []string) ([]Record, error) {
	ids := set.NewSet(recordIDs...).ToSlice()
	if len(ids) == 0 {
		return nil, nil
	}

	var batches [][]string
	for i := 0; i < len(ids); i += defaultBatchSize {
		batches = append(batches, ids[i:min(i+defaultBatchSize, len(ids))])
	}

	group := s.pool.NewGroupContext(ctx)
	results := make([][]Record, len(batches))
	var errs []error
	errMu := sync.Mutex{}

	for idx, batch := range batches {
		index := idx
		batch := batch
		group.Submit(func() {
			raw, err := s.client.Get(ctx, "/records", url.Values{"record_ids": {strings.Join(batch, ",")}})
			if err != nil {
				errMu.Lock()
				errs = append(errs, fmt.Errorf("fetching records batch %d: %w", index, err))
				errMu.Unlock()
				return
			}
			records, err := s.decodeRecordList(raw)
			if err != nil {
				errMu.Lock()
				errs = append(errs, fmt.Errorf("decoding records batch %d: %w", index, err))
				errMu.Unlock()
				return
			}
			results[index] = records
		})
	}
	if err := group.Wait(); err != nil {
		return nil, fmt.Errorf("waiting for record batches: %w", err)
	}
	if len(errs) > 0 {
		return nil, errs[0]
	}

	var allRecords []Record
	for _, records := range results {
		allRecords = append(allRecords, records...)
	}
	return allRecords, nil
}

// GetRecordByKeyValues fetches the record uniquely identified by the given
// key-field-name to value pairs, or nil when no record matches.
func (s *RecordsService) GetRecordByKeyValues(ctx context.Context, keyValues map[string]any) (*Record, error) {
	encoded, err := json.Marshal([]map[string]any{keyValues})
	if err != nil {
		return nil, fmt.Errorf("encoding key values: %w", err)
	}

	raw, err := s.client.Get(ctx, "/records/identifiers", url.Values{"records_key_field_to_value": {string(encoded)}})
	if err != nil {
		return nil, fmt.Errorf("fetching record by key values: %w", err)
	}

	results, err := parseResponseBody[[]struct {
		Record json.RawMessage `json:"record"`
	}](raw)
	if err != nil || results == nil || len(*results) == 0 {
		return nil, err
	}
	if (*results)[0].Record == nil {
		return nil, nil
	}
	return s.decodeRecord((*results)[0].Record)
}

// GetOrCreateRecord fetches the record matching keyValues, creating it when
// none exists.
func (s *RecordsService) GetOrCreateRecord(ctx context.Context, keyValues map[string]string) (*Record, error) {
	raw, err := s.client.Post(ctx, "/records", map[string]any{"key_field_to_value": keyValues})
	if err != nil {
		return nil, fmt.Errorf("getting or creating record: %w", err)
	}
	return s.decodeRecord(raw)
}

// SearchRecordsQuery holds the optional search criteria. Zero-valued fields
// are omitted from the request.
type SearchRecordsQuery struct {
	RecordSetID        string
	ProgramID          string
	EntitySliceID      string
	OperationID        string
	IdentifierIDs      []string
	RecordSetFilters   []string
	ViewFieldFilters   []ViewFieldFilter
	ViewFieldSorts     []ViewFieldSort
	EntityFieldFilters []FieldFilter
	EntityFieldSorts   []FieldSort
	SearchText         string
	Limit              int
}

func (q SearchRecordsQuery) values() (url.Values, error) {
	params := url.Values{}
	setString := func(key, value string) {
		if value != "" {
			params.Set(key, value)
		}
	}
	setJSON := func(key string, value any, empty bool) error {
		if empty {
			return nil
		}
		encoded, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("encoding %s: %w", key, err)
		}
		params.Set(key, string(encoded))
		return nil
	}

	setString("record_set_id", q.RecordSetID)
	setString("program_id", q.ProgramID)
	setString("entity_slice_id", q.EntitySliceID)
	setString("operation_id", q.OperationID)
	setString("search_text", q.SearchText)
	if err := setJSON("identifier_ids", q.IdentifierIDs, len(q.IdentifierIDs) == 0); err != nil {
		return nil, err
	}
	if err := setJSON("record_set_filters", q.RecordSetFilters, len(q.RecordSetFilters) == 0); err != nil {
		return nil, err
	}
	if err := setJSON("view_field_filters", q.ViewFieldFilters, len(q.ViewFieldFilters) == 0); err != nil {
		return nil, err
	}
	if err := setJSON("view_field_sorts", q.ViewFieldSorts, len(q.ViewFieldSorts) == 0); err != nil {
		return nil, err
	}
	if err := setJSON("entity_field_filters", q.EntityFieldFilters, len(q.EntityFieldFilters) == 0); err != nil {
		return nil, err
	}
	if err := setJSON("entity_field_sorts", q.EntityFieldSorts, len(q.EntityFieldSorts) == 0); err != nil {
		return nil, err
	}
	if err := setJSON("limit", q.Limit, q.Limit == 0); err != nil {
		return nil, err
	}
	return params, nil
}

// SearchRecords returns the IDs of the records matching query.
func (s *RecordsService) SearchRecords(ctx context.Context, query SearchRecordsQuery) ([]string, error) {
	params, err := query.values()
	if err != nil {
		return nil, fmt.Errorf("building search params: %w", err)
	}

	raw, err := s.client.Get(ctx, "/records/search", params)
	if err != nil {
		return nil, fmt.Errorf("searching records: %w", err)
	}

	ids, err := parseResponseBody[[]string](raw)
	if err != nil || ids == nil {
		return nil, err
	}
	return *ids, nil
}

// CreateRecordValueFile uploads a file as a new value of the given record
// field.
func (s *RecordsService) CreateRecordValueFile(ctx context.Context, recordID, fieldID string, file File, activityID string) (*RecordValue, error) {
	body := map[string]any{"field_id": fieldID}
	if activityID != "" {
		body["operation_id"] = activityID
	}

	raw, err := s.client.PostFile(ctx, "/records/"+recordID+"/values/file", file, body)
	if err != nil {
		return nil, fmt.Errorf("uploading file to record field %s: %w", fieldID, err)
	}
	return decodeResource(raw)
}

// decodeResource extracts the created value record from a {"resource": ...}
// envelope.
func decodeResource(raw json.RawMessage) (*RecordValue, error) {
	envelope, err := parseResponseBody[struct {
		Resource *RecordValue `json:"resource"`
	}](raw)
	if err != nil || envelope == nil {
		return nil, err
	}
	return envelope.Resource, nil
}

// nullableID maps an empty ID to JSON null.
func nullableID(id string) null.String {
	if id == "" {
		return null.String{}
	}
	return null.StringFrom(id)
}

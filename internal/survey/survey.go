// Package survey manages editable survey records in the local cache. Every
// edit marks the survey UNSYNCED; only the reconciler marks it SYNCED.
package survey

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mesh-intelligence/fieldsurvey/internal/logging"
	"github.com/mesh-intelligence/fieldsurvey/pkg/types"
)

// FieldTypeSource supplies the field name to field type map of the surveyed
// object and the fields its layouts let the user edit. *describe.Cache
// implements it.
type FieldTypeSource interface {
	FieldTypes(ctx context.Context) (map[string]string, error)
	EditableFields(ctx context.Context) (map[string]bool, error)
}

// Service creates, edits and lists surveys.
type Service struct {
	store  types.LocalStore
	fields FieldTypeSource
	log    *zap.SugaredLogger
	now    func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger.
func WithLogger(log *zap.SugaredLogger) Option {
	return func(s *Service) {
		s.log = log.Named(logging.ComponentSurvey)
	}
}

// WithClock overrides the time source used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// NewService creates a Service.
func NewService(store types.LocalStore, fields FieldTypeSource, opts ...Option) *Service {
	s := &Service{
		store:  store,
		fields: fields,
		log:    zap.NewNop().Sugar(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) timestamp() string {
	return s.now().UTC().Format(time.RFC3339)
}

// New creates an UNSYNCED survey of the given record type holding every
// editable field at its typed zero value. Returns the stored row.
func (s *Service) New(ctx context.Context, recordTypeID string) (types.Record, error) {
	fieldTypes, editable, err := s.loadFields(ctx)
	if err != nil {
		return types.Record{}, fmt.Errorf("load field types (refresh metadata first): %w", err)
	}

	names := make([]string, 0, len(fieldTypes))
	for name := range fieldTypes {
		if types.IsSystemField(name) || name == types.RemoteIDField || name == types.RecordTypeIDField {
			continue
		}
		if !editable[name] {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	now := s.timestamp()
	r := types.NewRecord(
		types.RemoteIDField, "",
		types.RecordTypeIDField, recordTypeID,
	)
	for _, name := range names {
		r.Set(name, types.DefaultValue(fieldTypes[name]))
	}
	r.Set(types.SyncStatusField, types.SyncStatusUnsynced).
		Set(types.ClientIDField, uuid.Must(uuid.NewV7()).String()).
		Set(types.CreatedAtField, now).
		Set(types.UpdatedAtField, now)

	res, err := s.store.SaveRecords(ctx, types.SurveysTable, []types.Record{r}, "")
	if err != nil {
		return types.Record{}, err
	}
	s.log.Infow("created survey", "localId", res.LastInsertID, "recordTypeId", recordTypeID)
	return s.Get(ctx, res.LastInsertID)
}

// SetField sets one field of a survey and marks it UNSYNCED.
func (s *Service) SetField(ctx context.Context, localID int64, name string, value any) error {
	return s.SetFields(ctx, localID, types.NewRecord(name, value))
}

// SetFields sets several fields of a survey and marks it UNSYNCED. System
// fields, the remote Id and fields no layout lets the user edit cannot be
// set; unknown fields are rejected.
func (s *Service) SetFields(ctx context.Context, localID int64, values types.Record) error {
	if values.Len() == 0 {
		return fmt.Errorf("%w: no fields to set", types.ErrInvalidArgument)
	}
	fieldTypes, editable, err := s.loadFields(ctx)
	if err != nil {
		return fmt.Errorf("load field types: %w", err)
	}
	for _, name := range values.Keys() {
		if types.IsSystemField(name) || name == types.RemoteIDField {
			return fmt.Errorf("%w: field %s is read-only", types.ErrInvalidArgument, name)
		}
		if name == types.RecordTypeIDField {
			continue
		}
		if _, ok := fieldTypes[name]; !ok {
			return fmt.Errorf("%w: unknown field %s", types.ErrInvalidArgument, name)
		}
		if !editable[name] {
			return fmt.Errorf("%w: field %s is read-only", types.ErrInvalidArgument, name)
		}
	}

	update := values.Clone()
	update.Set(types.SyncStatusField, types.SyncStatusUnsynced).
		Set(types.UpdatedAtField, s.timestamp())

	n, err := s.store.UpdateFieldValues(ctx, types.SurveysTable, update,
		types.Where(types.Eq(types.LocalIDField, localID)))
	if errors.Is(err, types.ErrTableNotFound) || (err == nil && n == 0) {
		return fmt.Errorf("survey %d: %w", localID, types.ErrNotFound)
	}
	if err != nil {
		return err
	}
	s.log.Debugw("updated survey", "localId", localID, "fields", values.Keys())
	return nil
}

func (s *Service) loadFields(ctx context.Context) (map[string]string, map[string]bool, error) {
	fieldTypes, err := s.fields.FieldTypes(ctx)
	if err != nil {
		return nil, nil, err
	}
	editable, err := s.fields.EditableFields(ctx)
	if err != nil {
		return nil, nil, err
	}
	return fieldTypes, editable, nil
}

// Get returns the survey with the given local id.
func (s *Service) Get(ctx context.Context, localID int64) (types.Record, error) {
	rows, err := s.store.GetRecords(ctx, types.SurveysTable,
		types.Where(types.Eq(types.LocalIDField, localID)))
	if errors.Is(err, types.ErrTableNotFound) || (err == nil && len(rows) == 0) {
		return types.Record{}, fmt.Errorf("survey %d: %w", localID, types.ErrNotFound)
	}
	if err != nil {
		return types.Record{}, err
	}
	return rows[0], nil
}

// List returns the surveys with the given sync status in creation order. An
// empty status lists every survey.
func (s *Service) List(ctx context.Context, status string) ([]types.Record, error) {
	var rows []types.Record
	var err error
	if status == "" {
		rows, err = s.store.GetAllRecords(ctx, types.SurveysTable)
	} else {
		rows, err = s.store.GetRecords(ctx, types.SurveysTable,
			types.Where(types.Eq(types.SyncStatusField, status)))
	}
	if errors.Is(err, types.ErrTableNotFound) {
		return []types.Record{}, nil
	}
	return rows, err
}

// Delete removes a survey from the local cache. The remote record, if any,
// is left untouched.
func (s *Service) Delete(ctx context.Context, localID int64) error {
	n, err := s.store.DeleteRecord(ctx, types.SurveysTable, localID)
	if errors.Is(err, types.ErrTableNotFound) || (err == nil && n == 0) {
		return fmt.Errorf("survey %d: %w", localID, types.ErrNotFound)
	}
	if err != nil {
		return err
	}
	s.log.Infow("deleted survey", "localId", localID)
	return nil
}

// ParseValue converts text entered by a user to the value stored for a field
// of the given remote type.
func ParseValue(fieldType, raw string) (any, error) {
	switch fieldType {
	case types.FieldTypeBoolean:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %q is not a boolean", types.ErrInvalidArgument, raw)
		}
		return b, nil
	case types.FieldTypeInt:
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %q is not an integer", types.ErrInvalidArgument, raw)
		}
		return n, nil
	case types.FieldTypeDouble, types.FieldTypeCurrency, types.FieldTypePercent:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %q is not a number", types.ErrInvalidArgument, raw)
		}
		return f, nil
	default:
		return raw, nil
	}
}

// Package describe keeps the local metadata cache: record types, edit layouts,
// picklist values, field types and localization, refreshed from the remote
// system and read back for display.
package describe

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/goccy/go-json"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/mesh-intelligence/fieldsurvey/internal/logging"
	"github.com/mesh-intelligence/fieldsurvey/internal/metrics"
	"github.com/mesh-intelligence/fieldsurvey/pkg/types"
)

// Settings keys written by a refresh.
const (
	// FieldTypesKey holds the field name to field type map.
	FieldTypesKey = "fieldTypes"
	// EditableFieldsKey holds the sorted names of the fields a layout lets
	// the user edit.
	EditableFieldsKey = "editableFields"
)

// Step identifies a completed refresh stage.
type Step string

// Refresh stages, in the order they complete.
const (
	StepRecordTypes  Step = "recordTypes"
	StepLayouts      Step = "layouts"
	StepPicklists    Step = "picklists"
	StepFieldTypes   Step = "fieldTypes"
	StepLocalization Step = "localization"
)

// Cache refreshes metadata into a LocalStore and reads it back.
type Cache struct {
	store    types.LocalStore
	client   types.MetadataClient
	settings types.SettingsStore
	log      *zap.SugaredLogger
	progress func(Step)
	memo     *cache.Cache
}

// Option configures a Cache.
type Option func(*Cache)

// WithLogger sets the logger.
func WithLogger(log *zap.SugaredLogger) Option {
	return func(c *Cache) {
		c.log = log.Named(logging.ComponentDescribe)
	}
}

// WithProgress registers a hook called after each refresh stage completes.
func WithProgress(fn func(Step)) Option {
	return func(c *Cache) {
		c.progress = fn
	}
}

// New creates a Cache. client may be nil for read-only use.
func New(store types.LocalStore, client types.MetadataClient, settings types.SettingsStore, opts ...Option) *Cache {
	c := &Cache{
		store:    store,
		client:   client,
		settings: settings,
		log:      zap.NewNop().Sugar(),
		memo:     cache.New(cache.NoExpiration, 0),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Refresh replaces every cached metadata table with fresh remote data. Any
// failure aborts the remaining stages and is returned as a *RefreshError.
// Stages already completed are not rolled back.
func (c *Cache) Refresh(ctx context.Context) error {
	start := time.Now()
	if err := c.refresh(ctx); err != nil {
		rerr := translate(err)
		metrics.ObserveRefresh(rerr.Category, time.Since(start))
		c.log.Errorw("metadata refresh failed", "category", rerr.Category, "error", err)
		return rerr
	}
	metrics.ObserveRefresh(metrics.RefreshOK, time.Since(start))
	c.log.Infow("metadata refreshed", "elapsed", time.Since(start))
	return nil
}

func (c *Cache) refresh(ctx context.Context) error {
	if c.client == nil {
		return errors.New("no metadata client configured")
	}

	recordTypes, err := c.refreshRecordTypes(ctx)
	if err != nil {
		return err
	}
	c.emit(StepRecordTypes)

	collected, err := c.refreshLayouts(ctx, recordTypes)
	if err != nil {
		return err
	}
	c.emit(StepLayouts)

	if err := c.savePicklists(ctx, collected); err != nil {
		return err
	}
	c.emit(StepPicklists)

	if err := c.saveFieldTypes(collected); err != nil {
		return err
	}
	c.emit(StepFieldTypes)

	if err := c.refreshLocalization(ctx); err != nil {
		return err
	}
	c.emit(StepLocalization)
	return nil
}

func (c *Cache) emit(step Step) {
	c.log.Debugw("refresh stage complete", "step", string(step))
	if c.progress != nil {
		c.progress(step)
	}
}

func (c *Cache) refreshRecordTypes(ctx context.Context) ([]types.RecordType, error) {
	if err := c.store.ClearTable(ctx, types.RecordTypesTable); err != nil {
		return nil, err
	}
	recordTypes, err := c.client.FetchRecordTypes(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch record types: %w", err)
	}

	rows := make([]types.Record, 0, len(recordTypes))
	for _, rt := range recordTypes {
		rows = append(rows, types.NewRecord(
			"id", rt.ID,
			"objectName", rt.ObjectName,
			"developerName", rt.DeveloperName,
			"label", rt.Label,
			"compactLayoutTitle", rt.CompactLayoutTitle,
			"layoutId", "",
		))
	}
	if _, err := c.store.SaveRecords(ctx, types.RecordTypesTable, rows, "id"); err != nil {
		return nil, err
	}
	c.log.Debugw("saved record types", "count", len(rows))
	return recordTypes, nil
}

// collected accumulates field definitions across layouts. The first
// definition of a field wins; a field is editable if any layout lets the user
// edit it.
type collected struct {
	fieldTypes    map[string]string
	editable      map[string]bool
	picklists     map[string][]types.PicklistOption
	picklistOrder []string
}

func (col *collected) add(f types.FieldDescription) {
	if f.Editable {
		col.editable[f.Name] = true
	}
	if _, seen := col.fieldTypes[f.Name]; seen {
		return
	}
	col.fieldTypes[f.Name] = f.Type
	if len(f.PicklistValues) > 0 {
		col.picklists[f.Name] = f.PicklistValues
		col.picklistOrder = append(col.picklistOrder, f.Name)
	}
}

func (c *Cache) refreshLayouts(ctx context.Context, recordTypes []types.RecordType) (*collected, error) {
	for _, table := range []string{types.LayoutSectionsTable, types.LayoutItemsTable} {
		if err := c.store.ClearTable(ctx, table); err != nil {
			return nil, err
		}
	}

	// Group record type ids by object, keeping first-seen object order.
	var objects []string
	byObject := make(map[string][]string)
	for _, rt := range recordTypes {
		if _, ok := byObject[rt.ObjectName]; !ok {
			objects = append(objects, rt.ObjectName)
		}
		byObject[rt.ObjectName] = append(byObject[rt.ObjectName], rt.ID)
	}

	col := &collected{
		fieldTypes: make(map[string]string),
		editable:   make(map[string]bool),
		picklists:  make(map[string][]types.PicklistOption),
	}
	savedLayouts := make(map[string]bool)

	for _, object := range objects {
		resp, err := c.client.DescribeLayouts(ctx, object, byObject[object])
		if err != nil {
			return nil, fmt.Errorf("describe layouts for %s: %w", object, err)
		}
		if resp == nil {
			continue
		}
		for _, layout := range resp.Layouts {
			if !savedLayouts[layout.ID] {
				if err := c.saveLayout(ctx, layout); err != nil {
					return nil, err
				}
				savedLayouts[layout.ID] = true
			}
			if layout.RecordTypeID != "" {
				_, err := c.store.UpdateFieldValues(ctx, types.RecordTypesTable,
					types.NewRecord("layoutId", layout.ID),
					types.Where(types.Eq("id", layout.RecordTypeID)))
				if err != nil {
					return nil, err
				}
			}
			for _, f := range layout.Fields {
				col.add(f)
			}
		}
	}
	return col, nil
}

// saveLayout writes the sections and items of one layout.
func (c *Cache) saveLayout(ctx context.Context, layout types.LayoutDescription) error {
	fieldTypes := make(map[string]string, len(layout.Fields))
	for _, f := range layout.Fields {
		if _, ok := fieldTypes[f.Name]; !ok {
			fieldTypes[f.Name] = f.Type
		}
	}

	var sections, items []types.Record
	for i, s := range layout.Sections {
		sectionID := s.ID
		if sectionID == "" {
			sectionID = fmt.Sprintf("%s-%d", layout.ID, i)
		}
		sections = append(sections, types.NewRecord(
			"sectionId", sectionID,
			"layoutId", layout.ID,
			"recordTypeId", layout.RecordTypeID,
			"heading", s.Heading,
			"columns", int64(s.Columns),
			"useHeading", s.UseHeading,
		))
		for _, item := range s.Items {
			items = append(items, types.NewRecord(
				"sectionId", sectionID,
				"layoutId", layout.ID,
				"fieldName", item.FieldName,
				"label", item.Label,
				"type", fieldTypes[item.FieldName],
				"required", item.Required,
				"editable", item.Editable,
			))
		}
	}

	if _, err := c.store.SaveRecords(ctx, types.LayoutSectionsTable, sections, ""); err != nil {
		return err
	}
	if _, err := c.store.SaveRecords(ctx, types.LayoutItemsTable, items, ""); err != nil {
		return err
	}
	c.log.Debugw("saved layout", "layout", layout.ID, "sections", len(sections), "items", len(items))
	return nil
}

func (c *Cache) savePicklists(ctx context.Context, col *collected) error {
	if err := c.store.ClearTable(ctx, types.PicklistValuesTable); err != nil {
		return err
	}
	var rows []types.Record
	for _, name := range col.picklistOrder {
		for _, opt := range col.picklists[name] {
			rows = append(rows, types.NewRecord(
				"fieldName", name,
				"value", opt.Value,
				"label", opt.Label,
				"isDefault", opt.IsDefault,
				"active", opt.Active,
			))
		}
	}
	_, err := c.store.SaveRecords(ctx, types.PicklistValuesTable, rows, "")
	return err
}

func (c *Cache) saveFieldTypes(col *collected) error {
	data, err := json.Marshal(col.fieldTypes)
	if err != nil {
		return fmt.Errorf("encode field types: %w", err)
	}
	if err := c.settings.Save(FieldTypesKey, data); err != nil {
		return fmt.Errorf("save field types: %w", err)
	}
	c.memo.Delete(FieldTypesKey)

	names := make([]string, 0, len(col.editable))
	for name := range col.editable {
		names = append(names, name)
	}
	sort.Strings(names)
	if data, err = json.Marshal(names); err != nil {
		return fmt.Errorf("encode editable fields: %w", err)
	}
	if err := c.settings.Save(EditableFieldsKey, data); err != nil {
		return fmt.Errorf("save editable fields: %w", err)
	}
	c.memo.Delete(EditableFieldsKey)
	return nil
}

func (c *Cache) refreshLocalization(ctx context.Context) error {
	if err := c.store.ClearTable(ctx, types.LocalizationTable); err != nil {
		return err
	}
	entries, err := c.client.FetchLocalization(ctx)
	if err != nil {
		return fmt.Errorf("fetch localization: %w", err)
	}
	rows := make([]types.Record, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, types.NewRecord("key", e.Key, "value", e.Value, "language", e.Language))
	}
	_, err = c.store.SaveRecords(ctx, types.LocalizationTable, rows, "")
	return err
}

// FieldTypes returns the field name to field type map saved by the last
// successful refresh. Returns ErrNotFound if metadata was never refreshed.
func (c *Cache) FieldTypes(ctx context.Context) (map[string]string, error) {
	if v, ok := c.memo.Get(FieldTypesKey); ok {
		return copyMap(v.(map[string]string)), nil
	}
	data, err := c.settings.Load(FieldTypesKey)
	if err != nil {
		return nil, err
	}
	fieldTypes := make(map[string]string)
	if err := json.Unmarshal(data, &fieldTypes); err != nil {
		return nil, fmt.Errorf("decode field types: %w", err)
	}
	c.memo.Set(FieldTypesKey, fieldTypes, cache.NoExpiration)
	return copyMap(fieldTypes), nil
}

// EditableFields returns the set of fields the cached layouts let the user
// edit. Returns ErrNotFound if metadata was never refreshed.
func (c *Cache) EditableFields(ctx context.Context) (map[string]bool, error) {
	if v, ok := c.memo.Get(EditableFieldsKey); ok {
		return copySet(v.([]string)), nil
	}
	data, err := c.settings.Load(EditableFieldsKey)
	if err != nil {
		return nil, err
	}
	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		return nil, fmt.Errorf("decode editable fields: %w", err)
	}
	c.memo.Set(EditableFieldsKey, names, cache.NoExpiration)
	return copySet(names), nil
}

func copySet(names []string) map[string]bool {
	out := make(map[string]bool, len(names))
	for _, name := range names {
		out[name] = true
	}
	return out
}

func copyMap(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// RecordTypes returns the cached record types in refresh order.
func (c *Cache) RecordTypes(ctx context.Context) ([]types.RecordType, error) {
	rows, err := c.readAll(ctx, types.RecordTypesTable)
	if err != nil {
		return nil, err
	}
	out := make([]types.RecordType, 0, len(rows))
	for _, r := range rows {
		out = append(out, types.RecordType{
			ID:                 r.Text("id"),
			ObjectName:         r.Text("objectName"),
			DeveloperName:      r.Text("developerName"),
			Label:              r.Text("label"),
			CompactLayoutTitle: r.Text("compactLayoutTitle"),
		})
	}
	return out, nil
}

// LayoutForRecordType returns the id of the edit layout assigned to a record
// type.
func (c *Cache) LayoutForRecordType(ctx context.Context, recordTypeID string) (string, error) {
	rows, err := c.store.GetRecords(ctx, types.RecordTypesTable, types.Where(types.Eq("id", recordTypeID)))
	if errors.Is(err, types.ErrTableNotFound) {
		return "", fmt.Errorf("record type %s: %w", recordTypeID, types.ErrNotFound)
	}
	if err != nil {
		return "", err
	}
	if len(rows) == 0 || rows[0].Text("layoutId") == "" {
		return "", fmt.Errorf("layout for record type %s: %w", recordTypeID, types.ErrNotFound)
	}
	return rows[0].Text("layoutId"), nil
}

// Picklist returns the options of a picklist field in remote order.
func (c *Cache) Picklist(ctx context.Context, fieldName string) ([]types.PicklistOption, error) {
	rows, err := c.store.GetRecords(ctx, types.PicklistValuesTable, types.Where(types.Eq("fieldName", fieldName)))
	if errors.Is(err, types.ErrTableNotFound) {
		return []types.PicklistOption{}, nil
	}
	if err != nil {
		return nil, err
	}
	out := make([]types.PicklistOption, 0, len(rows))
	for _, r := range rows {
		out = append(out, types.PicklistOption{
			Value:     r.Text("value"),
			Label:     r.Text("label"),
			IsDefault: r.Bool("isDefault"),
			Active:    r.Bool("active"),
		})
	}
	return out, nil
}

// Localization returns the cached translated labels keyed by label key.
func (c *Cache) Localization(ctx context.Context) (map[string]string, error) {
	rows, err := c.readAll(ctx, types.LocalizationTable)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(rows))
	for _, r := range rows {
		out[r.Text("key")] = r.Text("value")
	}
	return out, nil
}

// readAll reads a metadata table, treating a table that was never created as
// empty.
func (c *Cache) readAll(ctx context.Context, table string) ([]types.Record, error) {
	rows, err := c.store.GetAllRecords(ctx, table)
	if errors.Is(err, types.ErrTableNotFound) {
		return []types.Record{}, nil
	}
	return rows, err
}

package describe

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/fieldsurvey/internal/settings"
	"github.com/mesh-intelligence/fieldsurvey/internal/sqlite"
	"github.com/mesh-intelligence/fieldsurvey/pkg/types"
)

// fakeClient serves canned metadata and records the calls it receives.
type fakeClient struct {
	recordTypes  []types.RecordType
	layouts      map[string]*types.CompositeLayoutResponse
	localization []types.LocalizationEntry

	recordTypesErr  error
	layoutsErr      error
	localizationErr error

	describeCalls [][]string
}

func (f *fakeClient) FetchRecordTypes(ctx context.Context) ([]types.RecordType, error) {
	return f.recordTypes, f.recordTypesErr
}

func (f *fakeClient) DescribeLayouts(ctx context.Context, objectName string, recordTypeIDs []string) (*types.CompositeLayoutResponse, error) {
	f.describeCalls = append(f.describeCalls, append([]string{objectName}, recordTypeIDs...))
	if f.layoutsErr != nil {
		return nil, f.layoutsErr
	}
	return f.layouts[objectName], nil
}

func (f *fakeClient) FetchLocalization(ctx context.Context) ([]types.LocalizationEntry, error) {
	return f.localization, f.localizationErr
}

// surveyMetadata returns two record types, each with one layout holding one
// section with two items. Both layouts define field Status__c; the first
// definition carries the options that should be kept. Status__c is read-only
// in the second layout only.
func surveyMetadata() *fakeClient {
	return &fakeClient{
		recordTypes: []types.RecordType{
			{ID: "012A", ObjectName: "Survey__c", DeveloperName: "Site", Label: "Site Survey", CompactLayoutTitle: "Name"},
			{ID: "012B", ObjectName: "Survey__c", DeveloperName: "Pole", Label: "Pole Survey", CompactLayoutTitle: "Name"},
		},
		layouts: map[string]*types.CompositeLayoutResponse{
			"Survey__c": {Layouts: []types.LayoutDescription{
				{
					ID:           "00hA",
					RecordTypeID: "012A",
					Sections: []types.SectionDescription{{
						ID: "01BA", Heading: "Site", Columns: 2, UseHeading: true,
						Items: []types.ItemDescription{
							{FieldName: "Site_Name__c", Label: "Site Name", Required: true, Editable: true},
							{FieldName: "Status__c", Label: "Status", Editable: true},
						},
					}},
					Fields: []types.FieldDescription{
						{Name: "Site_Name__c", Label: "Site Name", Type: "string", Editable: true},
						{Name: "Status__c", Label: "Status", Type: "picklist", Editable: true, PicklistValues: []types.PicklistOption{
							{Value: "Open", Label: "Open", IsDefault: true, Active: true},
							{Value: "Closed", Label: "Closed", Active: true},
						}},
					},
				},
				{
					ID:           "00hB",
					RecordTypeID: "012B",
					Sections: []types.SectionDescription{{
						ID: "01BB", Heading: "Pole", Columns: 1,
						Items: []types.ItemDescription{
							{FieldName: "Height__c", Label: "Height", Editable: true},
							{FieldName: "Status__c", Label: "Status"},
						},
					}},
					Fields: []types.FieldDescription{
						{Name: "Height__c", Label: "Height", Type: "double", Editable: true},
						{Name: "Status__c", Label: "Status", Type: "picklist", PicklistValues: []types.PicklistOption{
							{Value: "Other", Label: "Other", Active: true},
						}},
					},
				},
			}},
		},
		localization: []types.LocalizationEntry{
			{Key: "survey.title", Value: "Survey", Language: "en_US"},
			{Key: "survey.save", Value: "Save", Language: "en_US"},
		},
	}
}

// setupCache returns a Cache over a fresh store and settings directory.
func setupCache(t *testing.T, client types.MetadataClient, opts ...Option) (*Cache, *sqlite.Store) {
	t.Helper()
	dir := t.TempDir()

	store := sqlite.NewStore()
	require.NoError(t, store.Attach(types.Config{Backend: types.BackendSQLite, DataDir: dir}))
	t.Cleanup(func() { store.Detach() })

	fs, err := settings.Open(filepath.Join(dir, settings.DirName))
	require.NoError(t, err)

	return New(store, client, fs, opts...), store
}

package describe

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/fieldsurvey/pkg/types"
)

func TestRefresh_PopulatesCache(t *testing.T) {
	client := surveyMetadata()
	c, store := setupCache(t, client)
	ctx := context.Background()

	require.NoError(t, c.Refresh(ctx))

	assert.Equal(t, [][]string{{"Survey__c", "012A", "012B"}}, client.describeCalls,
		"record types of one object should share a describe call")

	rts, err := c.RecordTypes(ctx)
	require.NoError(t, err)
	require.Len(t, rts, 2)
	assert.Equal(t, "Site Survey", rts[0].Label)
	assert.Equal(t, "Name", rts[1].CompactLayoutTitle)

	layoutID, err := c.LayoutForRecordType(ctx, "012B")
	require.NoError(t, err)
	assert.Equal(t, "00hB", layoutID)

	sections, err := store.GetAllRecords(ctx, types.LayoutSectionsTable)
	require.NoError(t, err)
	assert.Len(t, sections, 2)

	items, err := store.GetAllRecords(ctx, types.LayoutItemsTable)
	require.NoError(t, err)
	assert.Len(t, items, 4)

	loc, err := c.Localization(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"survey.title": "Survey", "survey.save": "Save"}, loc)
}

func TestRefresh_FirstFieldDefinitionWins(t *testing.T) {
	c, _ := setupCache(t, surveyMetadata())
	ctx := context.Background()
	require.NoError(t, c.Refresh(ctx))

	opts, err := c.Picklist(ctx, "Status__c")
	require.NoError(t, err)
	require.Len(t, opts, 2)
	assert.Equal(t, "Open", opts[0].Value)
	assert.True(t, opts[0].IsDefault)
	assert.Equal(t, "Closed", opts[1].Value)
	assert.False(t, opts[1].IsDefault)

	fieldTypes, err := c.FieldTypes(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"Site_Name__c": "string",
		"Status__c":    "picklist",
		"Height__c":    "double",
	}, fieldTypes)
}

func TestRefresh_ReplacesPreviousData(t *testing.T) {
	client := surveyMetadata()
	c, store := setupCache(t, client)
	ctx := context.Background()

	require.NoError(t, c.Refresh(ctx))
	_, err := c.FieldTypes(ctx)
	require.NoError(t, err)

	client.recordTypes = client.recordTypes[:1]
	client.layouts["Survey__c"].Layouts = client.layouts["Survey__c"].Layouts[:1]
	client.layouts["Survey__c"].Layouts[0].Fields = append(client.layouts["Survey__c"].Layouts[0].Fields,
		types.FieldDescription{Name: "Notes__c", Type: "textarea"})
	require.NoError(t, c.Refresh(ctx))

	rts, err := c.RecordTypes(ctx)
	require.NoError(t, err)
	assert.Len(t, rts, 1)

	items, err := store.GetAllRecords(ctx, types.LayoutItemsTable)
	require.NoError(t, err)
	assert.Len(t, items, 2)

	fieldTypes, err := c.FieldTypes(ctx)
	require.NoError(t, err)
	assert.Equal(t, "textarea", fieldTypes["Notes__c"], "memo should be dropped on refresh")
	assert.NotContains(t, fieldTypes, "Height__c")
}

func TestRefresh_SavesEditableFields(t *testing.T) {
	client := surveyMetadata()
	pole := &client.layouts["Survey__c"].Layouts[1]
	pole.Sections[0].Items = append(pole.Sections[0].Items,
		types.ItemDescription{FieldName: "CreatedById", Label: "Created By"})
	pole.Fields = append(pole.Fields,
		types.FieldDescription{Name: "CreatedById", Label: "Created By", Type: "reference"})

	c, _ := setupCache(t, client)
	ctx := context.Background()
	require.NoError(t, c.Refresh(ctx))

	editable, err := c.EditableFields(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{
		"Site_Name__c": true,
		"Status__c":    true,
		"Height__c":    true,
	}, editable, "a field editable in any layout counts as editable")

	fieldTypes, err := c.FieldTypes(ctx)
	require.NoError(t, err)
	assert.Equal(t, "reference", fieldTypes["CreatedById"], "read-only fields keep their type")

	editable["Injected__c"] = true
	again, err := c.EditableFields(ctx)
	require.NoError(t, err)
	assert.NotContains(t, again, "Injected__c", "callers get a copy of the memo")
}

func TestEditableFields_BeforeRefresh(t *testing.T) {
	c, _ := setupCache(t, surveyMetadata())
	_, err := c.EditableFields(context.Background())
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestRefresh_ReportsProgress(t *testing.T) {
	var steps []Step
	c, _ := setupCache(t, surveyMetadata(), WithProgress(func(s Step) { steps = append(steps, s) }))

	require.NoError(t, c.Refresh(context.Background()))
	assert.Equal(t, []Step{StepRecordTypes, StepLayouts, StepPicklists, StepFieldTypes, StepLocalization}, steps)
}

func TestRefresh_TranslatesErrors(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(*fakeClient)
		message  string
		category string
	}{
		{
			name: "invalid record type",
			setup: func(f *fakeClient) {
				f.layoutsErr = &types.RemoteError{Code: types.CodeInvalidRecordType, StatusCode: 404}
			},
			message:  MsgInvalidRecordType,
			category: types.CodeInvalidRecordType,
		},
		{
			name: "no editable fields",
			setup: func(f *fakeClient) {
				f.layoutsErr = &types.RemoteError{Code: types.CodeNoEditableFields}
			},
			message:  MsgNoEditableFields,
			category: types.CodeNoEditableFields,
		},
		{
			name: "other remote code",
			setup: func(f *fakeClient) {
				f.recordTypesErr = &types.RemoteError{Code: "invalid_session_id", StatusCode: 401}
			},
			message:  MsgUnexpected,
			category: CategoryUnexpected,
		},
		{
			name: "plain error",
			setup: func(f *fakeClient) {
				f.localizationErr = errors.New("connection reset")
			},
			message:  MsgUnexpected,
			category: CategoryUnexpected,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := surveyMetadata()
			tt.setup(client)
			c, _ := setupCache(t, client)

			err := c.Refresh(context.Background())
			require.Error(t, err)

			var re *RefreshError
			require.True(t, errors.As(err, &re))
			assert.Equal(t, tt.message, re.Message)
			assert.Equal(t, tt.category, re.Category)
			assert.Equal(t, tt.message, UserMessage(err))
			assert.Equal(t, tt.category == CategoryUnexpected, errors.Is(err, types.ErrUnexpected))
		})
	}
}

func TestRefresh_KeepsCompletedStagesOnFailure(t *testing.T) {
	client := surveyMetadata()
	client.layoutsErr = &types.RemoteError{Code: types.CodeInvalidRecordType}
	c, store := setupCache(t, client)
	ctx := context.Background()

	require.Error(t, c.Refresh(ctx))

	rts, err := c.RecordTypes(ctx)
	require.NoError(t, err)
	assert.Len(t, rts, 2, "record types saved before the failure stay cached")

	_, err = store.GetAllRecords(ctx, types.LayoutSectionsTable)
	assert.ErrorIs(t, err, types.ErrTableNotFound)

	_, err = c.FieldTypes(ctx)
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestRefresh_RequiresClient(t *testing.T) {
	c, _ := setupCache(t, nil)
	err := c.Refresh(context.Background())
	assert.ErrorIs(t, err, types.ErrUnexpected)
}

func TestReads_BeforeRefresh(t *testing.T) {
	c, _ := setupCache(t, surveyMetadata())
	ctx := context.Background()

	rts, err := c.RecordTypes(ctx)
	require.NoError(t, err)
	assert.Empty(t, rts)

	opts, err := c.Picklist(ctx, "Status__c")
	require.NoError(t, err)
	assert.Empty(t, opts)

	_, err = c.LayoutForRecordType(ctx, "012A")
	assert.ErrorIs(t, err, types.ErrNotFound)

	_, err = c.FieldTypes(ctx)
	assert.ErrorIs(t, err, types.ErrNotFound)
}

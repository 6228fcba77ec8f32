package cli

import (
	"bytes"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/h2non/gock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/fieldsurvey/internal/paths"
)

const instance = "https://fieldsurvey.my.salesforce.com"

// cliEnv runs commands against temporary config and data directories.
type cliEnv struct {
	t         *testing.T
	configDir string
	dataDir   string
}

func newCLIEnv(t *testing.T) *cliEnv {
	t.Helper()
	t.Setenv("FIELDSURVEY_INSTANCE_URL", "")
	t.Setenv("FIELDSURVEY_ACCESS_TOKEN", "")
	t.Setenv("FIELDSURVEY_LOG_LEVEL", "error")
	t.Setenv("FIELDSURVEY_MAX_RETRIES", "0")
	dir := t.TempDir()
	return &cliEnv{
		t:         t,
		configDir: filepath.Join(dir, "config"),
		dataDir:   filepath.Join(dir, "data"),
	}
}

func (e *cliEnv) run(args ...string) (int, string, string) {
	e.t.Helper()
	var stdout, stderr bytes.Buffer
	full := append([]string{"--config-dir", e.configDir, "--data-dir", e.dataDir}, args...)
	code := Run(full, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func (e *cliEnv) online() {
	e.t.Setenv("FIELDSURVEY_INSTANCE_URL", instance)
	e.t.Setenv("FIELDSURVEY_ACCESS_TOKEN", "token-1")
}

func mockMetadata() {
	gock.New(instance).
		Get("/services/data/v59.0/query").
		MatchParam("q", "FROM RecordType").
		Reply(200).
		JSON(map[string]any{
			"done": true,
			"records": []map[string]any{
				{"Id": "012A", "Name": "Site Survey", "DeveloperName": "Site", "SobjectType": "Survey__c"},
			},
		})
	gock.New(instance).
		Get("/services/data/v59.0/sobjects/Survey__c/describe/compactLayouts").
		Reply(200).
		JSON(map[string]any{"compactLayouts": []any{}})
	gock.New(instance).
		Post("/services/data/v59.0/composite").
		Reply(200).
		JSON(map[string]any{"compositeResponse": []map[string]any{{
			"httpStatusCode": 200,
			"referenceId":    "layout0",
			"body": map[string]any{
				"id": "00hA",
				"editLayoutSections": []map[string]any{{
					"layoutSectionId": "01BA", "heading": "Site", "columns": 1, "useHeading": true,
					"layoutRows": []map[string]any{{"layoutItems": []map[string]any{
						{
							"label": "Site Name", "required": true, "editableForNew": true, "editableForUpdate": true,
							"layoutComponents": []map[string]any{{
								"type": "Field", "value": "Site_Name__c",
								"details": map[string]any{"name": "Site_Name__c", "label": "Site Name", "type": "string"},
							}},
						},
						{
							"label": "Visited", "editableForNew": true, "editableForUpdate": true,
							"layoutComponents": []map[string]any{{
								"type": "Field", "value": "Visited__c",
								"details": map[string]any{"name": "Visited__c", "label": "Visited", "type": "boolean"},
							}},
						},
						{
							"label": "Created By", "editableForNew": false, "editableForUpdate": false,
							"layoutComponents": []map[string]any{{
								"type": "Field", "value": "CreatedById",
								"details": map[string]any{"name": "CreatedById", "label": "Created By", "type": "reference"},
							}},
						},
					}}},
				}},
			},
		}}})
	gock.New(instance).
		Get("/services/apexrest/localization").
		Reply(200).
		JSON([]map[string]string{{"key": "survey.title", "value": "Survey"}})
}

// jsonBody matches requests whose JSON body decodes to exactly want.
func jsonBody(want map[string]any) gock.MatchFunc {
	return func(req *http.Request, _ *gock.Request) (bool, error) {
		data, err := io.ReadAll(req.Body)
		if err != nil {
			return false, err
		}
		req.Body = io.NopCloser(bytes.NewReader(data))
		var got map[string]any
		if err := json.Unmarshal(data, &got); err != nil {
			return false, err
		}
		return reflect.DeepEqual(want, got), nil
	}
}

func TestVersion(t *testing.T) {
	e := newCLIEnv(t)
	code, out, _ := e.run("version")
	assert.Equal(t, exitSuccess, code)
	assert.Contains(t, out, "fieldsurvey v"+Version)
}

func TestInit(t *testing.T) {
	e := newCLIEnv(t)

	code, out, stderr := e.run("init")
	require.Equal(t, exitSuccess, code, stderr)
	assert.Contains(t, out, "(created)")

	data, err := os.ReadFile(paths.ConfigFile(e.configDir))
	require.NoError(t, err)
	assert.Contains(t, string(data), "api_version: v59.0")
	assert.Contains(t, string(data), "object_name: Survey__c")
	assert.NotContains(t, string(data), "access_token")

	assert.DirExists(t, filepath.Join(e.dataDir, "settings"))

	code, out, _ = e.run("init")
	assert.Equal(t, exitSuccess, code)
	assert.NotContains(t, out, "(created)", "existing config is kept")
}

func TestRefreshSurveySync(t *testing.T) {
	defer gock.Off()
	e := newCLIEnv(t)
	e.online()
	mockMetadata()

	code, out, stderr := e.run("refresh")
	require.Equal(t, exitSuccess, code, stderr)
	assert.Contains(t, out, "1 record types")

	code, out, _ = e.run("record-types")
	require.Equal(t, exitSuccess, code)
	assert.Contains(t, out, "Site Survey")

	code, out, _ = e.run("--json", "layout", "012A")
	require.Equal(t, exitSuccess, code)
	assert.Contains(t, out, `"name": "Site_Name__c"`)

	code, out, stderr = e.run("survey", "new", "012A")
	require.Equal(t, exitSuccess, code, stderr)
	assert.Equal(t, "Created survey 1\n", out)

	code, _, stderr = e.run("survey", "set", "1", "Site_Name__c=North ridge", "Visited__c=true")
	require.Equal(t, exitSuccess, code, stderr)

	code, out, _ = e.run("survey", "list", "--status", "unsynced")
	require.Equal(t, exitSuccess, code)
	assert.Contains(t, out, "UNSYNCED")

	code, _, _ = e.run("survey", "set", "1", "CreatedById=005000000000001")
	assert.Equal(t, exitUserError, code, "read-only fields cannot be set")

	gock.New(instance).
		Post("/services/data/v59.0/sobjects/Survey__c/").
		AddMatcher(jsonBody(map[string]any{
			"RecordTypeId": "012A",
			"Site_Name__c": "North ridge",
			"Visited__c":   true,
		})).
		Reply(201).
		JSON(map[string]any{"id": "a0B000000000001", "success": true})

	code, out, stderr = e.run("sync")
	require.Equal(t, exitSuccess, code, stderr)
	assert.Contains(t, out, "Synced 1 surveys, 0 failed")

	code, out, _ = e.run("survey", "show", "1")
	require.Equal(t, exitSuccess, code)
	assert.Contains(t, out, `"_syncStatus": "SYNCED"`)
	assert.Contains(t, out, `"Id": "a0B000000000001"`)
	assert.Contains(t, out, `"Site_Name__c": "North ridge"`)
	assert.True(t, gock.IsDone())
}

func TestRefresh_ShowsUserMessage(t *testing.T) {
	defer gock.Off()
	e := newCLIEnv(t)
	e.online()

	gock.New(instance).
		Get("/services/data/v59.0/query").
		Reply(401).
		JSON([]map[string]string{{"errorCode": "INVALID_SESSION_ID", "message": "Session expired"}})

	code, _, stderr := e.run("refresh")
	assert.Equal(t, exitSysError, code)
	assert.Contains(t, stderr, "An unexpected error occurred")
}

func TestRemoteCommands_RequireCredentials(t *testing.T) {
	e := newCLIEnv(t)

	code, _, stderr := e.run("sync")
	assert.Equal(t, exitUserError, code)
	assert.Contains(t, stderr, "instance URL is required")
}

func TestUserErrors(t *testing.T) {
	e := newCLIEnv(t)

	tests := []struct {
		name string
		args []string
	}{
		{"bad survey id", []string{"survey", "show", "abc"}},
		{"missing survey", []string{"survey", "delete", "7"}},
		{"unknown record type layout", []string{"layout", "012X"}},
		{"unknown record type survey", []string{"survey", "new", "012X"}},
		{"bad assignment", []string{"survey", "set", "1", "nonsense"}},
		{"unknown command", []string{"bogus"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, _, stderr := e.run(tt.args...)
			assert.Equal(t, exitUserError, code, stderr)
		})
	}
}

func TestClear(t *testing.T) {
	defer gock.Off()
	e := newCLIEnv(t)
	e.online()
	mockMetadata()

	code, _, stderr := e.run("refresh")
	require.Equal(t, exitSuccess, code, stderr)
	code, _, stderr = e.run("survey", "new", "012A")
	require.Equal(t, exitSuccess, code, stderr)

	code, _, stderr = e.run("clear")
	assert.Equal(t, exitUserError, code)
	assert.True(t, strings.Contains(stderr, "not synced"), stderr)

	code, out, stderr := e.run("clear", "--force")
	require.Equal(t, exitSuccess, code, stderr)
	assert.Contains(t, out, "cleared")

	code, out, _ = e.run("survey", "list")
	require.Equal(t, exitSuccess, code)
	assert.NotContains(t, out, "UNSYNCED")
}

func TestExportImport(t *testing.T) {
	defer gock.Off()
	e := newCLIEnv(t)
	e.online()
	mockMetadata()

	code, _, stderr := e.run("refresh")
	require.Equal(t, exitSuccess, code, stderr)
	code, _, stderr = e.run("survey", "new", "012A")
	require.Equal(t, exitSuccess, code, stderr)

	path := filepath.Join(t.TempDir(), "out.jsonl")
	code, out, stderr := e.run("survey", "export", path)
	require.Equal(t, exitSuccess, code, stderr)
	assert.Contains(t, out, "Exported 1 surveys")

	code, out, stderr = e.run("survey", "import", path)
	require.Equal(t, exitSuccess, code, stderr)
	assert.Contains(t, out, "Imported 1 surveys")

	code, out, _ = e.run("--json", "survey", "list")
	require.Equal(t, exitSuccess, code)
	assert.Equal(t, 2, strings.Count(out, `"_clientId"`))
}

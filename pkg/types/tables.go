package types

// Standard table names in the local cache.
const (
	RecordTypesTable    = "recordTypes"
	LayoutSectionsTable = "layoutSections"
	LayoutItemsTable    = "layoutItems"
	PicklistValuesTable = "picklistValues"
	LocalizationTable   = "localization"
	SurveysTable        = "surveys"
)

// KnownTables is the table registry dropped by LocalStore.ClearDatabase.
var KnownTables = []string{
	RecordTypesTable,
	LayoutSectionsTable,
	LayoutItemsTable,
	PicklistValuesTable,
	LocalizationTable,
	SurveysTable,
}

// Synthetic and bookkeeping columns. Names starting with an underscore are
// local-only and never sent to the remote system.
const (
	LocalIDField    = "_localId"
	SyncStatusField = "_syncStatus"
	ClientIDField   = "_clientId"
	CreatedAtField  = "_createdAt"
	UpdatedAtField  = "_updatedAt"

	// RemoteIDField holds the identifier assigned by the remote system.
	RemoteIDField     = "Id"
	RecordTypeIDField = "RecordTypeId"
)

// Sync states of an editable record.
const (
	SyncStatusSynced   = "SYNCED"
	SyncStatusUnsynced = "UNSYNCED"
)

package types

import "context"

// MetadataClient fetches object metadata from the remote system.
type MetadataClient interface {
	FetchRecordTypes(ctx context.Context) ([]RecordType, error)
	DescribeLayouts(ctx context.Context, objectName string, recordTypeIDs []string) (*CompositeLayoutResponse, error)
	FetchLocalization(ctx context.Context) ([]LocalizationEntry, error)
}

// RemoteResult is the outcome of a successful create-or-update call.
type RemoteResult struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// Remote result statuses.
const (
	RemoteStatusCreated = "created"
	RemoteStatusUpdated = "updated"
)

// RecordClient pushes local records to the remote system. A record with an
// empty Id field is created, otherwise it is updated.
type RecordClient interface {
	CreateOrUpdate(ctx context.Context, record Record) (RemoteResult, error)
}

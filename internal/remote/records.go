package remote

import (
	"context"
	"net/http"
	"net/url"

	"github.com/mesh-intelligence/fieldsurvey/pkg/types"
)

type createResponse struct {
	ID      string `json:"id"`
	Success bool   `json:"success"`
}

// outgoingFields returns the fields of rec sent to the remote. Local bookkeeping
// fields and Id are dropped; empty text is sent as null.
func outgoingFields(rec types.Record) types.Record {
	var out types.Record
	rec.Each(func(name string, value any) {
		if types.IsSystemField(name) || name == types.RemoteIDField {
			return
		}
		if s, ok := value.(string); ok && s == "" {
			value = nil
		}
		out.Set(name, value)
	})
	return out
}

// CreateOrUpdate creates rec on the remote when it has no Id and updates the
// existing remote record otherwise.
func (c *Client) CreateOrUpdate(ctx context.Context, rec types.Record) (types.RemoteResult, error) {
	object := c.cfg.ObjectName
	body := outgoingFields(rec)

	if id := rec.Text(types.RemoteIDField); id != "" {
		path := c.dataPath("/sobjects/%s/%s", object, url.PathEscape(id))
		if _, err := c.do(ctx, opUpdate, http.MethodPatch, path, body, nil); err != nil {
			return types.RemoteResult{}, err
		}
		return types.RemoteResult{ID: id, Status: types.RemoteStatusUpdated}, nil
	}

	var created createResponse
	if _, err := c.do(ctx, opCreate, http.MethodPost, c.dataPath("/sobjects/%s/", object), body, &created); err != nil {
		return types.RemoteResult{}, err
	}
	if created.ID == "" {
		return types.RemoteResult{}, &types.RemoteError{Message: "create returned no id"}
	}
	return types.RemoteResult{ID: created.ID, Status: types.RemoteStatusCreated}, nil
}

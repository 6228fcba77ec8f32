package reconcile

import (
	"context"
	"errors"

	"github.com/mesh-intelligence/fieldsurvey/pkg/types"
)

// FieldSource describes the fields of the synced object. *describe.Cache
// implements it.
type FieldSource interface {
	FieldTypes(ctx context.Context) (map[string]string, error)
	EditableFields(ctx context.Context) (map[string]bool, error)
}

// WithFields makes the reconciler send only editable fields and restore
// boolean values, which the local store keeps as 1 or 0.
func WithFields(src FieldSource) Option {
	return func(r *Reconciler) {
		r.fields = src
	}
}

// fieldSet is the field metadata applied to outgoing records.
type fieldSet struct {
	fieldTypes map[string]string
	editable   map[string]bool
}

// loadFields returns nil when no source is configured or metadata was never
// refreshed; records are then pushed as stored.
func (r *Reconciler) loadFields(ctx context.Context) (*fieldSet, error) {
	if r.fields == nil {
		return nil, nil
	}
	fieldTypes, err := r.fields.FieldTypes(ctx)
	if err == nil {
		var editable map[string]bool
		if editable, err = r.fields.EditableFields(ctx); err == nil {
			return &fieldSet{fieldTypes: fieldTypes, editable: editable}, nil
		}
	}
	if errors.Is(err, types.ErrNotFound) {
		r.log.Warnw("no field metadata cached, pushing records as stored")
		return nil, nil
	}
	return nil, err
}

// outgoing returns rec without the fields the remote does not let the user
// edit, with boolean fields as true or false. Bookkeeping fields, Id and
// RecordTypeId are kept for the client to handle.
func (fs *fieldSet) outgoing(rec types.Record) types.Record {
	if fs == nil {
		return rec
	}
	var out types.Record
	rec.Each(func(name string, value any) {
		switch {
		case types.IsSystemField(name), name == types.RemoteIDField, name == types.RecordTypeIDField:
		case !fs.editable[name]:
			return
		case fs.fieldTypes[name] == types.FieldTypeBoolean:
			value = rec.Bool(name)
		}
		out.Set(name, value)
	})
	return out
}

// Package reconcile pushes locally edited surveys to the remote system and
// records the outcome on each local row.
package reconcile

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/mesh-intelligence/fieldsurvey/internal/logging"
	"github.com/mesh-intelligence/fieldsurvey/internal/metrics"
	"github.com/mesh-intelligence/fieldsurvey/pkg/types"
)

// Failure describes one record that could not be pushed.
type Failure struct {
	LocalID  int64
	ClientID string
	Err      error
}

// Result is the aggregate outcome of a push.
type Result struct {
	Succeeded int
	Failed    int
	Failures  []Failure
}

// Progress is reported after each record is processed.
type Progress struct {
	Done    int
	Total   int
	LocalID int64
	Err     error
}

// Reconciler pushes UNSYNCED surveys through a RecordClient.
type Reconciler struct {
	store    types.LocalStore
	client   types.RecordClient
	table    string
	fields   FieldSource
	log      *zap.SugaredLogger
	progress func(Progress)
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithLogger sets the logger.
func WithLogger(log *zap.SugaredLogger) Option {
	return func(r *Reconciler) {
		r.log = log.Named(logging.ComponentReconcile)
	}
}

// WithProgress registers a hook called after each record.
func WithProgress(fn func(Progress)) Option {
	return func(r *Reconciler) {
		r.progress = fn
	}
}

// WithTable overrides the table holding the records, surveys by default.
func WithTable(table string) Option {
	return func(r *Reconciler) {
		r.table = table
	}
}

// New creates a Reconciler.
func New(store types.LocalStore, client types.RecordClient, opts ...Option) *Reconciler {
	r := &Reconciler{
		store:  store,
		client: client,
		table:  types.SurveysTable,
		log:    zap.NewNop().Sugar(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run loads every UNSYNCED record and pushes it. A table that does not exist
// yet means there is nothing to push.
func (r *Reconciler) Run(ctx context.Context) (Result, error) {
	records, err := r.store.GetRecords(ctx, r.table,
		types.Where(types.Eq(types.SyncStatusField, types.SyncStatusUnsynced)))
	if errors.Is(err, types.ErrTableNotFound) {
		return Result{}, nil
	}
	if err != nil {
		return Result{}, fmt.Errorf("load unsynced records: %w", err)
	}
	return r.Push(ctx, records)
}

// Push sends records to the remote system in order. A record that fails is
// left UNSYNCED and the push continues with the next one. On success the
// local row is marked SYNCED and takes the remote Id. Rows are never deleted.
//
// The context is checked between records: once it is done the remaining
// records are left UNSYNCED and the context error is returned with the
// partial result.
func (r *Reconciler) Push(ctx context.Context, records []types.Record) (Result, error) {
	var res Result
	defer func() {
		metrics.ObserveSync(res.Succeeded, res.Failed)
	}()

	fields, err := r.loadFields(ctx)
	if err != nil {
		return res, fmt.Errorf("load field metadata: %w", err)
	}

	for i, rec := range records {
		if err := ctx.Err(); err != nil {
			r.log.Warnw("sync interrupted", "done", i, "total", len(records))
			return res, err
		}

		localID, _ := rec.LocalID()
		err := r.pushOne(ctx, localID, fields.outgoing(rec))
		if err != nil {
			res.Failed++
			res.Failures = append(res.Failures, Failure{
				LocalID:  localID,
				ClientID: rec.Text(types.ClientIDField),
				Err:      err,
			})
			r.log.Warnw("record push failed", "localId", localID, "error", err)
		} else {
			res.Succeeded++
		}

		if r.progress != nil {
			r.progress(Progress{Done: i + 1, Total: len(records), LocalID: localID, Err: err})
		}
	}

	r.log.Infow("sync finished", "succeeded", res.Succeeded, "failed", res.Failed)
	return res, nil
}

// pushOne runs to completion once started: cancelling ctx does not abort the
// remote call or the local status write that follows it.
func (r *Reconciler) pushOne(ctx context.Context, localID int64, rec types.Record) error {
	if localID == 0 {
		return fmt.Errorf("%w: record has no %s", types.ErrInvalidArgument, types.LocalIDField)
	}
	ctx = context.WithoutCancel(ctx)

	remote, err := r.client.CreateOrUpdate(ctx, rec)
	if err != nil {
		return err
	}

	update := types.NewRecord(types.SyncStatusField, types.SyncStatusSynced)
	if remote.ID != "" {
		update.Set(types.RemoteIDField, remote.ID)
	}
	n, err := r.store.UpdateFieldValues(ctx, r.table, update,
		types.Where(types.Eq(types.LocalIDField, localID)))
	if err != nil {
		return fmt.Errorf("mark record %d synced: %w", localID, err)
	}
	if n == 0 {
		return fmt.Errorf("mark record %d synced: %w", localID, types.ErrNotFound)
	}
	r.log.Debugw("record pushed", "localId", localID, "remoteId", remote.ID, "status", remote.Status)
	return nil
}

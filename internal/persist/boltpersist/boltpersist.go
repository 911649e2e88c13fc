// Package boltpersist implements the default local persistence
// extension: a bbolt-backed snapshot of a workspace's named KV logs,
// loaded on WhenReady and kept current by observing each log
// thereafter. One bucket per log name, JSON-encoded entries keyed by
// the log's own key.
package boltpersist

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"

	bolt "go.etcd.io/bbolt"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/loomhq/workspace/internal/crdt"
	"github.com/loomhq/workspace/internal/kv"
	"github.com/loomhq/workspace/internal/workspace"
)

var tracer = otel.Tracer("loomhq/workspace/persist/boltpersist")

// record is the on-disk shape of one kv.Entry.
type record struct {
	Val  json.RawMessage `json:"val"`
	Ts   int64           `json:"ts"`
	Tomb bool            `json:"tomb"`
}

// Extension persists a fixed set of named kv.Logs belonging to one
// document to a single bbolt file.
type Extension struct {
	key  string
	db   *bolt.DB
	logs map[string]*kv.Log
	logger *slog.Logger

	unobs []func()
}

// New opens (creating if needed) a bbolt database under dataDir for
// workspaceID, and opens a kv.Log per logName over doc to persist.
// logNames must name the substore logs the caller wants snapshotted
// (e.g. "dyn:tables", "dyn:fields", "dyn:rows", "dyn:cells" for a
// dynamic workspace) — kv.New reopens the same shared array a
// substore already created, so this needs no coupling to the
// substores themselves.
func New(dataDir, workspaceID string, doc *crdt.Doc, logNames []string, logger *slog.Logger) (*Extension, error) {
	if logger == nil {
		logger = slog.Default()
	}
	path := filepath.Join(dataDir, workspaceID+".bolt")
	db, err := bolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("boltpersist: open %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range logNames {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return fmt.Errorf("create bucket %s: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	logs := make(map[string]*kv.Log, len(logNames))
	for _, name := range logNames {
		logs[name] = kv.New(doc, name)
	}
	return &Extension{key: "persist", db: db, logs: logs, logger: logger}, nil
}

// Factory builds a workspace.ExtensionFactory for the given data
// directory and log names, suitable for Client.WithExtension.
func Factory(dataDir string, logNames []string, logger *slog.Logger) workspace.ExtensionFactory {
	return func(c *workspace.Client) workspace.Extension {
		ext, err := New(dataDir, c.ID(), c.Doc(), logNames, logger)
		if err != nil {
			panic(fmt.Sprintf("boltpersist: %v", err))
		}
		return ext
	}
}

// Key identifies this extension to Client.Extension.
func (e *Extension) Key() string { return e.key }

// WhenReady loads every persisted entry back into its in-memory log
// (as remote updates, since they predate this process) and then
// registers an observer to keep the snapshot current.
func (e *Extension) WhenReady(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "boltpersist.WhenReady", trace.WithAttributes(
		attribute.Int("boltpersist.buckets", len(e.logs)),
	))
	defer span.End()

	for name, log := range e.logs {
		entries, err := e.loadBucket(ctx, name)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return fmt.Errorf("boltpersist: load %s: %w", name, err)
		}
		if len(entries) > 0 {
			log.ApplyRemote(entries)
		}
		unobs := log.Observe(e.persistHandler(name, log))
		e.unobs = append(e.unobs, unobs)
	}
	e.logger.Info("boltpersist ready", "buckets", len(e.logs))
	return nil
}

func (e *Extension) loadBucket(ctx context.Context, name string) ([]kv.Entry, error) {
	_, span := tracer.Start(ctx, "boltpersist.loadBucket", trace.WithAttributes(
		attribute.String("boltpersist.bucket", name),
	))
	defer span.End()

	var out []kv.Entry
	err := e.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(name))
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, v []byte) error {
			var rec record
			if err := json.Unmarshal(v, &rec); err != nil {
				return err
			}
			var val any
			if len(rec.Val) > 0 {
				if err := json.Unmarshal(rec.Val, &val); err != nil {
					return err
				}
			}
			out = append(out, kv.Entry{Key: string(k), Val: val, Ts: rec.Ts, Tomb: rec.Tomb})
			return nil
		})
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetAttributes(attribute.Int("boltpersist.entries", len(out)))
	}
	return out, err
}

// persistHandler writes every changed key of name's log back to its
// bucket on each commit.
func (e *Extension) persistHandler(name string, log *kv.Log) func([]kv.Delta) {
	return func(deltas []kv.Delta) {
		_, span := tracer.Start(context.Background(), "boltpersist.persist", trace.WithAttributes(
			attribute.String("boltpersist.bucket", name),
			attribute.Int("boltpersist.deltas", len(deltas)),
		))
		defer span.End()

		err := e.db.Update(func(tx *bolt.Tx) error {
			b := tx.Bucket([]byte(name))
			for _, d := range deltas {
				if d.Kind == kv.Delete {
					if err := b.Delete([]byte(d.Key)); err != nil {
						return err
					}
					continue
				}
				valJSON, err := json.Marshal(d.NewValue)
				if err != nil {
					return err
				}
				rec := record{Val: valJSON, Ts: 0}
				data, err := json.Marshal(rec)
				if err != nil {
					return err
				}
				if err := b.Put([]byte(d.Key), data); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			e.logger.Error("boltpersist write failed", "bucket", name, "error", err)
		}
	}
}

// Destroy stops observing and closes the database.
func (e *Extension) Destroy(ctx context.Context) error {
	for _, u := range e.unobs {
		u()
	}
	return e.db.Close()
}

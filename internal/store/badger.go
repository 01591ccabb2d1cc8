// Package store persists the catalog cache snapshot between runs.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"ci-component-catalog/internal/domain"

	"github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"
)

// snapshotKey is the single blob the catalog owns.
var snapshotKey = []byte("catalog/snapshot")

// BadgerStore keeps the snapshot in an embedded BadgerDB.
type BadgerStore struct {
	db     *badger.DB
	logger *zap.Logger
}

var _ domain.SnapshotStore = (*BadgerStore)(nil)

// OpenBadger opens (or creates) the snapshot database at path.
func OpenBadger(path string, logger *zap.Logger) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = &badgerLogAdapter{logger: logger}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot store at %s: %w", path, err)
	}

	logger.Debug("Snapshot store opened", zap.String("path", path))
	return &BadgerStore{db: db, logger: logger}, nil
}

// Load reads the persisted snapshot. A missing or structurally invalid blob
// is reported as absent (nil, nil), never as a fatal error: the in-memory
// cache must keep working without persisted state.
func (s *BadgerStore) Load(_ context.Context) (*domain.CacheSnapshot, error) {
	var data []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(snapshotKey)
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}

	var snapshot domain.CacheSnapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		s.logger.Warn("Discarding undecodable snapshot", zap.Error(err))
		return nil, nil
	}
	if snapshot.Version != domain.SnapshotVersion {
		s.logger.Warn("Discarding snapshot with unknown version",
			zap.Int("version", snapshot.Version))
		return nil, nil
	}

	return &snapshot, nil
}

// Save writes the snapshot, replacing any previous one.
func (s *BadgerStore) Save(_ context.Context, snapshot *domain.CacheSnapshot) error {
	snapshot.Version = domain.SnapshotVersion

	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(snapshotKey, data)
	})
	if err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}

	s.logger.Debug("Snapshot persisted",
		zap.Int("components", len(snapshot.Components)),
		zap.Int("bytes", len(data)))
	return nil
}

// Close closes the underlying database.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}

// badgerLogAdapter routes badger's internal logging through zap.
type badgerLogAdapter struct {
	logger *zap.Logger
}

func (a *badgerLogAdapter) Errorf(format string, args ...interface{}) {
	a.logger.Error(fmt.Sprintf(format, args...))
}

func (a *badgerLogAdapter) Warningf(format string, args ...interface{}) {
	a.logger.Warn(fmt.Sprintf(format, args...))
}

func (a *badgerLogAdapter) Infof(format string, args ...interface{}) {
	a.logger.Debug(fmt.Sprintf(format, args...))
}

func (a *badgerLogAdapter) Debugf(format string, args ...interface{}) {
	a.logger.Debug(fmt.Sprintf(format, args...))
}

package prefs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/dgraph-io/badger/v4"
)

const badgerBackend = "badger"

const (
	servicePrefix  = "service/"
	profileKey     = "selection/profile"
	environmentKey = "selection/environment"
)

// BadgerOptions configures a BadgerStore.
type BadgerOptions struct {
	// Path is the database directory. Ignored when InMemory is true.
	Path string
	// InMemory keeps the database in memory only.
	InMemory bool
	// SyncWrites flushes every transaction to disk.
	SyncWrites bool
	// Logger receives badger's internal messages. Nil disables them.
	Logger *slog.Logger
}

// BadgerStore keeps preferences in an embedded badger database.
// Each save replaces the whole state in one transaction.
type BadgerStore struct {
	db   *badger.DB
	path string
}

type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debug(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

// OpenBadgerStore opens (or creates) a badger-backed store.
func OpenBadgerStore(opts BadgerOptions) (*BadgerStore, error) {
	if !opts.InMemory && strings.TrimSpace(opts.Path) == "" {
		return nil, &StoreError{Op: "open", Backend: badgerBackend, Err: errors.New("path is required")}
	}

	var bopts badger.Options
	if opts.InMemory {
		bopts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(opts.Path, 0o750); err != nil {
			return nil, &StoreError{Op: "open", Backend: badgerBackend, Path: opts.Path, Err: err}
		}
		bopts = badger.DefaultOptions(opts.Path)
	}
	bopts = bopts.WithSyncWrites(opts.SyncWrites).WithNumVersionsToKeep(1)
	if opts.Logger != nil {
		bopts = bopts.WithLogger(&badgerLogger{logger: opts.Logger})
	} else {
		bopts = bopts.WithLogger(nil)
	}

	db, err := badger.Open(bopts)
	if err != nil {
		return nil, &StoreError{Op: "open", Backend: badgerBackend, Path: opts.Path, Err: err}
	}
	return &BadgerStore{db: db, path: opts.Path}, nil
}

// Close releases the database.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}

// Load reads every stored entry and the selections.
func (s *BadgerStore) Load(ctx context.Context) (State, error) {
	if err := ctx.Err(); err != nil {
		return State{}, s.fail("load", err)
	}
	var state State
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{Prefix: []byte(servicePrefix), PrefetchValues: true})
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			var entry Entry
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &entry)
			}); err != nil {
				return fmt.Errorf("decode %q: %w", item.Key(), err)
			}
			entry.ServiceID = strings.TrimPrefix(string(item.Key()), servicePrefix)
			state.Entries = append(state.Entries, entry)
		}

		var err error
		if state.Profile, err = getString(txn, profileKey); err != nil {
			return err
		}
		state.Environment, err = getString(txn, environmentKey)
		return err
	})
	if err != nil {
		return State{}, s.fail("load", err)
	}
	state.Entries = sortedEntries(state.Entries)
	return state, nil
}

// Save replaces every stored entry and the selections in a single transaction.
func (s *BadgerStore) Save(ctx context.Context, state State) error {
	if err := ctx.Err(); err != nil {
		return s.fail("save", err)
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		var stale [][]byte
		it := txn.NewIterator(badger.IteratorOptions{Prefix: []byte(servicePrefix)})
		for it.Rewind(); it.Valid(); it.Next() {
			stale = append(stale, it.Item().KeyCopy(nil))
		}
		it.Close()
		for _, key := range stale {
			if err := txn.Delete(key); err != nil {
				return err
			}
		}

		for _, entry := range state.Entries {
			val, err := json.Marshal(Entry{Category: entry.Category, Enabled: entry.Enabled, Auto: entry.Auto})
			if err != nil {
				return err
			}
			if err := txn.Set([]byte(servicePrefix+entry.ServiceID), val); err != nil {
				return err
			}
		}
		if err := txn.Set([]byte(profileKey), []byte(state.Profile)); err != nil {
			return err
		}
		return txn.Set([]byte(environmentKey), []byte(state.Environment))
	})
	if err != nil {
		return s.fail("save", err)
	}
	return nil
}

func getString(txn *badger.Txn, key string) (string, error) {
	item, err := txn.Get([]byte(key))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	val, err := item.ValueCopy(nil)
	if err != nil {
		return "", err
	}
	return string(val), nil
}

func (s *BadgerStore) fail(op string, err error) error {
	return &StoreError{Op: op, Backend: badgerBackend, Path: s.path, Err: err}
}

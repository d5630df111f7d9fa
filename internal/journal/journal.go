// Package journal keeps a persistent history of reported events in BadgerDB.
// A Store is a report.Publisher, so it receives every event the reporter
// fans out.
package journal

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/sweeney/jack-sensor/internal/logic"
)

// DefaultLimit is the number of entries Recent returns for a non-positive limit.
const DefaultLimit = 50

var (
	eventPrefix = []byte("event/")
	seqKey      = []byte("meta/seq")
)

// Entry is one journaled event.
type Entry struct {
	Seq         uint64    `json:"seq"`
	Timestamp   time.Time `json:"timestamp"`
	Event       string    `json:"event"`
	Name        string    `json:"name"`
	State       int       `json:"state"`
	LineOut     string    `json:"lineout,omitempty"`
	HeadsetType string    `json:"headset_type,omitempty"`
}

// Options configures a Store.
type Options struct {
	// Dir holds the database files. Empty runs in memory.
	Dir string

	// TTL expires entries after the given age. Zero keeps them forever.
	TTL time.Duration

	Logger *slog.Logger
}

// Store is a BadgerDB-backed event journal.
type Store struct {
	db  *badger.DB
	seq *badger.Sequence
	ttl time.Duration
}

// Open opens or creates the journal.
func Open(opts Options) (*Store, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	dbOpts := badger.DefaultOptions(opts.Dir).
		WithLogger(badgerLogger{logger.With("component", "badger")})
	if opts.Dir == "" {
		dbOpts = dbOpts.WithInMemory(true)
	}

	db, err := badger.Open(dbOpts)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	seq, err := db.GetSequence(seqKey, 100)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("journal sequence: %w", err)
	}
	return &Store{db: db, seq: seq, ttl: opts.TTL}, nil
}

// Publish appends event to the journal.
func (s *Store) Publish(event logic.Event) error {
	_, err := s.Append(event)
	return err
}

// Append writes event and returns the stored entry.
func (s *Store) Append(event logic.Event) (Entry, error) {
	n, err := s.seq.Next()
	if err != nil {
		return Entry{}, fmt.Errorf("next sequence: %w", err)
	}
	// Sequences start at 0; keep 0 free so Seq is always positive.
	entry := Entry{
		Seq:         n + 1,
		Timestamp:   event.Timestamp.UTC(),
		Event:       string(event.Type),
		Name:        event.Accessory.Name(),
		State:       event.Accessory.Value(),
		LineOut:     string(event.LineOut),
		HeadsetType: string(event.HeadsetType),
	}
	val, err := json.Marshal(entry)
	if err != nil {
		return Entry{}, fmt.Errorf("encode entry: %w", err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry(key(entry.Seq), val)
		if s.ttl > 0 {
			e = e.WithTTL(s.ttl)
		}
		return txn.SetEntry(e)
	})
	if err != nil {
		return Entry{}, fmt.Errorf("write entry %d: %w", entry.Seq, err)
	}
	return entry, nil
}

// Recent returns up to limit entries, newest first.
func (s *Store) Recent(limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}

	var out []Entry
	err := s.db.View(func(txn *badger.Txn) error {
		iterOpts := badger.DefaultIteratorOptions
		iterOpts.Reverse = true
		iterOpts.Prefix = eventPrefix
		it := txn.NewIterator(iterOpts)
		defer it.Close()

		// Reverse iteration seeks to the largest key <= the seek key.
		seek := append(append([]byte{}, eventPrefix...), 0xff)
		for it.Seek(seek); it.ValidForPrefix(eventPrefix) && len(out) < limit; it.Next() {
			var e Entry
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &e)
			})
			if err != nil {
				return fmt.Errorf("decode %x: %w", it.Item().Key(), err)
			}
			out = append(out, e)
		}
		return nil
	})
	return out, err
}

// Close releases the sequence lease and closes the database.
func (s *Store) Close() error {
	return errors.Join(s.seq.Release(), s.db.Close())
}

func key(seq uint64) []byte {
	k := make([]byte, len(eventPrefix)+8)
	copy(k, eventPrefix)
	binary.BigEndian.PutUint64(k[len(eventPrefix):], seq)
	return k
}

// badgerLogger routes badger's logging to slog. Info and debug chatter is
// demoted to debug.
type badgerLogger struct {
	l *slog.Logger
}

func (b badgerLogger) Errorf(f string, v ...interface{})   { b.l.Error(fmt.Sprintf(f, v...)) }
func (b badgerLogger) Warningf(f string, v ...interface{}) { b.l.Warn(fmt.Sprintf(f, v...)) }
func (b badgerLogger) Infof(f string, v ...interface{})    { b.l.Debug(fmt.Sprintf(f, v...)) }
func (b badgerLogger) Debugf(f string, v ...interface{})   { b.l.Debug(fmt.Sprintf(f, v...)) }

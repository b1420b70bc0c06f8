package storage

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/pders01/shelf/internal/catalog"
	bolt "go.etcd.io/bbolt"
)

var (
	historyBucket = []byte("history")
	sessionBucket = []byte("session")
	feedsBucket   = []byte("feeds")

	sessionKey = []byte("last")
)

// ErrNotFound is returned when a key has no value.
var ErrNotFound = errors.New("not found")

type Store struct {
	db *bolt.DB
}

// NewStore opens (or creates) the database at dbPath. A zero timeout waits
// one second for the file lock.
func NewStore(dbPath string, timeout time.Duration) (*Store, error) {
	if timeout <= 0 {
		timeout = 1 * time.Second
	}
	db, err := bolt.Open(dbPath, 0o600, &bolt.Options{Timeout: timeout})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{historyBucket, sessionBucket, feedsBucket} {
			if _, createErr := tx.CreateBucketIfNotExists(bucket); createErr != nil {
				return createErr
			}
		}
		return nil
	})

	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating buckets: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func itob(id int) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(id))
	return b
}

// RecordOpen adds item to the history or bumps its open count.
func (s *Store) RecordOpen(item catalog.Item, r catalog.Rendition, at time.Time) (*HistoryEntry, error) {
	var entry HistoryEntry
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(historyBucket)
		key := itob(item.ID)

		if data := b.Get(key); data != nil {
			if err := json.Unmarshal(data, &entry); err != nil {
				return fmt.Errorf("decoding history entry %d: %w", item.ID, err)
			}
		} else {
			entry.FirstOpen = at
		}

		entry.ID = item.ID
		entry.Title = item.Title
		entry.Authors = catalog.FormatAuthors(item)
		entry.Subjects = item.Subjects
		entry.Languages = item.Languages
		entry.Kind = string(r.Kind)
		entry.URL = r.URL
		entry.OpenCount++
		entry.OpenedAt = at

		data, err := json.Marshal(entry)
		if err != nil {
			return err
		}
		return b.Put(key, data)
	})
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func (s *Store) GetHistoryEntry(id int) (*HistoryEntry, error) {
	var entry HistoryEntry
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(historyBucket).Get(itob(id))
		if data == nil {
			return fmt.Errorf("history entry %d: %w", id, ErrNotFound)
		}
		return json.Unmarshal(data, &entry)
	})
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// History returns opened books, most recent first.
func (s *Store) History(limit int) ([]*HistoryEntry, error) {
	var entries []*HistoryEntry
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(historyBucket).ForEach(func(_ []byte, v []byte) error {
			var entry HistoryEntry
			if err := json.Unmarshal(v, &entry); err != nil {
				// skip corrupt entries
				return nil
			}
			entries = append(entries, &entry)
			return nil
		})
	})
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].OpenedAt.After(entries[j].OpenedAt)
	})
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, err
}

func (s *Store) DeleteHistoryEntry(id int) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(historyBucket).Delete(itob(id))
	})
}

func (s *Store) ClearHistory() error {
	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket(historyBucket); err != nil {
			return err
		}
		_, err := tx.CreateBucket(historyBucket)
		return err
	})
}

// SaveSession stores the filters to restore on the next start.
func (s *Store) SaveSession(filters catalog.Filters, at time.Time) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(Session{Filters: filters, SavedAt: at})
		if err != nil {
			return err
		}
		return tx.Bucket(sessionBucket).Put(sessionKey, data)
	})
}

// LoadSession returns the saved session, or ErrNotFound.
func (s *Store) LoadSession() (*Session, error) {
	var session Session
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(sessionBucket).Get(sessionKey)
		if data == nil {
			return fmt.Errorf("session: %w", ErrNotFound)
		}
		return json.Unmarshal(data, &session)
	})
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (s *Store) SaveFeedMeta(meta *FeedMeta) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(meta)
		if err != nil {
			return err
		}
		return tx.Bucket(feedsBucket).Put([]byte(meta.URL), data)
	})
}

func (s *Store) GetFeedMeta(url string) (*FeedMeta, error) {
	var meta FeedMeta
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(feedsBucket).Get([]byte(url))
		if data == nil {
			return fmt.Errorf("feed %s: %w", url, ErrNotFound)
		}
		return json.Unmarshal(data, &meta)
	})
	if err != nil {
		return nil, err
	}
	return &meta, nil
}

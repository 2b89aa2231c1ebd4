package services

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/MegaGrindStone/chat-widget/internal/widget"
	bolt "go.etcd.io/bbolt"
)

// BoltJournal implements widget.Journal on top of BoltDB. It keeps failed generation cycles for later
// diagnosis; chat messages themselves are never written to it.
type BoltJournal struct {
	db *bolt.DB
}

var failuresBucket = []byte("failures")

// NewBoltJournal opens, or creates with 0600 permissions, the journal at path.
func NewBoltJournal(path string) (BoltJournal, error) {
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return BoltJournal{}, fmt.Errorf("failed to open bolt db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(failuresBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return BoltJournal{}, fmt.Errorf("failed to create bucket: %w", err)
	}

	return BoltJournal{db: db}, nil
}

// Record stores a failure. Keys are prefixed with a zero-padded sequence number so iteration follows
// insertion order.
func (b BoltJournal) Record(_ context.Context, failure widget.Failure) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		bk := tx.Bucket(failuresBucket)

		seq, err := bk.NextSequence()
		if err != nil {
			return fmt.Errorf("failed to get next sequence: %w", err)
		}

		v, err := json.Marshal(failure)
		if err != nil {
			return fmt.Errorf("failed to marshal failure: %w", err)
		}

		return bk.Put([]byte(fmt.Sprintf("%020d-%s", seq, failure.ID)), v)
	})
}

// Failures returns up to limit failures, most recent first. A limit of zero or less returns all of them.
func (b BoltJournal) Failures(_ context.Context, limit int) ([]widget.Failure, error) {
	var failures []widget.Failure
	err := b.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(failuresBucket).Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			if limit > 0 && len(failures) >= limit {
				break
			}
			var f widget.Failure
			if err := json.Unmarshal(v, &f); err != nil {
				return fmt.Errorf("failed to unmarshal failure: %w", err)
			}
			failures = append(failures, f)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return failures, nil
}

// Close closes the underlying database.
func (b BoltJournal) Close() error {
	return b.db.Close()
}

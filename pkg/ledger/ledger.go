// Package ledger persists security pipeline markers locally in a bbolt
// database, mirroring the on-host marker files so a re-run of fleetctl from
// a fresh operator machine can still tell which steps already completed
// without re-connecting to every host first. Grounded on the teacher's
// pkg/storage/boltdb.go, adapted from a cluster state store to a narrow
// idempotency cache.
package ledger

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/FireNirva/quants-fleet/pkg/types"
)

var bucketSecurityMarkers = []byte("security_markers")

// Ledger is a bbolt-backed local cache of SecurityMarker records.
type Ledger struct {
	db *bolt.DB
}

// Open opens (creating if necessary) the ledger database under dataDir.
func Open(dataDir string) (*Ledger, error) {
	dbPath := filepath.Join(dataDir, "fleet-ledger.db")

	db, err := bolt.Open(dbPath, 0o600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open ledger db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketSecurityMarkers)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create ledger buckets: %w", err)
	}

	return &Ledger{db: db}, nil
}

// Close closes the underlying database.
func (l *Ledger) Close() error {
	return l.db.Close()
}

func markerKey(host string, step types.SecurityStep) []byte {
	return []byte(host + "/" + string(step))
}

// RecordStep persists that step has completed for host, so HasCompleted
// returns true even if a later run never manages to re-check the host's own
// on-disk marker file (e.g. the host became briefly unreachable after
// hardening but before the operator's next run).
func (l *Ledger) RecordStep(marker types.SecurityMarker) error {
	data, err := json.Marshal(marker)
	if err != nil {
		return fmt.Errorf("marshal security marker: %w", err)
	}
	return l.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketSecurityMarkers)
		return b.Put(markerKey(marker.Host, marker.Step), data)
	})
}

// HasCompleted reports whether step has previously been recorded for host.
func (l *Ledger) HasCompleted(host string, step types.SecurityStep) (bool, error) {
	var found bool
	err := l.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketSecurityMarkers)
		found = b.Get(markerKey(host, step)) != nil
		return nil
	})
	return found, err
}

// MarkersForHost returns every recorded marker for host, in no particular
// order.
func (l *Ledger) MarkersForHost(host string) ([]types.SecurityMarker, error) {
	var markers []types.SecurityMarker
	prefix := []byte(host + "/")

	err := l.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketSecurityMarkers)
		c := b.Cursor()
		for k, v := c.Seek(prefix); k != nil && hasPrefix(k, prefix); k, v = c.Next() {
			var m types.SecurityMarker
			if err := json.Unmarshal(v, &m); err != nil {
				continue
			}
			markers = append(markers, m)
		}
		return nil
	})
	return markers, err
}

func hasPrefix(b, prefix []byte) bool {
	if len(b) < len(prefix) {
		return false
	}
	for i := range prefix {
		if b[i] != prefix[i] {
			return false
		}
	}
	return true
}

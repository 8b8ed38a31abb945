package statestore

import (
	"encoding/json"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

// DashboardCache memoizes health-score and dashboard aggregates between
// maintenance ticks, adapted from the teacher's bbolt-backed store. It is
// explicitly NOT one of the contractual JSON documents (§6): losing this
// file loses nothing but a cache, and it is rebuilt from the next
// health_check/dashboard() pass.
type DashboardCache struct {
	db *bolt.DB
}

var bucketCache = []byte("dashboard_cache")

// OpenDashboardCache opens (creating if absent) the bbolt file at
// <dir>/cache.db.
func OpenDashboardCache(dir string) (*DashboardCache, error) {
	db, err := bolt.Open(filepath.Join(dir, "cache.db"), 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketCache)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &DashboardCache{db: db}, nil
}

func (c *DashboardCache) Close() error { return c.db.Close() }

// Put stores v under key, JSON-encoded.
func (c *DashboardCache) Put(key string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketCache).Put([]byte(key), data)
	})
}

// Get loads key into v, reporting false if the key is absent.
func (c *DashboardCache) Get(key string, v interface{}) (bool, error) {
	var found bool
	err := c.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketCache).Get([]byte(key))
		if data == nil {
			return nil
		}
		found = true
		return json.Unmarshal(data, v)
	})
	return found, err
}

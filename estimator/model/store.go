package model

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/boltdb/bolt"

	"github.com/elasql/txn-estimator/estimator"
)

var (
	metaBucketName = []byte("meta")
	serverCountKey = []byte("server_count")
)

func serverBucketName(serverID int) []byte {
	return []byte(fmt.Sprintf("server-%d", serverID))
}

// Store persists a ServerModelSet in a bolt database: one bucket per server,
// keyed by OU name, with JSON encoded models.
type Store struct {
	db *bolt.DB
}

// OpenStore opens or creates the model database at path.
func OpenStore(path string) (*Store, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("model store: opening %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(metaBucketName)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("model store: %w", err)
	}
	return &Store{db: db}, nil
}

// Save replaces the stored models with set.
func (s *Store) Save(set *ServerModelSet) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		meta := tx.Bucket(metaBucketName)
		if old := meta.Get(serverCountKey); old != nil {
			n, err := strconv.Atoi(string(old))
			if err != nil {
				return fmt.Errorf("model store: corrupt server count %q", old)
			}
			for serverID := 0; serverID < n; serverID++ {
				if err := tx.DeleteBucket(serverBucketName(serverID)); err != nil && err != bolt.ErrBucketNotFound {
					return err
				}
			}
		}
		for serverID := 0; serverID < set.ServerCount(); serverID++ {
			bucket, err := tx.CreateBucket(serverBucketName(serverID))
			if err != nil {
				return err
			}
			for ou, m := range set.Server(serverID).Models {
				value, err := json.Marshal(m)
				if err != nil {
					return fmt.Errorf("model store: encoding server %d %s: %w", serverID, ou, err)
				}
				if err := bucket.Put([]byte(ou), value); err != nil {
					return err
				}
			}
		}
		return meta.Put(serverCountKey, []byte(strconv.Itoa(set.ServerCount())))
	})
}

// Load reads the stored models. serverCount must match the saved set.
func (s *Store) Load(serverCount int) (*ServerModelSet, error) {
	var servers []*ServerModel
	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(metaBucketName).Get(serverCountKey)
		if raw == nil {
			return fmt.Errorf("model store: no models saved")
		}
		saved, err := strconv.Atoi(string(raw))
		if err != nil {
			return fmt.Errorf("model store: corrupt server count %q", raw)
		}
		if saved != serverCount {
			return fmt.Errorf("model store: models saved for %d servers, need %d: %w",
				saved, serverCount, estimator.ErrServerCount)
		}
		for serverID := 0; serverID < saved; serverID++ {
			bucket := tx.Bucket(serverBucketName(serverID))
			if bucket == nil {
				return fmt.Errorf("model store: missing bucket for server %d", serverID)
			}
			sm := &ServerModel{ServerID: serverID, Models: make(map[string]*LinearOuModel)}
			err := bucket.ForEach(func(k, v []byte) error {
				var m LinearOuModel
				if err := json.Unmarshal(v, &m); err != nil {
					return fmt.Errorf("model store: decoding server %d %s: %w", serverID, k, err)
				}
				if err := m.Validate(); err != nil {
					return fmt.Errorf("model store: server %d: %w", serverID, err)
				}
				sm.Models[string(k)] = &m
				return nil
			})
			if err != nil {
				return err
			}
			servers = append(servers, sm)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return NewServerModelSet(servers)
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

package storage

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"github.com/L1nMay/porty/internal/catalog"
	"github.com/L1nMay/porty/internal/model"
)

const (
	bucketCatalog = "catalog"
	bucketMeta    = "meta"

	keyImportedAt = "imported_at"
	keyOrigin     = "origin"
)

// CatalogStore keeps the port catalog in a bbolt file, so scans do not depend
// on the YAML file being present. Keys are big-endian positions, which makes
// a cursor walk return catalog order.
type CatalogStore struct {
	db *bbolt.DB
}

type CatalogInfo struct {
	Entries    int       `json:"entries"`
	Origin     string    `json:"origin,omitempty"`
	ImportedAt time.Time `json:"imported_at,omitempty"`
}

func NewCatalogStore(dbPath string) (*CatalogStore, error) {
	db, err := bbolt.Open(dbPath, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		if _, e := tx.CreateBucketIfNotExists([]byte(bucketCatalog)); e != nil {
			return e
		}
		if _, e := tx.CreateBucketIfNotExists([]byte(bucketMeta)); e != nil {
			return e
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &CatalogStore{db: db}, nil
}

func (s *CatalogStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Import replaces the stored catalog with specs in a single transaction.
func (s *CatalogStore) Import(specs []model.PortSpec, origin string) error {
	specs, err := catalog.Normalize(specs)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.DeleteBucket([]byte(bucketCatalog)); err != nil && !errors.Is(err, bbolt.ErrBucketNotFound) {
			return err
		}
		b, err := tx.CreateBucket([]byte(bucketCatalog))
		if err != nil {
			return err
		}
		for i, spec := range specs {
			data, err := json.Marshal(spec)
			if err != nil {
				return err
			}
			if err := b.Put(positionKey(i), data); err != nil {
				return err
			}
		}

		meta := tx.Bucket([]byte(bucketMeta))
		if meta == nil {
			return errors.New("bucket not found")
		}
		now, _ := time.Now().UTC().MarshalText()
		if err := meta.Put([]byte(keyImportedAt), now); err != nil {
			return err
		}
		return meta.Put([]byte(keyOrigin), []byte(origin))
	})
}

// Load implements catalog.Source.
func (s *CatalogStore) Load(ctx context.Context) ([]model.PortSpec, error) {
	out := make([]model.PortSpec, 0, 64)
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketCatalog))
		if b == nil {
			return errors.New("bucket not found")
		}
		return b.ForEach(func(k, v []byte) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			var spec model.PortSpec
			if err := json.Unmarshal(v, &spec); err != nil {
				return fmt.Errorf("entry %d: %w", binary.BigEndian.Uint32(k), err)
			}
			out = append(out, spec)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, catalog.ErrEmptyCatalog
	}
	return out, nil
}

func (s *CatalogStore) Info() (CatalogInfo, error) {
	var info CatalogInfo
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketCatalog))
		meta := tx.Bucket([]byte(bucketMeta))
		if b == nil || meta == nil {
			return errors.New("bucket not found")
		}
		info.Entries = b.Stats().KeyN
		info.Origin = string(meta.Get([]byte(keyOrigin)))
		if v := meta.Get([]byte(keyImportedAt)); v != nil {
			if err := info.ImportedAt.UnmarshalText(v); err != nil {
				return err
			}
		}
		return nil
	})
	return info, err
}

func positionKey(i int) []byte {
	k := make([]byte, 4)
	binary.BigEndian.PutUint32(k, uint32(i))
	return k
}

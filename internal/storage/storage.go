// Package storage keeps versioned model bundles in a BoltDB file.
//
// A bundle pairs an ensemble export with the scaler fitted alongside it so
// the two can never be deployed out of step. Each bundle is stored once under
// its version key together with SHA-256 digests of both documents, which are
// verified on every read.
package storage

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"go.etcd.io/bbolt"
)

const (
	DBFileName = "artifacts.db"

	bundlesBucket = "bundles" // version -> bundleRecord
	metaBucket    = "meta"    // bookkeeping keys
	latestKey     = "latest"  // most recently imported version
)

var (
	ErrBundleNotFound   = errors.New("bundle not found")
	ErrVersionExists    = errors.New("bundle version already exists")
	ErrInvalidVersion   = errors.New("bundle version must not be empty")
	ErrChecksumMismatch = errors.New("bundle checksum mismatch")
)

// BundleInfo describes a stored bundle without its payload.
type BundleInfo struct {
	Version        string    `json:"version"`
	EnsembleSHA256 string    `json:"ensemble_sha256"`
	ScalerSHA256   string    `json:"scaler_sha256"`
	EnsembleBytes  int       `json:"ensemble_bytes"`
	ScalerBytes    int       `json:"scaler_bytes"`
	ImportedAt     time.Time `json:"imported_at"`
}

// Bundle is a stored ensemble and scaler pair.
type Bundle struct {
	BundleInfo
	Ensemble []byte
	Scaler   []byte
}

type bundleRecord struct {
	Info     BundleInfo `json:"info"`
	Ensemble []byte     `json:"ensemble"`
	Scaler   []byte     `json:"scaler"`
}

// Store provides persistent bundle storage using BoltDB.
type Store struct {
	db *bbolt.DB // BoltDB database instance
}

// New opens (creating if needed) the bundle database under dataPath.
func New(dataPath string) (*Store, error) {
	return open(dataPath, &bbolt.Options{Timeout: 1 * time.Second})
}

// NewReadOnly opens an existing bundle database under a shared lock. Several
// read-only handles may be open at once; a writer waits for all of them.
func NewReadOnly(dataPath string) (*Store, error) {
	return open(dataPath, &bbolt.Options{Timeout: 1 * time.Second, ReadOnly: true})
}

func open(dataPath string, opts *bbolt.Options) (*Store, error) {
	dbPath := filepath.Join(dataPath, DBFileName)

	db, err := bbolt.Open(dbPath, 0o600, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if opts.ReadOnly {
		return &Store{db: db}, nil
	}

	// Create buckets
	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(bundlesBucket)); err != nil {
			return fmt.Errorf("create bundles bucket: %w", err)
		}
		if _, err := tx.CreateBucketIfNotExists([]byte(metaBucket)); err != nil {
			return fmt.Errorf("create meta bucket: %w", err)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close closes the database connection gracefully.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Put stores a new bundle and marks it as the latest. Versions are immutable:
// storing an existing version fails with ErrVersionExists.
func (s *Store) Put(version string, ensemble, scaler []byte, importedAt time.Time) (BundleInfo, error) {
	if version == "" {
		return BundleInfo{}, ErrInvalidVersion
	}

	info := BundleInfo{
		Version:        version,
		EnsembleSHA256: digest(ensemble),
		ScalerSHA256:   digest(scaler),
		EnsembleBytes:  len(ensemble),
		ScalerBytes:    len(scaler),
		ImportedAt:     importedAt.UTC(),
	}

	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bundlesBucket))
		if b.Get([]byte(version)) != nil {
			return fmt.Errorf("%w: %s", ErrVersionExists, version)
		}

		data, err := json.Marshal(bundleRecord{Info: info, Ensemble: ensemble, Scaler: scaler})
		if err != nil {
			return fmt.Errorf("marshal bundle: %w", err)
		}
		if err := b.Put([]byte(version), data); err != nil {
			return err
		}
		return tx.Bucket([]byte(metaBucket)).Put([]byte(latestKey), []byte(version))
	})
	if err != nil {
		return BundleInfo{}, err
	}
	return info, nil
}

// Get returns the bundle stored under version after verifying both digests.
func (s *Store) Get(version string) (Bundle, error) {
	var bundle Bundle
	err := s.db.View(func(tx *bbolt.Tx) error {
		var err error
		bundle, err = getBundle(tx, version)
		return err
	})
	return bundle, err
}

// Latest returns the most recently imported bundle.
func (s *Store) Latest() (Bundle, error) {
	var bundle Bundle
	err := s.db.View(func(tx *bbolt.Tx) error {
		meta := tx.Bucket([]byte(metaBucket))
		if meta == nil {
			return ErrBundleNotFound
		}
		version := meta.Get([]byte(latestKey))
		if version == nil {
			return ErrBundleNotFound
		}
		var err error
		bundle, err = getBundle(tx, string(version))
		return err
	})
	return bundle, err
}

// List returns every stored bundle ordered by import time, oldest first.
func (s *Store) List() ([]BundleInfo, error) {
	var infos []BundleInfo
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bundlesBucket))
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, v []byte) error {
			var rec bundleRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("unmarshal bundle %s: %w", k, err)
			}
			infos = append(infos, rec.Info)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(infos, func(i, j int) bool {
		if infos[i].ImportedAt.Equal(infos[j].ImportedAt) {
			return infos[i].Version < infos[j].Version
		}
		return infos[i].ImportedAt.Before(infos[j].ImportedAt)
	})
	return infos, nil
}

func getBundle(tx *bbolt.Tx, version string) (Bundle, error) {
	b := tx.Bucket([]byte(bundlesBucket))
	if b == nil {
		return Bundle{}, fmt.Errorf("%w: %s", ErrBundleNotFound, version)
	}
	data := b.Get([]byte(version))
	if data == nil {
		return Bundle{}, fmt.Errorf("%w: %s", ErrBundleNotFound, version)
	}

	var rec bundleRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return Bundle{}, fmt.Errorf("unmarshal bundle %s: %w", version, err)
	}
	if digest(rec.Ensemble) != rec.Info.EnsembleSHA256 {
		return Bundle{}, fmt.Errorf("%w: %s ensemble", ErrChecksumMismatch, version)
	}
	if digest(rec.Scaler) != rec.Info.ScalerSHA256 {
		return Bundle{}, fmt.Errorf("%w: %s scaler", ErrChecksumMismatch, version)
	}

	return Bundle{BundleInfo: rec.Info, Ensemble: rec.Ensemble, Scaler: rec.Scaler}, nil
}

func digest(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.etcd.io/bbolt"
	"qbank/internal/adapter/index"
	"qbank/internal/domain"
)

// IndexSuffix is inserted before the extension of the bundle path to name
// the index file.
const IndexSuffix = "_index"

// Bundle is everything needed to serve queries without re-embedding. Rows
// of Records, Matrix and Index correspond by position.
type Bundle struct {
	Meta    Meta
	Records []domain.QuestionRecord
	Matrix  [][]float32
	Index   *index.BruteForce
}

type indexMeta struct {
	SchemaVersion int    `json:"schema_version"`
	BundleID      string `json:"bundle_id"`
	ModelName     string `json:"model_name"`
	Rows          int    `json:"rows"`
	Dimension     int    `json:"dimension"`
}

// IndexPath derives the index file path: "a/embeddings.db" becomes
// "a/embeddings_index.db".
func IndexPath(path string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + IndexSuffix + ext
}

// Exists reports whether the main bundle file is present.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

var (
	saveLocksMu sync.Mutex
	saveLocks   = map[string]*sync.Mutex{}
)

func saveLock(path string) *sync.Mutex {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	saveLocksMu.Lock()
	defer saveLocksMu.Unlock()
	mu, ok := saveLocks[path]
	if !ok {
		mu = &sync.Mutex{}
		saveLocks[path] = mu
	}
	return mu
}

// Save writes the bundle as two bolt files. Both are written completely
// under temporary names and then renamed over any previous bundle, index
// first. Concurrent saves to the same path in this process are serialized.
// A fresh bundle ID is assigned and returned in the saved meta.
func Save(path string, b Bundle) (Meta, error) {
	if b.Index == nil || len(b.Records) != len(b.Matrix) || b.Index.Rows() != len(b.Matrix) {
		return Meta{}, fmt.Errorf("%w: inconsistent bundle (%d records, %d vectors)", domain.ErrInvalidArgument, len(b.Records), len(b.Matrix))
	}

	mu := saveLock(path)
	mu.Lock()
	defer mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return Meta{}, fmt.Errorf("%w: create bundle directory: %w", domain.ErrIO, err)
	}

	meta := b.Meta
	meta.SchemaVersion = CurrentSchemaVersion
	meta.BundleID = uuid.NewString()
	meta.Rows = len(b.Matrix)
	meta.Dimension = b.Index.Dim()
	meta.MaxNeighbors = b.Index.MaxNeighbors()
	if meta.CreatedAt.IsZero() {
		meta.CreatedAt = time.Now().UTC()
	}

	idxPath := IndexPath(path)
	suffix := "." + meta.BundleID[:8] + ".tmp"
	tmpMain, tmpIndex := path+suffix, idxPath+suffix
	defer os.Remove(tmpMain)
	defer os.Remove(tmpIndex)

	if err := writeMain(tmpMain, meta, b); err != nil {
		return Meta{}, fmt.Errorf("%w: write %s: %w", domain.ErrIO, path, err)
	}
	if err := writeIndex(tmpIndex, meta, b.Index); err != nil {
		return Meta{}, fmt.Errorf("%w: write %s: %w", domain.ErrIO, idxPath, err)
	}

	if err := os.Rename(tmpIndex, idxPath); err != nil {
		return Meta{}, fmt.Errorf("%w: %w", domain.ErrIO, err)
	}
	if err := os.Rename(tmpMain, path); err != nil {
		return Meta{}, fmt.Errorf("%w: %w", domain.ErrIO, err)
	}
	return meta, nil
}

func writeMain(path string, meta Meta, b Bundle) error {
	db, err := openWrite(path, bucketMeta, bucketRecords, bucketVectors)
	if err != nil {
		return err
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if err := putJSON(tx, bucketMeta, keyMeta, meta); err != nil {
			return err
		}
		vectors := tx.Bucket(bucketVectors)
		for i := range b.Records {
			key := positionKey(i)
			if err := putJSON(tx, bucketRecords, key, b.Records[i]); err != nil {
				return err
			}
			if err := vectors.Put(key, EncodeVector(b.Matrix[i])); err != nil {
				return err
			}
		}
		return nil
	})
	if cerr := db.Close(); err == nil {
		err = cerr
	}
	return err
}

func writeIndex(path string, meta Meta, idx *index.BruteForce) error {
	data, err := idx.MarshalBinary()
	if err != nil {
		return err
	}

	db, err := openWrite(path, bucketMeta, bucketIndex)
	if err != nil {
		return err
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		im := indexMeta{
			SchemaVersion: meta.SchemaVersion,
			BundleID:      meta.BundleID,
			ModelName:     meta.ModelName,
			Rows:          meta.Rows,
			Dimension:     meta.Dimension,
		}
		if err := putJSON(tx, bucketMeta, keyMeta, im); err != nil {
			return err
		}
		return tx.Bucket(bucketIndex).Put(keyStructure, data)
	})
	if cerr := db.Close(); err == nil {
		err = cerr
	}
	return err
}

// Inspect reads only the meta of the main bundle file.
func Inspect(path string) (Meta, error) {
	var meta Meta
	if err := requireFile(path); err != nil {
		return meta, err
	}
	db, err := openRead(path)
	if err != nil {
		return meta, corrupt(path, err)
	}
	defer db.Close()

	err = db.View(func(tx *bbolt.Tx) error {
		return getJSON(tx, bucketMeta, keyMeta, &meta)
	})
	if err != nil {
		return meta, corrupt(path, err)
	}
	return meta, nil
}

// Load reads and cross-checks both bundle files. Any missing, unreadable or
// inconsistent part yields domain.ErrCorruptBundle.
func Load(path string) (Bundle, error) {
	idxPath := IndexPath(path)
	if err := requireFile(path); err != nil {
		return Bundle{}, err
	}
	if err := requireFile(idxPath); err != nil {
		return Bundle{}, err
	}

	b, err := readMain(path)
	if err != nil {
		return Bundle{}, corrupt(path, err)
	}

	im, structure, err := readIndex(idxPath)
	if err != nil {
		return Bundle{}, corrupt(idxPath, err)
	}

	switch {
	case im.BundleID != b.Meta.BundleID:
		err = fmt.Errorf("bundle id %s, index belongs to %s", b.Meta.BundleID, im.BundleID)
	case im.SchemaVersion != b.Meta.SchemaVersion:
		err = fmt.Errorf("schema version %d, index has %d", b.Meta.SchemaVersion, im.SchemaVersion)
	case im.ModelName != b.Meta.ModelName:
		err = fmt.Errorf("model %q, index built for %q", b.Meta.ModelName, im.ModelName)
	case im.Rows != b.Meta.Rows || im.Dimension != b.Meta.Dimension:
		err = fmt.Errorf("matrix %dx%d, index %dx%d", b.Meta.Rows, b.Meta.Dimension, im.Rows, im.Dimension)
	case structure.MaxNeighbors != b.Meta.MaxNeighbors:
		err = fmt.Errorf("neighbor cap %d, index has %d", b.Meta.MaxNeighbors, structure.MaxNeighbors)
	}
	if err != nil {
		return Bundle{}, corrupt(path, err)
	}

	b.Index, err = structure.Attach(b.Matrix)
	if err != nil {
		return Bundle{}, corrupt(idxPath, err)
	}
	return b, nil
}

func readMain(path string) (Bundle, error) {
	var b Bundle
	db, err := openRead(path)
	if err != nil {
		return b, err
	}
	defer db.Close()

	err = db.View(func(tx *bbolt.Tx) error {
		if err := getJSON(tx, bucketMeta, keyMeta, &b.Meta); err != nil {
			return err
		}
		if b.Meta.SchemaVersion != CurrentSchemaVersion {
			return fmt.Errorf("unsupported schema version %d", b.Meta.SchemaVersion)
		}
		if b.Meta.Rows <= 0 || b.Meta.Dimension <= 0 {
			return fmt.Errorf("invalid shape %dx%d", b.Meta.Rows, b.Meta.Dimension)
		}

		records := tx.Bucket(bucketRecords)
		vectors := tx.Bucket(bucketVectors)
		if records == nil || vectors == nil {
			return errors.New("missing records or vectors bucket")
		}
		if n := records.Stats().KeyN; n != b.Meta.Rows {
			return fmt.Errorf("%d records, meta says %d", n, b.Meta.Rows)
		}
		if n := vectors.Stats().KeyN; n != b.Meta.Rows {
			return fmt.Errorf("%d vectors, meta says %d", n, b.Meta.Rows)
		}

		b.Records = make([]domain.QuestionRecord, b.Meta.Rows)
		b.Matrix = make([][]float32, b.Meta.Rows)
		filled := 0

		err := records.ForEach(func(k, v []byte) error {
			pos, ok := keyPosition(k)
			if !ok || pos >= b.Meta.Rows {
				return fmt.Errorf("unexpected record key %x", k)
			}
			var rec domain.QuestionRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("record %d: %w", pos, err)
			}
			b.Records[pos] = rec
			vec, err := DecodeVector(vectors.Get(k))
			if err != nil {
				return fmt.Errorf("vector %d: %w", pos, err)
			}
			if len(vec) != b.Meta.Dimension {
				return fmt.Errorf("vector %d has dimension %d, want %d", pos, len(vec), b.Meta.Dimension)
			}
			b.Matrix[pos] = vec
			filled++
			return nil
		})
		if err != nil {
			return err
		}
		if filled != b.Meta.Rows {
			return fmt.Errorf("filled %d of %d rows", filled, b.Meta.Rows)
		}
		return nil
	})
	return b, err
}

func readIndex(path string) (indexMeta, *index.Serialized, error) {
	var im indexMeta
	var structure *index.Serialized

	db, err := openRead(path)
	if err != nil {
		return im, nil, err
	}
	defer db.Close()

	err = db.View(func(tx *bbolt.Tx) error {
		if err := getJSON(tx, bucketMeta, keyMeta, &im); err != nil {
			return err
		}
		b := tx.Bucket(bucketIndex)
		if b == nil {
			return errors.New("missing index bucket")
		}
		data := b.Get(keyStructure)
		if data == nil {
			return errors.New("missing index structure")
		}
		s, err := index.Unmarshal(data)
		if err != nil {
			return err
		}
		structure = s
		return nil
	})
	return im, structure, err
}

func requireFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return corrupt(path, err)
	}
	if info.IsDir() {
		return corrupt(path, errors.New("is a directory"))
	}
	return nil
}

func corrupt(path string, err error) error {
	return fmt.Errorf("%w: %s: %w", domain.ErrCorruptBundle, path, err)
}

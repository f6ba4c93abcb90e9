// Package bolt persists index snapshots to a single bbolt file inside a
// storage directory.
package bolt

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"runtime/debug"
	"time"

	"go.etcd.io/bbolt"

	"docqa/internal/domain"
	"docqa/internal/vectorstore"
)

// FileName is the database file inside the storage directory.
const FileName = "index.db"

var (
	bucketMeta    = []byte("meta")
	bucketNodes   = []byte("nodes")
	bucketVectors = []byte("vectors")

	keyMeta = []byte("index")
)

const openTimeout = 5 * time.Second

type meta struct {
	EmbedderName  string    `json:"embedder_name"`
	EmbedderModel string    `json:"embedder_model"`
	Dimension     int       `json:"dimension"`
	NodeCount     int       `json:"node_count"`
	CreatedAt     time.Time `json:"created_at"`
}

// Exists reports whether the storage directory exists. It is the only signal
// used to choose between loading and building.
func Exists(dir string) bool {
	info, err := os.Stat(dir)
	return err == nil && info.IsDir()
}

// Persist writes snap to dir, creating the directory as needed. Existing
// content of the database is replaced.
func Persist(dir string, snap *vectorstore.Snapshot) error {
	if len(snap.Nodes) != len(snap.Vectors) {
		return errors.New("persist: nodes and vectors length mismatch")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("persist: %w", err)
	}
	db, err := bbolt.Open(filepath.Join(dir, FileName), 0o600, &bbolt.Options{Timeout: openTimeout})
	if err != nil {
		return fmt.Errorf("persist: %w", err)
	}
	defer db.Close()

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketMeta, bucketNodes, bucketVectors} {
			if tx.Bucket(name) != nil {
				if err := tx.DeleteBucket(name); err != nil {
					return err
				}
			}
		}
		mb, err := tx.CreateBucket(bucketMeta)
		if err != nil {
			return err
		}
		nb, err := tx.CreateBucket(bucketNodes)
		if err != nil {
			return err
		}
		vb, err := tx.CreateBucket(bucketVectors)
		if err != nil {
			return err
		}

		data, err := json.Marshal(meta{
			EmbedderName:  snap.EmbedderName,
			EmbedderModel: snap.EmbedderModel,
			Dimension:     snap.Dimension,
			NodeCount:     len(snap.Nodes),
			CreatedAt:     snap.CreatedAt,
		})
		if err != nil {
			return err
		}
		if err := mb.Put(keyMeta, data); err != nil {
			return err
		}

		for i, n := range snap.Nodes {
			key := seqKey(i)
			data, err := json.Marshal(n)
			if err != nil {
				return err
			}
			if err := nb.Put(key, data); err != nil {
				return err
			}
			if err := vb.Put(key, encodeVector(snap.Vectors[i])); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("persist: %w", err)
	}
	return nil
}

// Open reads the snapshot stored in dir. Any failure to read or decode the
// stored state wraps domain.ErrCorruptIndexStorage.
func Open(dir string) (_ *vectorstore.Snapshot, err error) {
	// bbolt only checksums its meta pages and panics on a damaged data page;
	// faults on the mmap become panics too
	defer debug.SetPanicOnFault(debug.SetPanicOnFault(true))
	defer func() {
		if r := recover(); r != nil {
			err = corrupt(fmt.Errorf("%v", r))
		}
	}()

	path := filepath.Join(dir, FileName)
	if _, err := os.Stat(path); err != nil {
		return nil, corrupt(err)
	}
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: openTimeout, ReadOnly: true})
	if err != nil {
		return nil, corrupt(err)
	}
	defer db.Close()

	var snap vectorstore.Snapshot
	err = db.View(func(tx *bbolt.Tx) error {
		mb, nb, vb := tx.Bucket(bucketMeta), tx.Bucket(bucketNodes), tx.Bucket(bucketVectors)
		if mb == nil || nb == nil || vb == nil {
			return errors.New("missing buckets")
		}
		raw := mb.Get(keyMeta)
		if raw == nil {
			return errors.New("missing index metadata")
		}
		var m meta
		if err := json.Unmarshal(raw, &m); err != nil {
			return fmt.Errorf("decode metadata: %w", err)
		}
		snap.EmbedderName = m.EmbedderName
		snap.EmbedderModel = m.EmbedderModel
		snap.Dimension = m.Dimension
		snap.CreatedAt = m.CreatedAt

		err := nb.ForEach(func(k, v []byte) error {
			n, err := decodeNode(v)
			if err != nil {
				return fmt.Errorf("decode node %s: %w", k, err)
			}
			vec, err := decodeVector(vb.Get(k), m.Dimension)
			if err != nil {
				return fmt.Errorf("decode vector %s: %w", k, err)
			}
			snap.Nodes = append(snap.Nodes, n)
			snap.Vectors = append(snap.Vectors, vec)
			return nil
		})
		if err != nil {
			return err
		}
		if len(snap.Nodes) != m.NodeCount {
			return fmt.Errorf("expected %d nodes, found %d", m.NodeCount, len(snap.Nodes))
		}
		return nil
	})
	if err != nil {
		return nil, corrupt(err)
	}
	return &snap, nil
}

// decodeNode keeps integral metadata values as int64, the type they were
// built with, instead of JSON's float64.
func decodeNode(data []byte) (domain.Node, error) {
	var n domain.Node
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&n); err != nil {
		return n, err
	}
	for k, v := range n.Metadata {
		num, ok := v.(json.Number)
		if !ok {
			continue
		}
		if i, err := num.Int64(); err == nil {
			n.Metadata[k] = i
		} else if f, err := num.Float64(); err == nil {
			n.Metadata[k] = f
		}
	}
	return n, nil
}

func corrupt(err error) error {
	return fmt.Errorf("%w: %v", domain.ErrCorruptIndexStorage, err)
}

// seqKey keeps bbolt's byte ordering equal to insertion order.
func seqKey(i int) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, uint64(i))
	return key
}

func encodeVector(v []float64) []byte {
	buf := make([]byte, 8*len(v))
	for i, x := range v {
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(x))
	}
	return buf
}

func decodeVector(b []byte, dimension int) ([]float64, error) {
	if b == nil && dimension > 0 {
		return nil, errors.New("missing vector")
	}
	if len(b) != 8*dimension {
		return nil, fmt.Errorf("vector has %d bytes, want %d", len(b), 8*dimension)
	}
	v := make([]float64, dimension)
	for i := range v {
		v[i] = math.Float64frombits(binary.LittleEndian.Uint64(b[i*8:]))
	}
	return v, nil
}

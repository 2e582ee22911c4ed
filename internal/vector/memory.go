package vector

import (
	"bufio"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/hyperjump/zantara/internal/models"
)

// snapshotMagic identifies a memory store snapshot file (version 1).
const snapshotMagic = "ZVS1"

// MemoryStore is an in-memory vector store using brute-force inner product search.
// Suitable for tests, development and small knowledge bases.
type MemoryStore struct {
	collections map[string]*memCollection
	mu          sync.RWMutex
}

type memCollection struct {
	dimensions int
	chunks     map[string]*models.DocumentChunk
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{collections: make(map[string]*memCollection)}
}

// Type returns the backend identifier.
func (m *MemoryStore) Type() string {
	return string(BackendMemory)
}

// EnsureCollection creates the collection if missing.
func (m *MemoryStore) EnsureCollection(ctx context.Context, collection string, dimensions int) error {
	if collection == "" {
		return fmt.Errorf("collection name is required")
	}
	if dimensions <= 0 {
		return fmt.Errorf("dimensions must be positive")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.collections[collection]; ok {
		if c.dimensions != dimensions {
			return fmt.Errorf("collection %s: %w", collection, &DimensionError{Got: dimensions, Want: c.dimensions})
		}
		return nil
	}
	m.collections[collection] = &memCollection{dimensions: dimensions, chunks: make(map[string]*models.DocumentChunk)}
	return nil
}

// Upsert stores copies of chunks, replacing any with the same ID.
func (m *MemoryStore) Upsert(ctx context.Context, collection string, chunks []*models.DocumentChunk) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.collections[collection]
	if !ok {
		return fmt.Errorf("%s: %w", collection, ErrCollectionNotFound)
	}
	if err := validateChunks(chunks, c.dimensions); err != nil {
		return err
	}
	for _, ch := range chunks {
		cp := *ch
		cp.Collection = collection
		cp.Embedding = make([]float32, len(ch.Embedding))
		copy(cp.Embedding, ch.Embedding)
		if cp.CreatedAt.IsZero() {
			cp.CreatedAt = time.Now().UTC()
		}
		c.chunks[ch.ID] = &cp
	}
	return nil
}

// Search returns the top-k chunks by inner product (assumes normalized vectors = cosine similarity).
// Equal scores are ordered by chunk ID.
func (m *MemoryStore) Search(ctx context.Context, collection string, query []float32, filter *Filter, k int) ([]*models.SearchHit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.collections[collection]
	if !ok {
		return nil, fmt.Errorf("%s: %w", collection, ErrCollectionNotFound)
	}
	if len(query) != c.dimensions {
		return nil, &DimensionError{Got: len(query), Want: c.dimensions}
	}
	if k <= 0 || len(c.chunks) == 0 {
		return []*models.SearchHit{}, nil
	}

	hits := make([]*models.SearchHit, 0, len(c.chunks))
	for _, ch := range c.chunks {
		if !filter.Match(ch.Metadata) {
			continue
		}
		hits = append(hits, &models.SearchHit{
			ID:         ch.ID,
			Collection: collection,
			Text:       ch.Text,
			Metadata:   ch.Metadata,
			Score:      Cosine(query, ch.Embedding),
		})
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ID < hits[j].ID
	})
	if k < len(hits) {
		hits = hits[:k]
	}
	return hits, nil
}

// Delete removes chunks by ID. Unknown IDs are ignored.
func (m *MemoryStore) Delete(ctx context.Context, collection string, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.collections[collection]
	if !ok {
		return nil
	}
	for _, id := range ids {
		delete(c.chunks, id)
	}
	return nil
}

// DeleteDocument removes every chunk of documentID.
func (m *MemoryStore) DeleteDocument(ctx context.Context, collection string, documentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.collections[collection]
	if !ok {
		return nil
	}
	for id, ch := range c.chunks {
		if ch.Metadata.DocumentID == documentID {
			delete(c.chunks, id)
		}
	}
	return nil
}

// Count returns the number of chunks in collection.
func (m *MemoryStore) Count(ctx context.Context, collection string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.collections[collection]
	if !ok {
		return 0, fmt.Errorf("%s: %w", collection, ErrCollectionNotFound)
	}
	return len(c.chunks), nil
}

// Collections returns the sorted collection names.
func (m *MemoryStore) Collections(ctx context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.collections))
	for name := range m.collections {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Close is a no-op for MemoryStore.
func (m *MemoryStore) Close() error {
	return nil
}

// Save persists the store to path. Directory is created if needed. Format: magic, collection
// count, then per collection: name, dimensions, chunk count, and per chunk: id, text, metadata
// JSON, created_at (unix nanos), vector. Strings are length-prefixed; integers little endian.
func (m *MemoryStore) Save(path string) error {
	if path == "" {
		return nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create snapshot file: %w", err)
	}
	w := bufio.NewWriter(f)
	if err := m.writeSnapshot(w); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := w.Flush(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("flush snapshot: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close snapshot: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace snapshot: %w", err)
	}
	return nil
}

func (m *MemoryStore) writeSnapshot(w io.Writer) error {
	if _, err := io.WriteString(w, snapshotMagic); err != nil {
		return fmt.Errorf("write magic: %w", err)
	}
	names := make([]string, 0, len(m.collections))
	for name := range m.collections {
		names = append(names, name)
	}
	sort.Strings(names)
	if err := writeUint32(w, uint32(len(names))); err != nil {
		return fmt.Errorf("write collection count: %w", err)
	}
	for _, name := range names {
		c := m.collections[name]
		if err := writeString(w, name); err != nil {
			return fmt.Errorf("write collection name: %w", err)
		}
		if err := writeUint32(w, uint32(c.dimensions)); err != nil {
			return fmt.Errorf("write dimensions: %w", err)
		}
		if err := writeUint32(w, uint32(len(c.chunks))); err != nil {
			return fmt.Errorf("write count: %w", err)
		}
		ids := make([]string, 0, len(c.chunks))
		for id := range c.chunks {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			ch := c.chunks[id]
			meta, err := json.Marshal(ch.Metadata)
			if err != nil {
				return fmt.Errorf("encode metadata of %s: %w", id, err)
			}
			if err := writeString(w, id); err != nil {
				return fmt.Errorf("write id: %w", err)
			}
			if err := writeString(w, ch.Text); err != nil {
				return fmt.Errorf("write text: %w", err)
			}
			if err := writeString(w, string(meta)); err != nil {
				return fmt.Errorf("write metadata: %w", err)
			}
			if err := binary.Write(w, binary.LittleEndian, ch.CreatedAt.UnixNano()); err != nil {
				return fmt.Errorf("write created_at: %w", err)
			}
			if _, err := w.Write(float32SliceToBytes(ch.Embedding)); err != nil {
				return fmt.Errorf("write vector: %w", err)
			}
		}
	}
	return nil
}

// Load reads a snapshot from path and replaces the in-memory contents.
// If the file does not exist, no error is returned and the store is unchanged.
func (m *MemoryStore) Load(path string) error {
	if path == "" {
		return nil
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("open snapshot file: %w", err)
	}
	defer f.Close()

	collections, err := readSnapshot(bufio.NewReader(f))
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.collections = collections
	m.mu.Unlock()
	return nil
}

func readSnapshot(r io.Reader) (map[string]*memCollection, error) {
	magic := make([]byte, len(snapshotMagic))
	if _, err := io.ReadFull(r, magic); err != nil {
		return nil, fmt.Errorf("read magic: %w", err)
	}
	if string(magic) != snapshotMagic {
		return nil, fmt.Errorf("not a vector snapshot (magic %q)", magic)
	}
	nColl, err := readUint32(r)
	if err != nil {
		return nil, fmt.Errorf("read collection count: %w", err)
	}
	collections := make(map[string]*memCollection, nColl)
	for i := uint32(0); i < nColl; i++ {
		name, err := readString(r)
		if err != nil {
			return nil, fmt.Errorf("read collection name: %w", err)
		}
		dim, err := readUint32(r)
		if err != nil {
			return nil, fmt.Errorf("read dimensions: %w", err)
		}
		n, err := readUint32(r)
		if err != nil {
			return nil, fmt.Errorf("read count: %w", err)
		}
		c := &memCollection{dimensions: int(dim), chunks: make(map[string]*models.DocumentChunk, n)}
		buf := make([]byte, int(dim)*4)
		for j := uint32(0); j < n; j++ {
			id, err := readString(r)
			if err != nil {
				return nil, fmt.Errorf("read id: %w", err)
			}
			text, err := readString(r)
			if err != nil {
				return nil, fmt.Errorf("read text: %w", err)
			}
			meta, err := readString(r)
			if err != nil {
				return nil, fmt.Errorf("read metadata: %w", err)
			}
			var created int64
			if err := binary.Read(r, binary.LittleEndian, &created); err != nil {
				return nil, fmt.Errorf("read created_at: %w", err)
			}
			if _, err := io.ReadFull(r, buf); err != nil {
				return nil, fmt.Errorf("read vector: %w", err)
			}
			ch := &models.DocumentChunk{
				ID:         id,
				Collection: name,
				Text:       text,
				Embedding:  bytesToFloat32Slice(buf),
				CreatedAt:  time.Unix(0, created).UTC(),
			}
			if err := json.Unmarshal([]byte(meta), &ch.Metadata); err != nil {
				return nil, fmt.Errorf("decode metadata of %s: %w", id, err)
			}
			c.chunks[id] = ch
		}
		collections[name] = c
	}
	return collections, nil
}

func writeUint32(w io.Writer, v uint32) error {
	return binary.Write(w, binary.LittleEndian, v)
}

func readUint32(r io.Reader) (uint32, error) {
	var v uint32
	err := binary.Read(r, binary.LittleEndian, &v)
	return v, err
}

func writeString(w io.Writer, s string) error {
	if err := writeUint32(w, uint32(len(s))); err != nil {
		return err
	}
	_, err := io.WriteString(w, s)
	return err
}

func readString(r io.Reader) (string, error) {
	n, err := readUint32(r)
	if err != nil {
		return "", err
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", err
	}
	return string(b), nil
}

func float32SliceToBytes(s []float32) []byte {
	const size = 4
	out := make([]byte, len(s)*size)
	for i, v := range s {
		binary.LittleEndian.PutUint32(out[i*size:(i+1)*size], math.Float32bits(v))
	}
	return out
}

func bytesToFloat32Slice(b []byte) []float32 {
	const size = 4
	out := make([]float32, len(b)/size)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*size : (i+1)*size]))
	}
	return out
}

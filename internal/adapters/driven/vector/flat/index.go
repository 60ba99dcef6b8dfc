// Package flat provides an exact in-memory vector index persisted as a
// single snapshot file.
package flat

import (
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/core/ports/driven"
	"github.com/custodia-labs/docqa/internal/logger"
)

// Ensure Index implements the interface.
var _ driven.VectorIndex = (*Index)(nil)

// Snapshot layout (little endian):
//
//	magic "DQVI" | version u32 | dims u32 | count u32
//	count x ( idLen u16 | id | dims x f32 )
//	crc32 (IEEE) of everything above
const (
	snapshotMagic   = "DQVI"
	snapshotVersion = uint32(1)
	headerSize      = 16
	trailerSize     = 4
	maxIDLength     = math.MaxUint16
)

// ErrCorruptSnapshot indicates the snapshot failed validation.
var ErrCorruptSnapshot = errors.New("corrupt vector snapshot")

// replaceFile commits a written snapshot. Tests swap it to simulate failures.
var replaceFile = os.Rename

// Index stores vectors in insertion order and scans them all on search.
type Index struct {
	mu sync.RWMutex

	path      string
	fixedDims int
	dims      int

	ids   []string
	vecs  [][]float32
	norms []float64
	pos   map[string]int
	dirty bool
}

// New creates an index. When path names an existing snapshot it is loaded.
// An empty path keeps the index in memory only. dims may be zero, in which
// case the dimension is taken from the snapshot or the first Add.
func New(path string, dims int) (*Index, error) {
	idx := &Index{
		path:      path,
		fixedDims: dims,
		dims:      dims,
		pos:       make(map[string]int),
	}
	if path == "" {
		return idx, nil
	}

	if err := idx.load(); err != nil {
		return nil, err
	}
	return idx, nil
}

// Add inserts vectors. The whole call fails without changes when any id
// is a duplicate or any vector has the wrong dimension.
func (i *Index) Add(ctx context.Context, ids []string, vectors [][]float32) error {
	if len(ids) != len(vectors) {
		return fmt.Errorf("%w: %d ids for %d vectors", domain.ErrInvalidArgument, len(ids), len(vectors))
	}
	if len(ids) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	dims := i.dims
	if dims == 0 {
		dims = len(vectors[0])
	}

	seen := make(map[string]struct{}, len(ids))
	for n, id := range ids {
		if id == "" || len(id) > maxIDLength {
			return fmt.Errorf("%w: embedding id length %d", domain.ErrInvalidArgument, len(id))
		}
		if _, ok := i.pos[id]; ok {
			return fmt.Errorf("%w: embedding %s", domain.ErrAlreadyExists, id)
		}
		if _, ok := seen[id]; ok {
			return fmt.Errorf("%w: embedding %s repeated in batch", domain.ErrAlreadyExists, id)
		}
		seen[id] = struct{}{}
		if len(vectors[n]) != dims || dims == 0 {
			return fmt.Errorf("%w: vector %d has %d dimensions, index has %d",
				domain.ErrInvalidArgument, n, len(vectors[n]), dims)
		}
	}

	i.dims = dims
	for n, id := range ids {
		vec := make([]float32, dims)
		copy(vec, vectors[n])
		i.pos[id] = len(i.ids)
		i.ids = append(i.ids, id)
		i.vecs = append(i.vecs, vec)
		i.norms = append(i.norms, norm(vec))
	}
	i.dirty = true
	return nil
}

// Search returns hits ordered by descending cosine similarity. Ties keep
// insertion order. An empty index returns no hits for any arguments.
func (i *Index) Search(ctx context.Context, query []float32, topK int, threshold float64) ([]driven.VectorHit, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()

	if len(i.ids) == 0 {
		return []driven.VectorHit{}, nil
	}
	if topK <= 0 {
		return nil, fmt.Errorf("%w: top k must be positive, got %d", domain.ErrInvalidArgument, topK)
	}
	if len(query) != i.dims {
		return nil, fmt.Errorf("%w: query has %d dimensions, index has %d",
			domain.ErrInvalidArgument, len(query), i.dims)
	}

	qNorm := norm(query)
	hits := make([]driven.VectorHit, 0, len(i.ids))
	for n, vec := range i.vecs {
		if n%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		sim := cosine(query, vec, qNorm, i.norms[n])
		if sim < threshold {
			continue
		}
		hits = append(hits, driven.VectorHit{EmbeddingID: i.ids[n], Similarity: sim})
	}

	sort.SliceStable(hits, func(a, b int) bool {
		return hits[a].Similarity > hits[b].Similarity
	})
	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

// Delete removes ids, keeping the order of the remaining vectors.
func (i *Index) Delete(ctx context.Context, ids []string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	drop := make(map[int]struct{}, len(ids))
	for _, id := range ids {
		if p, ok := i.pos[id]; ok {
			drop[p] = struct{}{}
		}
	}
	if len(drop) == 0 {
		return true, nil
	}

	keep := 0
	for n := range i.ids {
		if _, ok := drop[n]; ok {
			delete(i.pos, i.ids[n])
			continue
		}
		i.ids[keep] = i.ids[n]
		i.vecs[keep] = i.vecs[n]
		i.norms[keep] = i.norms[n]
		i.pos[i.ids[keep]] = keep
		keep++
	}
	clear(i.vecs[keep:])
	i.ids = i.ids[:keep]
	i.vecs = i.vecs[:keep]
	i.norms = i.norms[:keep]
	i.dirty = true
	return true, nil
}

// Clear removes every vector.
func (i *Index) Clear(_ context.Context) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	i.ids = nil
	i.vecs = nil
	i.norms = nil
	i.pos = make(map[string]int)
	i.dims = i.fixedDims
	i.dirty = true
	return nil
}

// Save writes the snapshot atomically: a temp file in the same directory
// is fsynced and renamed over the previous snapshot.
func (i *Index) Save(ctx context.Context) error {
	if i.path == "" {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	if err := i.writeSnapshot(); err != nil {
		return err
	}
	i.dirty = false
	logger.Debug("vector index: saved %d vectors to %s", len(i.ids), i.path)
	return nil
}

// Len returns the number of stored vectors.
func (i *Index) Len() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return len(i.ids)
}

// Dimensions returns the vector size, or 0 before the first Add.
func (i *Index) Dimensions() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.dims
}

// Close saves pending changes.
func (i *Index) Close() error {
	i.mu.RLock()
	dirty := i.dirty
	i.mu.RUnlock()

	if !dirty {
		return nil
	}
	return i.Save(context.Background())
}

func (i *Index) writeSnapshot() error {
	dir := filepath.Dir(i.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create index directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".vectors-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp snapshot: %w", err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	crc := crc32.NewIEEE()
	w := bufio.NewWriter(io.MultiWriter(tmp, crc))
	if err := i.encode(w); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := binary.Write(tmp, binary.LittleEndian, crc.Sum32()); err != nil {
		return fmt.Errorf("write snapshot checksum: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("sync snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close snapshot: %w", err)
	}
	if err := replaceFile(tmpName, i.path); err != nil {
		return fmt.Errorf("replace snapshot: %w", err)
	}
	committed = true
	return nil
}

func (i *Index) encode(w io.Writer) error {
	header := make([]byte, headerSize)
	copy(header, snapshotMagic)
	binary.LittleEndian.PutUint32(header[4:], snapshotVersion)
	binary.LittleEndian.PutUint32(header[8:], uint32(i.dims))
	binary.LittleEndian.PutUint32(header[12:], uint32(len(i.ids)))
	if _, err := w.Write(header); err != nil {
		return err
	}

	buf := make([]byte, 4*i.dims)
	for n, id := range i.ids {
		if err := binary.Write(w, binary.LittleEndian, uint16(len(id))); err != nil {
			return err
		}
		if _, err := io.WriteString(w, id); err != nil {
			return err
		}
		for d, v := range i.vecs[n] {
			binary.LittleEndian.PutUint32(buf[4*d:], math.Float32bits(v))
		}
		if _, err := w.Write(buf); err != nil {
			return err
		}
	}
	return nil
}

func (i *Index) load() error {
	data, err := os.ReadFile(i.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read snapshot: %w", err)
	}

	if len(data) < headerSize+trailerSize {
		return fmt.Errorf("%w: %d bytes", ErrCorruptSnapshot, len(data))
	}
	body, trailer := data[:len(data)-trailerSize], data[len(data)-trailerSize:]
	if crc32.ChecksumIEEE(body) != binary.LittleEndian.Uint32(trailer) {
		return fmt.Errorf("%w: checksum mismatch", ErrCorruptSnapshot)
	}
	if string(body[:4]) != snapshotMagic {
		return fmt.Errorf("%w: bad magic", ErrCorruptSnapshot)
	}
	if v := binary.LittleEndian.Uint32(body[4:]); v != snapshotVersion {
		return fmt.Errorf("%w: unsupported version %d", ErrCorruptSnapshot, v)
	}
	dims := int(binary.LittleEndian.Uint32(body[8:]))
	count := int(binary.LittleEndian.Uint32(body[12:]))

	if i.fixedDims > 0 && count > 0 && dims != i.fixedDims {
		return fmt.Errorf("%w: snapshot has %d dimensions, configured %d",
			domain.ErrInvalidArgument, dims, i.fixedDims)
	}

	r := bytes.NewReader(body[headerSize:])
	buf := make([]byte, 4*dims)
	for n := 0; n < count; n++ {
		var idLen uint16
		if err := binary.Read(r, binary.LittleEndian, &idLen); err != nil {
			return fmt.Errorf("%w: entry %d: %w", ErrCorruptSnapshot, n, err)
		}
		id := make([]byte, idLen)
		if _, err := io.ReadFull(r, id); err != nil {
			return fmt.Errorf("%w: entry %d: %w", ErrCorruptSnapshot, n, err)
		}
		if _, err := io.ReadFull(r, buf); err != nil {
			return fmt.Errorf("%w: entry %d: %w", ErrCorruptSnapshot, n, err)
		}
		vec := make([]float32, dims)
		for d := range vec {
			vec[d] = math.Float32frombits(binary.LittleEndian.Uint32(buf[4*d:]))
		}

		i.pos[string(id)] = len(i.ids)
		i.ids = append(i.ids, string(id))
		i.vecs = append(i.vecs, vec)
		i.norms = append(i.norms, norm(vec))
	}
	if r.Len() != 0 {
		return fmt.Errorf("%w: %d trailing bytes", ErrCorruptSnapshot, r.Len())
	}
	if count > 0 || i.dims == 0 {
		i.dims = dims
	}

	logger.Debug("vector index: loaded %d vectors (%d dimensions) from %s", count, dims, i.path)
	return nil
}

func norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

// cosine returns 0 when either vector has zero length.
func cosine(a, b []float32, na, nb float64) float64 {
	if na == 0 || nb == 0 {
		return 0
	}
	var dot float64
	for n := range a {
		dot += float64(a[n]) * float64(b[n])
	}
	sim := dot / (na * nb)
	return math.Max(-1, math.Min(1, sim))
}

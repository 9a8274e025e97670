package index

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"
)

// manifest is the metadata/lookup half of an index directory. It records the
// embedder identity used at creation so a load with a different embedder can
// be rejected instead of silently searching the wrong vector space.
type manifest struct {
	Embedder  string        `json:"embedder"`
	Dimension int           `json:"dimension"`
	Count     int           `json:"count"`
	CreatedAt time.Time     `json:"created_at"`
	Chunks    []chunkRecord `json:"chunks"`
}

type chunkRecord struct {
	DocumentID string            `json:"document_id"`
	Index      int               `json:"index"`
	Content    string            `json:"content"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

func writeManifest(path string, man *manifest) error {
	data, err := json.Marshal(man)
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

func readManifest(path string) (*manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var man manifest
	if err := json.Unmarshal(data, &man); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}
	return &man, nil
}

// The vector file is a flat little-endian block: a 4-byte magic, the
// dimension and vector count as uint32, then count*dimension float32 values.
var vectorMagic = [4]byte{'D', 'C', 'V', '1'}

func writeVectors(path string, vectors [][]float32) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	if _, err := w.Write(vectorMagic[:]); err != nil {
		return err
	}
	dim := 0
	if len(vectors) > 0 {
		dim = len(vectors[0])
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(dim)); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(len(vectors))); err != nil {
		return err
	}
	for _, vec := range vectors {
		if len(vec) != dim {
			return fmt.Errorf("inconsistent vector dimension: expected %d, got %d", dim, len(vec))
		}
		if err := binary.Write(w, binary.LittleEndian, vec); err != nil {
			return err
		}
	}
	if err := w.Flush(); err != nil {
		return err
	}
	return f.Sync()
}

func readVectors(path string) ([][]float32, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := bufio.NewReader(f)
	var magic [4]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil {
		return nil, fmt.Errorf("read vector header: %w", err)
	}
	if magic != vectorMagic {
		return nil, fmt.Errorf("bad vector file magic %q", magic)
	}
	var dim, count uint32
	if err := binary.Read(r, binary.LittleEndian, &dim); err != nil {
		return nil, fmt.Errorf("read vector header: %w", err)
	}
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return nil, fmt.Errorf("read vector header: %w", err)
	}

	// Check the declared sizes against the actual file size before
	// allocating; a corrupt header must not drive a huge allocation.
	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	const headerSize = int64(4 + 4 + 4)
	need := int64(count) * int64(dim) * 4
	if need != info.Size()-headerSize {
		return nil, fmt.Errorf("vector file size %d does not match header (%d vectors of dimension %d)",
			info.Size(), count, dim)
	}

	vectors := make([][]float32, count)
	for i := range vectors {
		vec := make([]float32, dim)
		if err := binary.Read(r, binary.LittleEndian, vec); err != nil {
			return nil, fmt.Errorf("read vector %d: %w", i, err)
		}
		vectors[i] = vec
	}
	return vectors, nil
}

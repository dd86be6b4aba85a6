package knowledge

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"io/fs"
	"time"

	"github.com/kechemale/TenaAI/pkg/chunk"
	"github.com/kechemale/TenaAI/pkg/storage"
	"github.com/kechemale/TenaAI/pkg/vecstore"
	"github.com/vmihailenco/msgpack/v5"
)

// Snapshot artifact names, relative to the FileStore root.
const (
	IndexFile  = "index.bin"
	ChunksFile = "chunks.msgpack"
)

const manifestVersion = 1

// manifest is the content of ChunksFile. Chunks[i] belongs to vector i of
// the index whose SHA-256 is IndexSHA256.
type manifest struct {
	Version        int           `msgpack:"version"`
	EmbeddingModel string        `msgpack:"embedding_model"`
	Dim            int           `msgpack:"dim"`
	IndexKind      string        `msgpack:"index_kind"`
	IndexSHA256    string        `msgpack:"index_sha256"`
	CreatedAt      time.Time     `msgpack:"created_at"`
	Chunks         []chunk.Chunk `msgpack:"chunks"`
}

// writeIndex saves idx to IndexFile and returns the hex SHA-256 of the
// bytes written.
func writeIndex(ctx context.Context, files storage.FileStore, idx vecstore.Index) (string, error) {
	h := sha256.New()
	err := writeArtifact(ctx, files, IndexFile, func(w io.Writer) error {
		return idx.Save(io.MultiWriter(w, h))
	})
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func writeManifest(ctx context.Context, files storage.FileStore, m *manifest) error {
	return writeArtifact(ctx, files, ChunksFile, func(w io.Writer) error {
		return msgpack.NewEncoder(w).Encode(m)
	})
}

// writeArtifact publishes a file only if fill and Close both succeed.
func writeArtifact(ctx context.Context, files storage.FileStore, name string, fill func(io.Writer) error) error {
	w, err := files.Write(ctx, name)
	if err != nil {
		return fmt.Errorf("knowledge: write %s: %w", name, err)
	}
	if err := fill(w); err != nil {
		storage.Abort(w)
		return fmt.Errorf("knowledge: write %s: %w", name, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("knowledge: write %s: %w", name, err)
	}
	return nil
}

// readIndex loads IndexFile and returns it with the hex SHA-256 of the
// whole file.
func readIndex(ctx context.Context, files storage.FileStore) (vecstore.Index, string, error) {
	r, err := openArtifact(ctx, files, IndexFile)
	if err != nil {
		return nil, "", err
	}
	defer r.Close()

	h := sha256.New()
	tee := io.TeeReader(r, h)
	idx, err := vecstore.Load(tee)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %s: %w", ErrCorrupt, IndexFile, err)
	}
	sum, err := drainSum(tee, h)
	if err != nil {
		idx.Close()
		return nil, "", fmt.Errorf("knowledge: read %s: %w", IndexFile, err)
	}
	return idx, sum, nil
}

func readManifest(ctx context.Context, files storage.FileStore) (*manifest, error) {
	r, err := openArtifact(ctx, files, ChunksFile)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	var m manifest
	if err := msgpack.NewDecoder(r).Decode(&m); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrCorrupt, ChunksFile, err)
	}
	if m.Version != manifestVersion {
		return nil, fmt.Errorf("%w: %s: unsupported version %d", ErrCorrupt, ChunksFile, m.Version)
	}
	return &m, nil
}

func openArtifact(ctx context.Context, files storage.FileStore, name string) (io.ReadCloser, error) {
	r, err := files.Read(ctx, name)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: missing %s", ErrNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("knowledge: read %s: %w", name, err)
	}
	return r, nil
}

// drainSum reads whatever the decoder left unread so h covers the whole
// file.
func drainSum(r io.Reader, h hash.Hash) (string, error) {
	if _, err := io.Copy(io.Discard, r); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

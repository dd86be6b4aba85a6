package chunk

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/goccy/go-yaml"
)

// Load reads chunks from path. path may be a single file or a directory;
// directories are scanned (non-recursively) for supported files in name
// order.
//
// Supported formats by extension:
//
//	.jsonl       one JSON chunk object per line
//	.json        a JSON array of chunk objects
//	.yaml, .yml  a YAML sequence of chunk objects
//
// Chunks from each file are normalized with the file's base name (without
// extension) as the source, then the combined result is validated.
func Load(path string) ([]Chunk, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("chunk: %w", err)
	}

	var files []string
	if info.IsDir() {
		entries, err := os.ReadDir(path)
		if err != nil {
			return nil, fmt.Errorf("chunk: read dir: %w", err)
		}
		for _, e := range entries {
			if e.IsDir() || !Supported(e.Name()) {
				continue
			}
			files = append(files, filepath.Join(path, e.Name()))
		}
		slices.Sort(files)
	} else {
		files = []string{path}
	}

	var all []Chunk
	for _, f := range files {
		chunks, err := LoadFile(f)
		if err != nil {
			return nil, err
		}
		all = append(all, chunks...)
	}
	if err := Validate(all); err != nil {
		return nil, err
	}
	return all, nil
}

// Supported reports whether name has an extension Load understands.
func Supported(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jsonl", ".json", ".yaml", ".yml":
		return true
	}
	return false
}

// LoadFile reads and normalizes the chunks of a single file.
func LoadFile(path string) ([]Chunk, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("chunk: %w", err)
	}

	base := filepath.Base(path)
	ext := strings.ToLower(filepath.Ext(base))
	source := strings.TrimSuffix(base, filepath.Ext(base))

	var chunks []Chunk
	switch ext {
	case ".jsonl":
		chunks, err = decodeJSONL(bytes.NewReader(data))
	case ".json":
		err = json.Unmarshal(data, &chunks)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &chunks)
	default:
		return nil, fmt.Errorf("chunk: unsupported file type %q", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("chunk: parse %s: %w", path, err)
	}

	Normalize(source, chunks)
	return chunks, nil
}

func decodeJSONL(r io.Reader) ([]Chunk, error) {
	var chunks []Chunk
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		b := bytes.TrimSpace(sc.Bytes())
		if len(b) == 0 {
			continue
		}
		var c Chunk
		if err := json.Unmarshal(b, &c); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		chunks = append(chunks, c)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return chunks, nil
}

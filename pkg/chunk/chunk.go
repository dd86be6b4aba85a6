// Package chunk defines the unit of retrieval and reads chunk files
// produced by an external ingestion process.
//
// A chunk carries its text twice: once in [Chunk.Text] and once under
// [MetaText] in its metadata. The query engine reads context only from the
// metadata copy, so every loader fills it in through [Normalize].
package chunk

import (
	"errors"
	"fmt"
	"strings"
)

// MetaText is the metadata key that duplicates a chunk's text.
const MetaText = "text"

// MetaSource is the metadata key naming the document a chunk came from.
const MetaSource = "source"

// Chunk is a unit of source text plus its metadata.
type Chunk struct {
	ID       string            `json:"id" yaml:"id" msgpack:"id"`
	Text     string            `json:"text" yaml:"text" msgpack:"text"`
	Metadata map[string]string `json:"metadata,omitempty" yaml:"metadata,omitempty" msgpack:"metadata,omitempty"`
}

// ContextText returns the text the query engine uses as grounding context,
// i.e. Metadata[MetaText]. It returns "" when the key is absent.
func (c Chunk) ContextText() string {
	return c.Metadata[MetaText]
}

var (
	// ErrEmptyText is returned for a chunk with blank text.
	ErrEmptyText = errors.New("chunk: empty text")

	// ErrDuplicateID is returned when two chunks share an ID.
	ErrDuplicateID = errors.New("chunk: duplicate id")
)

// Normalize fills in what a loader may leave out: a missing ID becomes
// "<source>#<n>" (n is the chunk's index in chunks), and a missing
// metadata text is copied from Text. The slice is modified in place.
func Normalize(source string, chunks []Chunk) {
	for i := range chunks {
		c := &chunks[i]
		if c.ID == "" {
			c.ID = fmt.Sprintf("%s#%d", source, i)
		}
		if c.Metadata == nil {
			c.Metadata = make(map[string]string, 2)
		}
		if _, ok := c.Metadata[MetaText]; !ok {
			c.Metadata[MetaText] = c.Text
		}
		if _, ok := c.Metadata[MetaSource]; !ok && source != "" {
			c.Metadata[MetaSource] = source
		}
	}
}

// Validate checks that every chunk has non-blank text and a unique ID.
func Validate(chunks []Chunk) error {
	seen := make(map[string]int, len(chunks))
	for i, c := range chunks {
		if strings.TrimSpace(c.Text) == "" {
			return fmt.Errorf("%w: chunk %d (id %q)", ErrEmptyText, i, c.ID)
		}
		if j, ok := seen[c.ID]; ok {
			return fmt.Errorf("%w: %q at %d and %d", ErrDuplicateID, c.ID, j, i)
		}
		seen[c.ID] = i
	}
	return nil
}

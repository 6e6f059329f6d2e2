package chunk

import (
	"errors"
	"strings"
)

// ErrBadChunkStride means the configured window and overlap leave a
// non-positive stride, which would make the window loop spin forever. It is
// a configuration error and must be treated as fatal.
var ErrBadChunkStride = errors.New("chunk overlap must be smaller than chunk size")

// Chunker slides a fixed-size token window over text with overlap. Identical
// input and settings always produce byte-identical chunks.
type Chunker struct {
	tok     Tokenizer
	size    int
	overlap int
}

func NewChunker(tok Tokenizer, size, overlap int) (*Chunker, error) {
	if size-overlap <= 0 {
		return nil, ErrBadChunkStride
	}

	return &Chunker{tok: tok, size: size, overlap: overlap}, nil
}

// Chunk splits text into overlapping token windows, each carrying meta.
// Empty or whitespace-only text yields no chunks. The last window may be
// shorter than the configured size, never padded.
func (c *Chunker) Chunk(text string, meta Metadata) []Chunk {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	tokens := c.tok.Encode(text)
	if len(tokens) == 0 {
		return nil
	}

	step := c.size - c.overlap
	chunks := make([]Chunk, 0, len(tokens)/step+1)

	pos := 0
	for i := 0; ; i++ {
		end := min(pos+c.size, len(tokens))
		chunks = append(chunks, Chunk{
			Text:       c.tok.Decode(tokens[pos:end]),
			Index:      i,
			StartToken: pos,
			EndToken:   end,
			Meta:       meta,
		})
		if end >= len(tokens) {
			break
		}

		pos += step
	}

	return chunks
}

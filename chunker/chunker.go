package chunker

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"askmydocs/types"
)

// Splitter cuts document text into overlapping spans of at most
// MaxChunkLen runes. Cuts prefer a paragraph break, then a sentence
// end, then any whitespace inside a trailing search window; if the
// window holds no boundary the cut is hard. Chunks are exact
// substrings of the source text so that re-concatenation minus the
// overlap recovers the document.
type Splitter struct {
	maxLen  int
	overlap int
}

func NewSplitter(maxLen, overlap int) (*Splitter, error) {
	if maxLen <= 0 {
		return nil, fmt.Errorf("chunk length must be positive, got %d", maxLen)
	}
	if overlap < 0 || overlap >= maxLen {
		return nil, fmt.Errorf("overlap must satisfy 0 <= overlap < %d, got %d", maxLen, overlap)
	}
	return &Splitter{maxLen: maxLen, overlap: overlap}, nil
}

// Split returns the ordered chunks of doc. An empty or whitespace-only
// document yields no chunks. Every chunk carries a copy of the
// document metadata plus its own position, so a later delete by source
// id removes all of them.
func (s *Splitter) Split(doc types.Document) []types.Chunk {
	if strings.TrimSpace(doc.Text) == "" {
		return nil
	}

	runes := []rune(doc.Text)
	var chunks []types.Chunk
	start := 0
	pos := 0

	for start < len(runes) {
		end := start + s.maxLen
		if end >= len(runes) {
			end = len(runes)
		} else {
			end = s.breakAt(runes, start, end)
		}

		chunks = append(chunks, types.Chunk{
			Text:     string(runes[start:end]),
			Position: pos,
			Metadata: s.chunkMetadata(doc, pos),
		})
		pos++

		if end == len(runes) {
			break
		}
		start = end - s.overlap
	}

	return chunks
}

// breakAt looks backwards from the hard limit for a natural boundary.
// The search floor keeps every chunk longer than the overlap, which
// guarantees forward progress.
func (s *Splitter) breakAt(runes []rune, start, limit int) int {
	window := s.maxLen / 5
	if window < 1 {
		window = 1
	}
	low := limit - window
	if floor := start + s.overlap + 1; low < floor {
		low = floor
	}
	if low >= limit {
		return limit
	}

	for i := limit; i > low; i-- {
		if runes[i-1] == '\n' && runes[i-2] == '\n' {
			return i
		}
	}
	for i := limit; i > low; i-- {
		if isSentenceEnd(runes[i-1]) && unicode.IsSpace(runes[i]) {
			return i
		}
	}
	for i := limit; i > low; i-- {
		if unicode.IsSpace(runes[i-1]) {
			return i
		}
	}
	return limit
}

func (s *Splitter) chunkMetadata(doc types.Document, pos int) types.Metadata {
	md := doc.Metadata.Clone()
	if doc.SourceID != "" {
		md[types.MetaSourceID] = doc.SourceID
	}
	if doc.SourceName != "" {
		md[types.MetaSourceName] = doc.SourceName
	}
	md[types.MetaPosition] = strconv.Itoa(pos)
	return md
}

func isSentenceEnd(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}

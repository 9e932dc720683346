package corpus

import (
	"strings"
	"unicode/utf8"
)

// Separators is the split hierarchy for feedback verbatims, ordered from
// the strongest semantic boundary to the weakest. The trailing empty
// separator is the character-level last resort.
var Separators = []string{
	"\n\n",
	".\n",
	". ",
	"! ",
	"? ",
	";\n",
	"; ",
	",\n",
	" - ",
	" ",
	"",
}

// MinTextLen is the minimum verbatim length worth indexing, in runes.
// Shorter texts carry no searchable signal and are skipped.
const MinTextLen = 10

// ChunkParams holds the chunking window for one verbatim.
type ChunkParams struct {
	// Size is the maximum chunk length in runes, overlap included.
	Size int

	// Overlap is the number of trailing runes carried into the next chunk.
	Overlap int
}

// ParamsFor picks chunking parameters by text length in runes. Short
// feedback stays whole; longer feedback gets progressively larger windows
// so related clauses stay together.
func ParamsFor(textLen int) ChunkParams {
	switch {
	case textLen <= 200:
		return ChunkParams{Size: textLen, Overlap: 0}
	case textLen <= 600:
		return ChunkParams{Size: 600, Overlap: 90}
	case textLen <= 1200:
		return ChunkParams{Size: 800, Overlap: 130}
	default:
		return ChunkParams{Size: 1000, Overlap: 200}
	}
}

// Chunker splits feedback texts into overlapping segments using a
// recursive separator hierarchy: higher-level separators are tried first,
// and only text with no usable boundary is cut mid-word.
type Chunker struct {
	separators []string
}

// NewChunker creates a chunker with the default separator hierarchy.
func NewChunker() *Chunker {
	return &Chunker{separators: Separators}
}

// WithSeparators overrides the separator hierarchy.
func (c *Chunker) WithSeparators(seps []string) *Chunker {
	c.separators = seps
	return c
}

// Chunk splits text according to its length tier. Texts shorter than
// MinTextLen yield no chunks; texts that fit the tier window come back as
// a single chunk equal to the whole (trimmed) text.
func (c *Chunker) Chunk(text string) []string {
	trimmed := strings.TrimSpace(text)
	n := utf8.RuneCountInString(trimmed)
	if n < MinTextLen {
		return nil
	}

	p := ParamsFor(n)
	if n <= p.Size {
		return []string{trimmed}
	}
	return c.split(trimmed, c.separators, p)
}

// split breaks text on the first separator of the hierarchy it contains,
// merges the pieces back into chunks of at most p.Size runes, and recurses
// with the remaining separators for pieces that are still too large.
func (c *Chunker) split(text string, seps []string, p ChunkParams) []string {
	sep := ""
	var rest []string
	for i, s := range seps {
		if s == "" {
			break
		}
		if strings.Contains(text, s) {
			sep = s
			rest = seps[i+1:]
			break
		}
	}

	var splits []string
	if sep == "" {
		// Character-level split as the last resort.
		splits = make([]string, 0, utf8.RuneCountInString(text))
		for _, r := range text {
			splits = append(splits, string(r))
		}
	} else {
		parts := strings.Split(text, sep)
		splits = make([]string, 0, len(parts))
		for i, part := range parts {
			if i < len(parts)-1 {
				part += sep
			}
			if part != "" {
				splits = append(splits, part)
			}
		}
	}

	var chunks []string
	var good []string
	for _, s := range splits {
		if utf8.RuneCountInString(s) <= p.Size {
			good = append(good, s)
			continue
		}
		if len(good) > 0 {
			chunks = append(chunks, mergeSplits(good, p)...)
			good = nil
		}
		chunks = append(chunks, c.split(s, rest, p)...)
	}
	if len(good) > 0 {
		chunks = append(chunks, mergeSplits(good, p)...)
	}
	return chunks
}

// mergeSplits packs consecutive splits into chunks of at most p.Size
// runes. When a chunk fills up, the trailing splits within the overlap
// budget are retained as the start of the next chunk.
func mergeSplits(splits []string, p ChunkParams) []string {
	var chunks []string
	var cur []string
	total := 0

	for _, s := range splits {
		n := utf8.RuneCountInString(s)
		if total+n > p.Size && total > 0 {
			if chunk := joinTrim(cur); chunk != "" {
				chunks = append(chunks, chunk)
			}
			for len(cur) > 0 && (total > p.Overlap || total+n > p.Size) {
				total -= utf8.RuneCountInString(cur[0])
				cur = cur[1:]
			}
		}
		cur = append(cur, s)
		total += n
	}

	if chunk := joinTrim(cur); chunk != "" {
		chunks = append(chunks, chunk)
	}
	return chunks
}

func joinTrim(parts []string) string {
	return strings.TrimSpace(strings.Join(parts, ""))
}

package corpus

import (
	"strings"
	"testing"
	"unicode/utf8"
)

// ============================================================================
// ChunkParams Tests
// ============================================================================

func TestParamsFor(t *testing.T) {
	tests := []struct {
		name        string
		textLen     int
		wantSize    int
		wantOverlap int
	}{
		{"tiny text keeps own size", 50, 50, 0},
		{"tier boundary at 200", 200, 200, 0},
		{"just above 200", 201, 600, 90},
		{"tier boundary at 600", 600, 600, 90},
		{"just above 600", 601, 800, 130},
		{"tier boundary at 1200", 1200, 800, 130},
		{"above 1200", 1201, 1000, 200},
		{"very long text", 50000, 1000, 200},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := ParamsFor(tt.textLen)
			if p.Size != tt.wantSize {
				t.Errorf("ParamsFor(%d).Size = %d, want %d", tt.textLen, p.Size, tt.wantSize)
			}
			if p.Overlap != tt.wantOverlap {
				t.Errorf("ParamsFor(%d).Overlap = %d, want %d", tt.textLen, p.Overlap, tt.wantOverlap)
			}
		})
	}
}

// ============================================================================
// Chunker Tests
// ============================================================================

func TestChunker_TooShort(t *testing.T) {
	c := NewChunker()

	tests := []struct {
		name string
		text string
	}{
		{"empty", ""},
		{"whitespace only", "   \n\t  "},
		{"below minimum", "zu kurz"},
		{"nine runes", "neunchars"},
		{"padded below minimum", "   kurz   "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := c.Chunk(tt.text); got != nil {
				t.Errorf("Chunk(%q) = %v, want nil", tt.text, got)
			}
		})
	}
}

func TestChunker_ShortTextSingleChunk(t *testing.T) {
	c := NewChunker()

	text := "Die Lieferung kam drei Wochen zu spät und niemand hat sich gemeldet."
	chunks := c.Chunk(text)

	if len(chunks) != 1 {
		t.Fatalf("Chunk() returned %d chunks, want 1", len(chunks))
	}
	if chunks[0] != text {
		t.Errorf("chunk = %q, want %q", chunks[0], text)
	}
}

func TestChunker_TrimsWhitespace(t *testing.T) {
	c := NewChunker()

	chunks := c.Chunk("  Sehr freundlicher Service im Autohaus.  \n")
	if len(chunks) != 1 {
		t.Fatalf("Chunk() returned %d chunks, want 1", len(chunks))
	}
	if chunks[0] != "Sehr freundlicher Service im Autohaus." {
		t.Errorf("chunk = %q, trimming failed", chunks[0])
	}
}

func TestChunker_UmlautsCountAsSingleRunes(t *testing.T) {
	c := NewChunker()

	// 150 runes but more than 150 bytes; must stay a single chunk.
	text := strings.Repeat("Qualität gut. ", 10) + "Überzeugend"
	if utf8.RuneCountInString(text) > 200 {
		t.Fatalf("test text too long: %d runes", utf8.RuneCountInString(text))
	}

	chunks := c.Chunk(text)
	if len(chunks) != 1 {
		t.Errorf("Chunk() returned %d chunks, want 1", len(chunks))
	}
}

func TestChunker_LongTextRespectsSizeBound(t *testing.T) {
	c := NewChunker()

	var sb strings.Builder
	for i := 0; i < 40; i++ {
		sb.WriteString("Der Service in der Werkstatt war langsam und niemand hat uns informiert. ")
	}
	text := strings.TrimSpace(sb.String())
	textLen := utf8.RuneCountInString(text)
	p := ParamsFor(textLen)

	chunks := c.Chunk(text)
	if len(chunks) < 2 {
		t.Fatalf("Chunk() returned %d chunks for %d runes, want several", len(chunks), textLen)
	}

	for i, chunk := range chunks {
		if n := utf8.RuneCountInString(chunk); n > p.Size {
			t.Errorf("chunk %d has %d runes, exceeds target %d", i, n, p.Size)
		}
		if strings.TrimSpace(chunk) == "" {
			t.Errorf("chunk %d is empty", i)
		}
	}
}

func TestChunker_NeverSplitsMidWord(t *testing.T) {
	c := NewChunker()

	var sb strings.Builder
	for i := 0; i < 30; i++ {
		sb.WriteString("Die Terminvergabe dauerte mehrere Wochen und die Kommunikation war schlecht. ")
	}
	text := strings.TrimSpace(sb.String())

	words := make(map[string]bool)
	for _, w := range strings.Fields(text) {
		words[w] = true
	}

	chunks := c.Chunk(text)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}

	for i, chunk := range chunks {
		for _, w := range strings.Fields(chunk) {
			if !words[w] {
				t.Errorf("chunk %d contains fragment %q not present as a word in the source", i, w)
			}
		}
	}
}

func TestChunker_CoversAllSentences(t *testing.T) {
	c := NewChunker()

	sentences := []string{
		"Die Lieferung hat sich um mehrere Wochen verzögert.",
		"Der Berater im Autohaus war ausgesprochen freundlich und kompetent.",
		"Die Rechnung war deutlich höher als im Kostenvoranschlag angekündigt.",
		"Beim Abholtermin stand das Fahrzeug frisch gewaschen bereit.",
		"Die Werkstatt hat die Bremsen schnell und sauber repariert.",
		"Niemand hat auf meine Rückrufbitte reagiert.",
		"Der Leihwagen wurde mir kostenlos zur Verfügung gestellt.",
		"Die Probefahrt hat mich vollständig überzeugt.",
		"Das Leasingangebot war fair und transparent erklärt.",
		"Der Lack hatte bei der Übergabe mehrere Kratzer.",
		"Die Hotline war ständig besetzt und der Rückruf kam nie.",
		"Der Kostenvoranschlag für den Zahnriemenwechsel war nachvollziehbar.",
	}
	// Two passes over the list push the text past the single-chunk tiers.
	text := strings.Join(append(append([]string{}, sentences...), sentences...), " ")

	chunks := c.Chunk(text)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks for %d runes, got %d", utf8.RuneCountInString(text), len(chunks))
	}

	for _, sentence := range sentences {
		found := false
		for _, chunk := range chunks {
			if strings.Contains(chunk, sentence) {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("sentence %q not contained in any chunk", sentence)
		}
	}
}

func TestChunker_OverlapCarriesContext(t *testing.T) {
	c := NewChunker()

	var sb strings.Builder
	for i := 0; i < 40; i++ {
		sb.WriteString("Der Motor klappert seit der letzten Inspektion deutlich hörbar. ")
	}
	chunks := c.Chunk(strings.TrimSpace(sb.String()))
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}

	// Consecutive chunks share trailing context from the previous chunk.
	for i := 1; i < len(chunks); i++ {
		prevWords := strings.Fields(chunks[i-1])
		if len(prevWords) == 0 {
			continue
		}
		tail := prevWords[len(prevWords)-1]
		if !strings.Contains(chunks[i], tail) {
			t.Errorf("chunk %d does not carry overlap from chunk %d (missing %q)", i, i-1, tail)
		}
	}
}

func TestChunker_CharacterFallbackForIndivisibleText(t *testing.T) {
	c := NewChunker()

	// A single 1300-rune token has no separators at all, so the chunker
	// must fall back to a character-level split: 1000-rune window with a
	// 200-rune carried tail.
	text := strings.Repeat("a", 1300)
	chunks := c.Chunk(text)

	if len(chunks) != 2 {
		t.Fatalf("Chunk() returned %d chunks, want 2", len(chunks))
	}
	if n := utf8.RuneCountInString(chunks[0]); n != 1000 {
		t.Errorf("first chunk has %d runes, want 1000", n)
	}
	if n := utf8.RuneCountInString(chunks[1]); n != 500 {
		t.Errorf("second chunk has %d runes, want 500", n)
	}
	if chunks[0][800:] != chunks[1][:200] {
		t.Error("second chunk does not start with the 200-rune overlap of the first")
	}
}

func TestChunker_CustomSeparators(t *testing.T) {
	c := NewChunker().WithSeparators([]string{"|", ""})

	var sb strings.Builder
	for i := 0; i < 100; i++ {
		sb.WriteString("Feld mit ausreichend Inhalt für einen Block|")
	}
	chunks := c.Chunk(sb.String())

	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for i, chunk := range chunks {
		if !strings.HasSuffix(chunk, "Block|") {
			t.Errorf("chunk %d does not end on a field boundary: %q", i, chunk)
		}
	}
}

// ============================================================================
// Benchmarks
// ============================================================================

func BenchmarkChunker_ShortText(b *testing.B) {
	c := NewChunker()
	text := "Die Lieferung kam drei Wochen zu spät und niemand hat sich gemeldet."

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		c.Chunk(text)
	}
}

func BenchmarkChunker_LongText(b *testing.B) {
	c := NewChunker()
	text := strings.Repeat("Der Service in der Werkstatt war langsam und niemand hat uns über den Stand informiert. ", 60)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		c.Chunk(text)
	}
}

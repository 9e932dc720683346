package feedback

import (
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/voicelab/echolot/pkg/models"
)

// sentimentLexicon maps lowercase German terms to valence weights. The
// compound score is the normalized sum of matched weights, so several
// weak negatives push a text as far down as one strong negative.
var sentimentLexicon = map[string]float64{
	// positive
	"gut":           1.5,
	"sehr gut":      2.5,
	"super":         2.5,
	"toll":          2.0,
	"hervorragend":  3.0,
	"ausgezeichnet": 3.0,
	"perfekt":       3.0,
	"freundlich":    1.8,
	"kompetent":     1.8,
	"hilfsbereit":   1.8,
	"schnell":       1.2,
	"zufrieden":     2.0,
	"empfehlen":     2.0,
	"empfehlung":    2.0,
	"zuverlässig":   1.8,
	"professionell": 1.8,
	"fair":          1.5,
	"transparent":   1.2,
	"pünktlich":     1.5,
	"sauber":        1.0,
	"begeistert":    2.8,
	"top":           2.2,
	"überzeugt":     1.8,
	"danke":         1.5,
	"gerne wieder":  2.5,
	"problemlos":    1.8,
	"reibungslos":   1.8,
	"kostenlos":     1.0,

	// negative
	"schlecht":       -1.8,
	"sehr schlecht":  -2.8,
	"furchtbar":      -2.8,
	"katastrophe":    -3.0,
	"katastrophal":   -3.0,
	"enttäuscht":     -2.2,
	"enttäuschend":   -2.2,
	"unfreundlich":   -2.0,
	"inkompetent":    -2.2,
	"unzufrieden":    -2.0,
	"ärgerlich":      -1.8,
	"ärgert":         -1.8,
	"beschwerde":     -1.5,
	"problem":        -1.2,
	"probleme":       -1.2,
	"defekt":         -1.8,
	"kaputt":         -1.8,
	"mangel":         -1.5,
	"mängel":         -1.5,
	"verspätet":      -1.5,
	"verspätung":     -1.5,
	"verzögerung":    -1.5,
	"zu spät":        -1.8,
	"zu teuer":       -1.8,
	"überteuert":     -2.0,
	"abzocke":        -2.8,
	"wucher":         -2.5,
	"nie wieder":     -2.8,
	"niemand":        -1.2,
	"keine antwort":  -1.8,
	"keine reaktion": -1.8,
	"ignoriert":      -2.0,
	"unverschämt":    -2.5,
	"frech":          -2.0,
	"lange gewartet": -1.5,
	"ewig gewartet":  -2.0,
	"unmöglich":      -2.0,
	"schade":         -1.2,
	"leider":         -0.8,
}

// negations flip the valence of the term that follows them.
var negations = []string{"nicht", "kein", "keine", "keinen", "nie", "niemals"}

// sentimentThreshold separates the neutral band from positive and
// negative labels on the compound scale.
const sentimentThreshold = 0.5

// ScoreSentiment computes a compound sentiment score in [-1, 1] for a
// German feedback text and the matching label. Empty or whitespace-only
// text gets the UNKNOWN label with score 0.
func ScoreSentiment(text string) (string, float64) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return models.SentimentUnknown, 0
	}

	tokens := strings.Fields(strings.ToLower(trimmed))
	for i, tok := range tokens {
		tokens[i] = strings.Trim(tok, ".,!?;:\"'()")
	}

	var sum float64
	// Multi-word phrases first; tokens they match are consumed so the
	// single-word pass does not count them again ("sehr gut" scores as
	// one phrase, not phrase plus "gut").
	consumed := make([]bool, len(tokens))
	for _, phrase := range sentimentPhrases() {
		parts := strings.Fields(phrase)
		for i := 0; i+len(parts) <= len(tokens); i++ {
			if !matchesAt(tokens, consumed, parts, i) {
				continue
			}
			weight := sentimentLexicon[phrase]
			if i > 0 && isNegation(tokens[i-1]) {
				weight = -weight * 0.8
			}
			sum += weight
			for j := range parts {
				consumed[i+j] = true
			}
		}
	}
	for i, word := range tokens {
		if consumed[i] {
			continue
		}
		weight, ok := sentimentLexicon[word]
		if !ok {
			continue
		}
		if i > 0 && isNegation(tokens[i-1]) {
			weight = -weight * 0.8
		}
		sum += weight
	}

	score := normalizeScore(sum)
	switch {
	case score >= sentimentThreshold:
		return models.SentimentPositive, score
	case score <= -sentimentThreshold:
		return models.SentimentNegative, score
	default:
		return models.SentimentNeutral, score
	}
}

// sentimentPhrases returns the multi-word lexicon entries in a stable
// order, so overlapping matches resolve the same way on every run.
func sentimentPhrases() []string {
	phrasesOnce.Do(func() {
		for term := range sentimentLexicon {
			if strings.Contains(term, " ") {
				phrases = append(phrases, term)
			}
		}
		sort.Strings(phrases)
	})
	return phrases
}

var (
	phrasesOnce sync.Once
	phrases     []string
)

// matchesAt reports whether the phrase parts line up with the tokens
// starting at i, none of which may already be consumed.
func matchesAt(tokens []string, consumed []bool, parts []string, i int) bool {
	for j, p := range parts {
		if consumed[i+j] || tokens[i+j] != p {
			return false
		}
	}
	return true
}

func isNegation(word string) bool {
	for _, n := range negations {
		if word == n {
			return true
		}
	}
	return false
}

// normalizeScore maps the unbounded weight sum onto [-1, 1] with the
// same alpha-damped curve VADER uses, so a single strong term saturates
// slower than a pile of weak ones.
func normalizeScore(sum float64) float64 {
	const alpha = 15.0
	norm := sum / math.Sqrt(sum*sum+alpha)
	if norm > 1 {
		return 1
	}
	if norm < -1 {
		return -1
	}
	return norm
}

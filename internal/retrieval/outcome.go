package retrieval

import "github.com/voicelab/echolot/pkg/models"

// Kind tags the four ways a retrieval can end.
type Kind string

const (
	// KindOk carries gated results.
	KindOk Kind = "ok"
	// KindNoResults means the index or filter matched nothing. Not an
	// error.
	KindNoResults Kind = "no_results"
	// KindRejected means matches existed but the best similarity fell
	// below the reject threshold; no results are exposed.
	KindRejected Kind = "rejected"
	// KindError covers validation failures and infrastructure errors.
	KindError Kind = "error"
)

// Error kinds carried on a KindError outcome.
const (
	ErrKindValidation = "validation"
	ErrKindEmbedding  = "embedding"
	ErrKindIndex      = "index"
)

// Outcome is the result of one retrieval call. Validation and
// confidence decisions never surface as Go errors: they are encoded
// here so the tool boundary can always render a string.
type Outcome struct {
	// Kind selects which of the remaining fields are meaningful.
	Kind Kind `json:"kind"`

	// Matches are the gated results, ordered by descending similarity.
	// Empty except for KindOk.
	Matches []*models.Match `json:"matches,omitempty"`

	// Unranked is true when the matches came from a metadata fetch
	// rather than similarity search. Similarities and tier are not
	// meaningful then.
	Unranked bool `json:"unranked,omitempty"`

	// Tier is the confidence grade for ranked KindOk outcomes.
	Tier Tier `json:"tier,omitempty"`

	// TopSimilarity and AvgSimilarity are the gate inputs. Set for
	// ranked KindOk and for KindRejected.
	TopSimilarity float64 `json:"top_similarity,omitempty"`
	AvgSimilarity float64 `json:"avg_similarity,omitempty"`

	// Warning carries a non-fatal note, e.g. that max_results was
	// clamped.
	Warning string `json:"warning,omitempty"`

	// ErrorKind and Message describe a KindError outcome.
	ErrorKind string `json:"error_kind,omitempty"`
	Message   string `json:"message,omitempty"`
}

func errorOutcome(kind, message string) *Outcome {
	return &Outcome{Kind: KindError, ErrorKind: kind, Message: message}
}

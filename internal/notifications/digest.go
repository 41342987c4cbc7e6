package notifications

import (
	"math"
	"sort"
	"time"

	"github.com/hkmcoding/landie-next-sub000/internal/impact"
	"github.com/hkmcoding/landie-next-sub000/internal/models"
)

const digestHighlights = 5

// Digest summarizes one scheduled measurement run
type Digest struct {
	GeneratedAt time.Time
	Pages       int
	Measured    int
	Failed      int
	Highlights  []Highlight // largest absolute improvements first
	Errors      []string    // pages whose batch could not be started
}

// Highlight is one measured implementation worth reporting
type Highlight struct {
	LandingPageID string
	Title         string
	Overall       float64
	Confidence    models.ConfidenceLevel
}

// NewDigest starts an empty digest
func NewDigest(at time.Time) *Digest {
	return &Digest{GeneratedAt: at}
}

// Add folds one page's batch result into the digest
func (d *Digest) Add(ref models.PageRef, result *impact.MeasureBatchResult) {
	d.Pages++
	d.Measured += result.Measured
	d.Failed += result.Failed

	for _, detail := range result.Details {
		if !detail.Success || detail.Improvement == nil {
			continue
		}
		title := detail.SuggestionTitle
		if title == "" {
			title = detail.SuggestionID
		}
		d.Highlights = append(d.Highlights, Highlight{
			LandingPageID: ref.LandingPageID,
			Title:         title,
			Overall:       detail.Improvement.Overall,
			Confidence:    detail.Confidence,
		})
	}

	sort.SliceStable(d.Highlights, func(i, j int) bool {
		return math.Abs(d.Highlights[i].Overall) > math.Abs(d.Highlights[j].Overall)
	})
	if len(d.Highlights) > digestHighlights {
		d.Highlights = d.Highlights[:digestHighlights]
	}
}

// Empty reports whether nothing was measured or attempted
func (d *Digest) Empty() bool {
	return d.Measured == 0 && d.Failed == 0 && len(d.Errors) == 0
}

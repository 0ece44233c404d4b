// Package rewrite produces a corrected artifact from an original and a
// set of selected correction candidates.
package rewrite

import (
	"context"

	"github.com/hyunwoo/slidecheck/internal/models"
	"github.com/hyunwoo/slidecheck/internal/pptx"
)

// Rewriter applies selected candidates to an artifact and returns the
// rewritten bytes with applied/failed accounting. Substitutions that
// can no longer be located are counted failed, never fatal.
type Rewriter interface {
	Rewrite(ctx context.Context, artifact []byte, selected []models.CorrectionCandidate) (out []byte, applied, failed int, err error)
}

// PptxRewriter substitutes run text inside slide XML at the recorded
// slide locations.
type PptxRewriter struct{}

// NewPptxRewriter creates the slide-XML rewriter.
func NewPptxRewriter() *PptxRewriter {
	return &PptxRewriter{}
}

// Rewrite applies each candidate on its recorded slide. applied+failed
// always equals len(selected).
func (rw *PptxRewriter) Rewrite(ctx context.Context, artifact []byte, selected []models.CorrectionCandidate) ([]byte, int, int, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, 0, err
	}

	subs := make([]pptx.Substitution, len(selected))
	for i, cand := range selected {
		subs[i] = pptx.Substitution{
			SlideNumber: cand.SlideNumber,
			Original:    cand.Original,
			Corrected:   cand.Corrected,
		}
	}

	out, found, err := pptx.ReplaceInSlides(artifact, subs)
	if err != nil {
		return nil, 0, 0, err
	}

	applied := 0
	for _, ok := range found {
		if ok {
			applied++
		}
	}
	return out, applied, len(selected) - applied, nil
}

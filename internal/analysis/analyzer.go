// Package analysis produces correction candidates for an uploaded
// presentation. Implementations sit behind the Analyzer interface so
// the check handler never cares which one is wired in.
package analysis

import (
	"context"

	"github.com/hyunwoo/slidecheck/internal/models"
)

// Analyzer computes correction candidates for a .pptx artifact.
type Analyzer interface {
	Analyze(ctx context.Context, artifact []byte) ([]models.CorrectionCandidate, error)
}

// Static returns a fixed list of sample candidates regardless of the
// artifact content. Useful for demos and for exercising the workflow
// without a dictionary.
type Static struct{}

// NewStatic creates the fixed sample analyzer.
func NewStatic() *Static {
	return &Static{}
}

// Analyze returns the sample candidate set.
func (s *Static) Analyze(ctx context.Context, artifact []byte) ([]models.CorrectionCandidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return []models.CorrectionCandidate{
		{SlideNumber: 2, Original: "됬습니다", Corrected: "됐습니다", Position: "Slide 2", Context: "프로젝트가 성공적으로 됬습니다", SelectedByDefault: true},
		{SlideNumber: 2, Original: "어떻개", Corrected: "어떻게", Position: "Slide 2", Context: "어떻개 진행할지 계획을 세워야 합니다", SelectedByDefault: true},
		{SlideNumber: 3, Original: "몇일", Corrected: "며칠", Position: "Slide 3", Context: "몇일 전부터 준비해왔습니다", SelectedByDefault: true},
		{SlideNumber: 3, Original: "그렇치", Corrected: "그렇지", Position: "Slide 3", Context: "그렇치 않나요?", SelectedByDefault: true},
		{SlideNumber: 4, Original: "할께요", Corrected: "할게요", Position: "Slide 4", Context: "다음에 더 잘 할께요", SelectedByDefault: true},
		{SlideNumber: 5, Original: "안되요", Corrected: "안 돼요", Position: "Slide 5", Context: "이렇게 하면 안되요", SelectedByDefault: true},
	}, nil
}

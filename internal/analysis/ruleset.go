package analysis

import (
	"context"
	"strings"

	"github.com/hyunwoo/slidecheck/internal/models"
	"github.com/hyunwoo/slidecheck/internal/pptx"
)

// rule is one known misspelling and its replacement.
type rule struct {
	bad  string
	good string
}

// defaultRules are common Korean misspellings. Rules apply in order;
// a fragment caught by an earlier rule is not reported again.
var defaultRules = []rule{
	{"됬", "됐"},
	{"어떻개", "어떻게"},
	{"안되요", "안 돼요"},
	{"하던지", "하든지"},
	{"웬지", "왠지"},
	{"왠일", "웬일"},
	{"갈께", "갈게"},
	{"할께", "할게"},
	{"있을께", "있을게"},
	{"되서", "돼서"},
	{"않하", "안 하"},
	{"그런대", "그런데"},
	{"하세여", "하세요"},
	{"하십시요", "하십시오"},
	{"해주세여", "해주세요"},
	{"몇일", "며칠"},
	{"몇 일", "며칠"},
	{"그렇치", "그렇지"},
	{"어떻던", "어떻든"},
}

// contextWindow caps the reported context length in runes.
const contextWindow = 100

// Ruleset scans extracted slide text against a misspelling table and
// emits one candidate per matched fragment, ordered by slide then
// discovery. Deterministic for a given artifact.
type Ruleset struct {
	rules []rule
}

// NewRuleset creates a rule-based analyzer with the default table.
func NewRuleset() *Ruleset {
	return &Ruleset{rules: defaultRules}
}

// Analyze extracts slide texts and matches the rule table against each.
func (a *Ruleset) Analyze(ctx context.Context, artifact []byte) ([]models.CorrectionCandidate, error) {
	texts, err := pptx.ExtractTexts(artifact)
	if err != nil {
		return nil, err
	}

	var candidates []models.CorrectionCandidate
	for _, st := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for _, rl := range a.rules {
			if !strings.Contains(st.Text, rl.bad) {
				continue
			}
			candidates = append(candidates, models.CorrectionCandidate{
				SlideNumber:       st.SlideNumber,
				Original:          rl.bad,
				Corrected:         rl.good,
				Position:          st.Position,
				Context:           clipContext(st.Text, rl.bad),
				SelectedByDefault: true,
			})
		}
	}

	return candidates, nil
}

// clipContext returns a window of text around the first occurrence of
// fragment, at most contextWindow runes long.
func clipContext(text, fragment string) string {
	idx := strings.Index(text, fragment)
	if idx < 0 {
		idx = 0
	}

	runes := []rune(text)
	if len(runes) <= contextWindow {
		return text
	}

	// Center the window on the fragment where possible.
	center := len([]rune(text[:idx]))
	start := center - contextWindow/2
	if start < 0 {
		start = 0
	}
	end := start + contextWindow
	if end > len(runes) {
		end = len(runes)
		start = end - contextWindow
	}
	return string(runes[start:end])
}

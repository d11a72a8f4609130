// Package scoring turns response text into a deterministic heuristic
// quality score with derived pros and cons. Pure functions, no I/O.
package scoring

import (
	"math"
	"regexp"
	"strings"

	"github.com/promptarena/arena/internal/domain"
)

// Context carries the tool-type hints that shift scoring expectations.
// Specialized contexts demand longer answers and reward domain keywords.
type Context struct {
	Specialized bool
}

// ContextFor maps the request's toolContext string onto scoring behavior.
func ContextFor(tool string) Context {
	switch strings.ToLower(strings.TrimSpace(tool)) {
	case "professional", "specialized", "property-analysis", "investment-analysis", "financial-analysis":
		return Context{Specialized: true}
	default:
		return Context{}
	}
}

// Weights is the canonical scheme. The historical handlers disagreed on
// base score, actionable weight, and detail threshold; this is the single
// scheme the service uses everywhere (see DESIGN.md).
type Weights struct {
	Base            float64 `yaml:"base"`
	BaseSpecialized float64 `yaml:"base_specialized"`
	Detailed        float64 `yaml:"detailed"`
	Structure       float64 `yaml:"structure"`
	Coherent        float64 `yaml:"coherent"`
	Examples        float64 `yaml:"examples"`
	Actionable      float64 `yaml:"actionable"`
	LongForm        float64 `yaml:"long_form"`
	MultiParagraph  float64 `yaml:"multi_paragraph"`
	DomainBonus     float64 `yaml:"domain_bonus"`

	DetailThreshold            int `yaml:"detail_threshold"`
	DetailThresholdSpecialized int `yaml:"detail_threshold_specialized"`
}

func DefaultWeights() Weights {
	return Weights{
		Base:                       5,
		BaseSpecialized:            6,
		Detailed:                   1.5,
		Structure:                  1,
		Coherent:                   1,
		Examples:                   0.5,
		Actionable:                 1,
		LongForm:                   0.5,
		MultiParagraph:             0.5,
		DomainBonus:                0.5,
		DetailThreshold:            75,
		DetailThresholdSpecialized: 150,
	}
}

var (
	sentenceSplit  = regexp.MustCompile(`[.!?]+`)
	paragraphSplit = regexp.MustCompile(`\n[ \t]*\n`)
	numberedList   = regexp.MustCompile(`(?m)^[ \t]*\d+[.)]`)
	bulletList     = regexp.MustCompile(`(?m)^[ \t]*[-*•]\s`)
)

var financialKeywords = []string{
	"cash flow", "roi", "return on investment", "cap rate", "net operating income",
}

var marketKeywords = []string{
	"market", "risk", "vacancy", "appreciation",
}

type Scorer struct {
	weights Weights
}

func New(weights Weights) *Scorer {
	return &Scorer{weights: weights}
}

func NewDefault() *Scorer {
	return New(DefaultWeights())
}

// Score evaluates one response text. Same text and context always yield
// the same result. Empty input scores 0 instead of tripping over the
// one-token split of the empty string.
func (s *Scorer) Score(text string, tc Context) domain.ScoreResult {
	if strings.TrimSpace(text) == "" {
		return domain.ScoreResult{
			Score: 0,
			Pros:  []string{},
			Cons:  []string{"Empty response"},
		}
	}

	w := s.weights
	lower := strings.ToLower(text)

	wordCount := len(strings.Fields(text))
	sentences := countNonEmpty(sentenceSplit.Split(text, -1))
	paragraphs := countNonEmpty(paragraphSplit.Split(text, -1))

	threshold := w.DetailThreshold
	base := w.Base
	if tc.Specialized {
		threshold = w.DetailThresholdSpecialized
		base = w.BaseSpecialized
	}

	hasStructure := strings.Contains(text, "\n") || bulletList.MatchString(text) || numberedList.MatchString(text)
	isDetailed := wordCount > threshold
	isCoherent := sentences > 1 && float64(wordCount)/float64(sentences) < 40
	hasExamples := strings.Contains(lower, "example") || strings.Contains(lower, "for instance")
	isActionable := strings.Contains(lower, "recommend") || strings.Contains(lower, "suggest") || strings.Contains(lower, "should")

	score := base
	if isDetailed {
		score += w.Detailed
	}
	if hasStructure {
		score += w.Structure
	}
	if isCoherent {
		score += w.Coherent
	}
	if hasExamples {
		score += w.Examples
	}
	if isActionable {
		score += w.Actionable
	}
	if len(text) > 300 {
		score += w.LongForm
	}
	if paragraphs > 1 {
		score += w.MultiParagraph
	}
	if tc.Specialized {
		if containsAny(lower, financialKeywords) {
			score += w.DomainBonus
		}
		if containsAny(lower, marketKeywords) {
			score += w.DomainBonus
		}
	}

	score = math.Round(score*10) / 10
	if score > 10 {
		score = 10
	}

	var pros []string
	if isDetailed {
		pros = append(pros, "Detailed and thorough")
	}
	if hasStructure {
		pros = append(pros, "Well formatted with clear structure")
	}
	if isCoherent {
		pros = append(pros, "Clear and coherent")
	}
	if hasExamples {
		pros = append(pros, "Includes concrete examples")
	}
	if isActionable {
		pros = append(pros, "Gives actionable recommendations")
	}
	if len(pros) > 3 {
		pros = pros[:3]
	}

	var cons []string
	if !isDetailed {
		cons = append(cons, "Brief; could use more depth")
	}
	if !hasStructure {
		cons = append(cons, "Little formatting or structure")
	}
	if !hasExamples {
		cons = append(cons, "No concrete examples")
	}
	if !isActionable {
		cons = append(cons, "No clear recommendation")
	}
	if len(cons) > 2 {
		cons = cons[:2]
	}

	return domain.ScoreResult{
		Score:      score,
		WordCount:  wordCount,
		Sentences:  sentences,
		Paragraphs: paragraphs,
		Chars:      len(text),
		Pros:       pros,
		Cons:       cons,
	}
}

// Unavailable is the fixed result attached to failed outcomes.
func Unavailable() domain.ScoreResult {
	return domain.ScoreResult{
		Score: 0,
		Pros:  []string{},
		Cons:  []string{"Response unavailable"},
	}
}

func countNonEmpty(segments []string) int {
	n := 0
	for _, s := range segments {
		if strings.TrimSpace(s) != "" {
			n++
		}
	}
	return n
}

func containsAny(text string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(text, k) {
			return true
		}
	}
	return false
}

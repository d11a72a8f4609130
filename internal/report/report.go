// Package report ranks scored provider results and renders the markdown
// comparison report that gets emailed to the requester.
package report

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/promptarena/arena/internal/domain"
)

const (
	promptExcerptLen = 80
	previewLen       = 1200
)

type Builder struct {
	now func() time.Time
}

func NewBuilder() *Builder {
	return &Builder{now: time.Now}
}

// Build ranks results descending by score with a stable tie-break on the
// original selection order, then renders the report. When every provider
// failed it short-circuits to a total-failure report that states the
// refund and carries no per-provider sections.
func (b *Builder) Build(req domain.ComparisonRequest, results []domain.ProviderResult, credits *domain.CreditInfo) domain.ComparisonReport {
	ranked := make([]domain.ProviderResult, len(results))
	copy(ranked, results)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score.Score > ranked[j].Score.Score
	})

	winner := ""
	for _, r := range ranked {
		if r.Outcome.OK {
			winner = r.Outcome.Provider
			break
		}
	}

	if winner == "" {
		return domain.ComparisonReport{
			AllFailed: true,
			Body:      b.renderTotalFailure(req, credits),
		}
	}

	return domain.ComparisonReport{
		Winner: winner,
		Body:   b.render(req, ranked, winner, credits),
	}
}

func (b *Builder) renderTotalFailure(req domain.ComparisonRequest, credits *domain.CreditInfo) string {
	var sb strings.Builder

	sb.WriteString("# Model Comparison Report\n\n")
	sb.WriteString(fmt.Sprintf("**Order:** %s\n", req.OrderID))
	sb.WriteString(fmt.Sprintf("**Date:** %s\n\n", b.now().UTC().Format("January 2, 2006")))
	sb.WriteString("All selected providers failed to respond. No comparison could be produced.\n\n")

	if credits != nil {
		sb.WriteString(fmt.Sprintf("%d of %d credits have been refunded to your account.\n", credits.Refunded, credits.Used))
	} else {
		sb.WriteString("Any credits used for this request have been refunded.\n")
	}

	return sb.String()
}

func (b *Builder) render(req domain.ComparisonRequest, ranked []domain.ProviderResult, winner string, credits *domain.CreditInfo) string {
	var sb strings.Builder

	sb.WriteString("# Model Comparison Report\n\n")
	sb.WriteString(fmt.Sprintf("**Prompt:** %s\n", excerpt(req.Prompt)))
	sb.WriteString(fmt.Sprintf("**Order:** %s\n", req.OrderID))
	sb.WriteString(fmt.Sprintf("**Date:** %s\n", b.now().UTC().Format("January 2, 2006")))
	sb.WriteString(fmt.Sprintf("**Providers:** %s\n", strings.Join(req.SelectedProviders, ", ")))
	if req.PropertyAddress != "" {
		sb.WriteString(fmt.Sprintf("**Property:** %s\n", req.PropertyAddress))
	}
	if credits != nil {
		sb.WriteString(fmt.Sprintf("**Credits:** %d used, %d refunded\n", credits.Used, credits.Refunded))
	}
	sb.WriteString("\n")

	var winnerScore float64
	for _, r := range ranked {
		if r.Outcome.Provider == winner {
			winnerScore = r.Score.Score
			break
		}
	}
	sb.WriteString("## Summary\n\n")
	sb.WriteString(fmt.Sprintf("**%s** produced the strongest response with a score of %.1f/10.\n\n", winner, winnerScore))

	for i, r := range ranked {
		sb.WriteString(fmt.Sprintf("## %d. %s", i+1, r.Outcome.Provider))
		if r.Outcome.Provider == winner {
			sb.WriteString(" (winner)")
		}
		sb.WriteString("\n\n")

		if !r.Outcome.OK {
			sb.WriteString(fmt.Sprintf("Failed: %s\n\n", r.Outcome.Err))
			continue
		}

		sb.WriteString(fmt.Sprintf("**Score:** %.1f/10\n", r.Score.Score))
		sb.WriteString(fmt.Sprintf("**Metrics:** %d words, %d sentences, %d paragraphs, %d characters\n\n",
			r.Score.WordCount, r.Score.Sentences, r.Score.Paragraphs, r.Score.Chars))

		if len(r.Score.Pros) > 0 {
			sb.WriteString("**Strengths:**\n")
			for _, p := range r.Score.Pros {
				sb.WriteString("- " + p + "\n")
			}
			sb.WriteString("\n")
		}
		if len(r.Score.Cons) > 0 {
			sb.WriteString("**Weaknesses:**\n")
			for _, c := range r.Score.Cons {
				sb.WriteString("- " + c + "\n")
			}
			sb.WriteString("\n")
		}

		sb.WriteString("**Response:**\n\n")
		sb.WriteString(preview(r.Outcome.Text))
		sb.WriteString("\n\n")
	}

	sb.WriteString("## Recommendation\n\n")
	sb.WriteString(fmt.Sprintf("Based on this comparison, **%s** is the recommended provider for this prompt.\n", winner))

	return sb.String()
}

func excerpt(prompt string) string {
	prompt = strings.TrimSpace(prompt)
	if len(prompt) <= promptExcerptLen {
		return prompt
	}
	return prompt[:promptExcerptLen] + "..."
}

func preview(text string) string {
	if len(text) <= previewLen {
		return text
	}
	return text[:previewLen] + "\n\n*(truncated)*"
}

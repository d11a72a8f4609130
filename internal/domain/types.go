package domain

import "time"

// ComparisonRequest is the inbound payload for one comparison run.
// Prompt is immutable for the duration of the run and shared across all
// selected providers.
type ComparisonRequest struct {
	Prompt            string   `json:"prompt"`
	SelectedProviders []string `json:"selectedProviders"`
	OrderID           string   `json:"orderId"`
	Email             string   `json:"email"`
	CreditsUsed       int      `json:"creditsUsed,omitempty"`
	ToolContext       string   `json:"toolContext,omitempty"`
	PropertyAddress   string   `json:"propertyAddress,omitempty"`
}

// Outcome is the result of invoking one provider for one prompt.
// Exactly one Outcome exists per requested provider per run.
type Outcome struct {
	Provider  string    `json:"provider"`
	Text      string    `json:"text,omitempty"`
	OK        bool      `json:"ok"`
	Err       string    `json:"error,omitempty"`
	LatencyMs int64     `json:"latency_ms"`
	Timestamp time.Time `json:"timestamp"`
}

// ScoreResult is the heuristic quality assessment of one response text.
// Failed outcomes get a fixed score of 0, no pros, and a single
// "unavailable" con.
type ScoreResult struct {
	Score      float64  `json:"score"`
	WordCount  int      `json:"word_count"`
	Sentences  int      `json:"sentences"`
	Paragraphs int      `json:"paragraphs"`
	Chars      int      `json:"chars"`
	Pros       []string `json:"pros"`
	Cons       []string `json:"cons"`
}

// ProviderResult pairs an Outcome with its ScoreResult for the response
// body and the report builder.
type ProviderResult struct {
	Outcome Outcome     `json:"outcome"`
	Score   ScoreResult `json:"score"`
}

// CreditInfo holds the credit accounting for one run. Refunded is the
// number of failed outcomes, clamped so Net never goes negative.
type CreditInfo struct {
	Used     int `json:"used"`
	Refunded int `json:"refunded"`
	Net      int `json:"net"`
}

// ComparisonReport is the rendered, ranked summary of one run. Body is
// handed to the email collaborator as an opaque markdown blob.
type ComparisonReport struct {
	Winner    string `json:"winner,omitempty"`
	AllFailed bool   `json:"all_failed"`
	Body      string `json:"body"`
}

// RunResult aggregates everything the handler returns for one run.
type RunResult struct {
	RunID      string           `json:"runId"`
	OrderID    string           `json:"orderId"`
	Results    []ProviderResult `json:"results"`
	Report     ComparisonReport `json:"report"`
	EmailSent  bool             `json:"emailSent"`
	CreditInfo *CreditInfo      `json:"creditInfo,omitempty"`
}

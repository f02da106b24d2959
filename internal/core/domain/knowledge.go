package domain

import "time"

type SearchResult struct {
	ChunkID  string         `json:"chunk_id"`
	Score    float64        `json:"score"`
	Text     string         `json:"text"`
	Metadata map[string]any `json:"metadata"`
}

type ContextItem struct {
	Label    string         `json:"label"`
	Snippet  string         `json:"snippet"`
	Score    float64        `json:"score"`
	Metadata map[string]any `json:"metadata"`
}

type ChatResponse struct {
	Question string        `json:"question"`
	Answer   string        `json:"answer"`
	Context  []ContextItem `json:"context"`
}

// ChatMessage is one turn sent to an optional chat responder.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type RebuildResult struct {
	Success bool   `json:"success"`
	Stdout  string `json:"stdout"`
	Stderr  string `json:"stderr"`
	Cleared bool   `json:"cleared"`
}

type RebuildStatus string

const (
	RebuildCompleted RebuildStatus = "completed"
	RebuildQueued    RebuildStatus = "queued"
	RebuildCleared   RebuildStatus = "cleared"
	RebuildThrottled RebuildStatus = "throttled"
)

type RebuildRequestResult struct {
	Domain     string         `json:"domain"`
	Status     RebuildStatus  `json:"status"`
	Success    bool           `json:"success"`
	Result     *RebuildResult `json:"result,omitempty"`
	RetryAfter time.Duration  `json:"-"`
}

// ProcessResult is what an external process reports back.
type ProcessResult struct {
	Success bool
	Stdout  string
	Stderr  string
}

// ChatTemplate holds the localized strings used to compose an answer.
type ChatTemplate struct {
	Intro         string `yaml:"intro"`
	NoResults     string `yaml:"no_results"`
	Question      string `yaml:"question"`
	Section       string `yaml:"section"`
	SystemPrompt  string `yaml:"system_prompt"`
	ContextHeader string `yaml:"context_header"`
}

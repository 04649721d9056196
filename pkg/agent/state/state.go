// Package state defines the conversation state threaded through the
// orchestration graph, and the partial-update merge rules applied after
// each node call.
package state

// TopicDomain classifies the athlete's question into a governance area.
type TopicDomain string

const (
	DomainTeamSelection     TopicDomain = "team_selection"
	DomainEligibility       TopicDomain = "eligibility"
	DomainGovernance        TopicDomain = "governance"
	DomainDisputeResolution TopicDomain = "dispute_resolution"
	DomainSafeSport         TopicDomain = "safesport"
	DomainAntiDoping        TopicDomain = "anti_doping"
	DomainAthleteRights     TopicDomain = "athlete_rights"
)

// QueryIntent describes what kind of answer the athlete is after.
type QueryIntent string

const (
	IntentFactual    QueryIntent = "factual"
	IntentProcedural QueryIntent = "procedural"
	IntentDeadline   QueryIntent = "deadline"
	IntentEscalation QueryIntent = "escalation"
	IntentGeneral    QueryIntent = "general"
)

// EmotionalState is the classifier's read of the athlete's distress level.
type EmotionalState string

const (
	EmotionNeutral    EmotionalState = "neutral"
	EmotionDistressed EmotionalState = "distressed"
	EmotionPanicked   EmotionalState = "panicked"
	EmotionFearful    EmotionalState = "fearful"
)

// RetrievalStatus distinguishes "no documents found" from "retrieval
// subsystem failed".
type RetrievalStatus string

const (
	RetrievalSuccess RetrievalStatus = "success"
	RetrievalError   RetrievalStatus = "error"
)

// Message is one turn in the conversation.
type Message struct {
	Role    string `json:"role"` // "user" or "assistant"
	Content string `json:"content"`
}

// Document is one retrieved chunk with its similarity score.
type Document struct {
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata"`
	Score    float64        `json:"score"`
}

// Citation points the athlete at the governing document behind an answer.
type Citation struct {
	Title          string `json:"title"`
	URL            string `json:"url,omitempty"`
	DocumentType   string `json:"documentType"`
	Section        string `json:"section,omitempty"`
	EffectiveDate  string `json:"effectiveDate,omitempty"`
	Snippet        string `json:"snippet"`
	AuthorityLevel string `json:"authorityLevel,omitempty"`
}

// EscalationInfo identifies the human or organization a safety-critical
// query is routed to.
type EscalationInfo struct {
	Target  string `json:"target"`
	Urgency string `json:"urgency"` // "immediate" or "standard"
	Contact string `json:"contact"`
	Reason  string `json:"reason,omitempty"`
}

// QualityResult is the quality checker's verdict on a synthesized answer.
type QualityResult struct {
	Passed   bool     `json:"passed"`
	Score    float64  `json:"score"`
	Issues   []string `json:"issues,omitempty"`
	Critique string   `json:"critique,omitempty"`
}

// SupportContext is the emotional-support material injected into synthesis.
type SupportContext struct {
	Acknowledgment string   `json:"acknowledgment"`
	Resources      []string `json:"resources,omitempty"`
	ToneModifiers  []string `json:"toneModifiers,omitempty"`
}

// AgentState is the record threaded through the graph, created fresh at the
// start of each turn and discarded after the terminal node. Nodes never
// mutate it directly; they return an Update that the node wrapper merges in.
type AgentState struct {
	// Conversation inputs
	Messages            []Message `json:"messages"`
	ConversationID      string    `json:"conversationId,omitempty"`
	ConversationSummary string    `json:"conversationSummary,omitempty"`

	// Classification
	TopicDomain        TopicDomain    `json:"topicDomain,omitempty"`
	QueryIntent        QueryIntent    `json:"queryIntent,omitempty"`
	DetectedNGBIDs     []string       `json:"detectedNgbIds,omitempty"`
	NeedsClarification bool           `json:"needsClarification"`
	ClarifyingQuestion string         `json:"clarifyingQuestion,omitempty"`
	HasTimeConstraint  bool           `json:"hasTimeConstraint"`
	EmotionalState     EmotionalState `json:"emotionalState,omitempty"`

	// Retrieval
	RetrievedDocuments  []Document      `json:"retrievedDocuments,omitempty"`
	RetrievalConfidence float64         `json:"retrievalConfidence"`
	RetrievalStatus     RetrievalStatus `json:"retrievalStatus,omitempty"`
	WebSearchResults    []string        `json:"webSearchResults,omitempty"`
	SubQueries          []string        `json:"subQueries,omitempty"`
	ExpansionAttempted  bool            `json:"expansionAttempted"`

	// Synthesis
	SupportContext    *SupportContext `json:"supportContext,omitempty"`
	Answer            string          `json:"answer,omitempty"`
	Disclaimer        string          `json:"disclaimer,omitempty"`
	Citations         []Citation      `json:"citations,omitempty"`
	Escalation        *EscalationInfo `json:"escalation,omitempty"`
	QualityCheck      *QualityResult  `json:"qualityCheck,omitempty"`
	QualityRetryCount int             `json:"qualityRetryCount"`
}

// LastUserMessage returns the content of the most recent user message,
// or "" when there is none.
func (s AgentState) LastUserMessage() string {
	for i := len(s.Messages) - 1; i >= 0; i-- {
		if s.Messages[i].Role == "user" {
			return s.Messages[i].Content
		}
	}
	return ""
}

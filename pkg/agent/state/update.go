package state

import "github.com/athletedesk/athletedesk/pkg/graph"

// Update is a partial state change returned by a node. Nil pointer fields
// leave the corresponding state field untouched; Messages are appended
// rather than replaced.
type Update struct {
	Messages []Message

	TopicDomain        *TopicDomain
	QueryIntent        *QueryIntent
	DetectedNGBIDs     *[]string
	NeedsClarification *bool
	ClarifyingQuestion *string
	HasTimeConstraint  *bool
	EmotionalState     *EmotionalState

	RetrievedDocuments  *[]Document
	RetrievalConfidence *float64
	RetrievalStatus     *RetrievalStatus
	WebSearchResults    *[]string
	SubQueries          *[]string
	ExpansionAttempted  *bool

	SupportContext    *SupportContext
	Answer            *string
	Disclaimer        *string
	Citations         *[]Citation
	Escalation        *EscalationInfo
	QualityCheck      *QualityResult
	QualityRetryCount *int
}

// Apply merges the update into a copy of the state. Every set field
// replaces the previous value wholesale; only Messages accumulate.
func (u Update) Apply(s AgentState) AgentState {
	s.Messages = append(s.Messages, u.Messages...)

	if u.TopicDomain != nil {
		s.TopicDomain = *u.TopicDomain
	}
	if u.QueryIntent != nil {
		s.QueryIntent = *u.QueryIntent
	}
	if u.DetectedNGBIDs != nil {
		s.DetectedNGBIDs = *u.DetectedNGBIDs
	}
	if u.NeedsClarification != nil {
		s.NeedsClarification = *u.NeedsClarification
	}
	if u.ClarifyingQuestion != nil {
		s.ClarifyingQuestion = *u.ClarifyingQuestion
	}
	if u.HasTimeConstraint != nil {
		s.HasTimeConstraint = *u.HasTimeConstraint
	}
	if u.EmotionalState != nil {
		s.EmotionalState = *u.EmotionalState
	}
	if u.RetrievedDocuments != nil {
		s.RetrievedDocuments = *u.RetrievedDocuments
	}
	if u.RetrievalConfidence != nil {
		s.RetrievalConfidence = *u.RetrievalConfidence
	}
	if u.RetrievalStatus != nil {
		s.RetrievalStatus = *u.RetrievalStatus
	}
	if u.WebSearchResults != nil {
		s.WebSearchResults = *u.WebSearchResults
	}
	if u.SubQueries != nil {
		s.SubQueries = *u.SubQueries
	}
	if u.ExpansionAttempted != nil {
		s.ExpansionAttempted = *u.ExpansionAttempted
	}
	if u.SupportContext != nil {
		s.SupportContext = u.SupportContext
	}
	if u.Answer != nil {
		s.Answer = *u.Answer
	}
	if u.Disclaimer != nil {
		s.Disclaimer = *u.Disclaimer
	}
	if u.Citations != nil {
		s.Citations = *u.Citations
	}
	if u.Escalation != nil {
		s.Escalation = u.Escalation
	}
	if u.QualityCheck != nil {
		s.QualityCheck = u.QualityCheck
	}
	if u.QualityRetryCount != nil {
		s.QualityRetryCount = *u.QualityRetryCount
	}
	return s
}

// Handler is the node signature used throughout the agent: nodes read the
// state and return a partial update instead of a full replacement.
type Handler func(ctx graph.Context, s AgentState) (Update, error)

// Node adapts a Handler into the graph's full-state node function.
func Node(h Handler) graph.NodeFunc[AgentState] {
	return func(ctx graph.Context, s AgentState) (AgentState, error) {
		u, err := h(ctx, s)
		if err != nil {
			return s, err
		}
		return u.Apply(s), nil
	}
}

// Ptr returns a pointer to v, for populating Update fields inline.
func Ptr[T any](v T) *T { return &v }

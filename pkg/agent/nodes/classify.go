package nodes

import (
	"context"
	"fmt"

	"github.com/athletedesk/athletedesk/pkg/agent/state"
	"github.com/athletedesk/athletedesk/pkg/graph"
	"github.com/athletedesk/athletedesk/pkg/resilience"
)

type classifyOutput struct {
	TopicDomain        string   `json:"topic_domain"`
	QueryIntent        string   `json:"query_intent"`
	DetectedNGBIDs     []string `json:"detected_ngb_ids"`
	NeedsClarification bool     `json:"needs_clarification"`
	ClarifyingQuestion string   `json:"clarifying_question"`
	HasTimeConstraint  bool     `json:"has_time_constraint"`
	EmotionalState     string   `json:"emotional_state"`
}

var validDomains = map[state.TopicDomain]bool{
	state.DomainTeamSelection:     true,
	state.DomainEligibility:       true,
	state.DomainGovernance:        true,
	state.DomainDisputeResolution: true,
	state.DomainSafeSport:         true,
	state.DomainAntiDoping:        true,
	state.DomainAthleteRights:     true,
}

var validIntents = map[state.QueryIntent]bool{
	state.IntentFactual:    true,
	state.IntentProcedural: true,
	state.IntentDeadline:   true,
	state.IntentEscalation: true,
	state.IntentGeneral:    true,
}

var validEmotions = map[state.EmotionalState]bool{
	state.EmotionNeutral:    true,
	state.EmotionDistressed: true,
	state.EmotionPanicked:   true,
	state.EmotionFearful:    true,
}

// Classify labels the latest question with domain, intent, NGB mentions,
// time pressure, and emotional state. The classifier is advisory: if the
// model call or parse fails, the turn proceeds with conservative defaults
// rather than surfacing an error to the athlete.
func (n *Nodes) Classify(ctx graph.Context, s state.AgentState) (state.Update, error) {
	prompt := fmt.Sprintf(classifyPrompt, s.ConversationSummary, s.LastUserMessage())

	var out classifyOutput
	raw, err := resilience.Do(ctx, n.fastBreaker, func(c context.Context) (string, error) {
		return n.fast.Generate(c, prompt)
	})
	if err == nil {
		err = decodeModelJSON(raw, &out)
	}
	if err != nil {
		ctx.Logger().Warn("classification failed, using defaults", "error", err)
		return classifyDefaults(), nil
	}

	upd := state.Update{
		DetectedNGBIDs:     state.Ptr(out.DetectedNGBIDs),
		NeedsClarification: state.Ptr(out.NeedsClarification),
		ClarifyingQuestion: state.Ptr(out.ClarifyingQuestion),
		HasTimeConstraint:  state.Ptr(out.HasTimeConstraint),
	}
	if d := state.TopicDomain(out.TopicDomain); validDomains[d] {
		upd.TopicDomain = state.Ptr(d)
	}
	if i := state.QueryIntent(out.QueryIntent); validIntents[i] {
		upd.QueryIntent = state.Ptr(i)
	} else {
		upd.QueryIntent = state.Ptr(state.IntentGeneral)
	}
	if e := state.EmotionalState(out.EmotionalState); validEmotions[e] {
		upd.EmotionalState = state.Ptr(e)
	} else {
		upd.EmotionalState = state.Ptr(state.EmotionNeutral)
	}
	return upd, nil
}

// classifyDefaults keeps the pipeline moving when classification is
// unavailable: general intent, no clarification detour, neutral tone.
func classifyDefaults() state.Update {
	return state.Update{
		QueryIntent:        state.Ptr(state.IntentGeneral),
		NeedsClarification: state.Ptr(false),
		HasTimeConstraint:  state.Ptr(false),
		EmotionalState:     state.Ptr(state.EmotionNeutral),
	}
}

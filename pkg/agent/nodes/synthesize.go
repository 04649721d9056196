package nodes

import (
	"context"
	"fmt"
	"strings"

	"github.com/athletedesk/athletedesk/pkg/agent/state"
	"github.com/athletedesk/athletedesk/pkg/graph"
	"github.com/athletedesk/athletedesk/pkg/resilience"
)

const emptyQuestionAnswer = "I did not receive a question. Could you rephrase what you would like to know about team selection, eligibility, SafeSport, anti-doping, or your rights as an athlete?"

const synthesisFallbackAnswer = "I'm sorry, I'm unable to generate an answer right now. " +
	"For time-sensitive matters, contact the Team USA Athlete Ombuds at ombudsman@usathlete.org " +
	"or (719) 866-5000, or reach your National Governing Body's athlete services office directly."

// Synthesize drafts the answer from retrieved documents, web findings,
// and any emotional-support context. An empty question is answered with
// a rephrase request without spending a model call. If the reasoning
// model is unavailable the node emits a fixed apology that points the
// athlete at a human, so the turn still completes.
func (n *Nodes) Synthesize(ctx graph.Context, s state.AgentState) (state.Update, error) {
	upd := state.Update{}
	if s.QualityCheck != nil && !s.QualityCheck.Passed {
		upd.QualityRetryCount = state.Ptr(s.QualityRetryCount + 1)
	}

	if strings.TrimSpace(s.LastUserMessage()) == "" {
		upd.Answer = state.Ptr(emptyQuestionAnswer)
		return upd, nil
	}

	prompt := buildSynthesisPrompt(s)
	answer, err := resilience.Do(ctx, n.reasoningBreaker, func(c context.Context) (string, error) {
		return n.reasoning.Generate(c, prompt)
	})
	if err != nil {
		ctx.Logger().Error("answer synthesis failed", "error", err)
		upd.Answer = state.Ptr(synthesisFallbackAnswer)
		return upd, nil
	}

	upd.Answer = state.Ptr(strings.TrimSpace(answer))
	upd.Messages = []state.Message{{Role: "assistant", Content: *upd.Answer}}
	return upd, nil
}

// CheckQuality asks the fast model to review the drafted answer against
// its sources. Review is best-effort: if the check itself fails, the
// answer ships unreviewed rather than blocking the turn.
func (n *Nodes) CheckQuality(ctx graph.Context, s state.AgentState) (state.Update, error) {
	prompt := fmt.Sprintf(qualityPrompt, s.LastUserMessage(), sourcesForReview(s), s.Answer)

	var out state.QualityResult
	raw, err := resilience.Do(ctx, n.fastBreaker, func(c context.Context) (string, error) {
		return n.fast.Generate(c, prompt)
	})
	if err == nil {
		err = decodeModelJSON(raw, &out)
	}
	if err != nil {
		ctx.Logger().Warn("quality check unavailable, shipping unreviewed answer", "error", err)
		return state.Update{QualityCheck: &state.QualityResult{Passed: true, Score: 0}}, nil
	}
	if !out.Passed {
		ctx.Logger().Info("answer failed quality review",
			"score", out.Score, "issues", len(out.Issues), "retry_count", s.QualityRetryCount)
	}
	return state.Update{QualityCheck: &out}, nil
}

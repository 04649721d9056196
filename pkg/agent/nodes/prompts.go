package nodes

import (
	"fmt"
	"strings"

	"github.com/athletedesk/athletedesk/pkg/agent/state"
)

const classifyPrompt = `You are routing questions for a US Olympic and Paralympic athlete help desk.
Classify the athlete's latest question.

Conversation summary (may be empty):
%s

Latest question:
%s

Respond with only a JSON object:
{
  "topic_domain": one of "team_selection", "eligibility", "governance", "dispute_resolution", "safesport", "anti_doping", "athlete_rights", or "" if unclear,
  "query_intent": one of "factual", "procedural", "deadline", "escalation", "general",
  "detected_ngb_ids": list of national governing body identifiers mentioned (e.g. "usa-swimming"), [] if none,
  "needs_clarification": true only if the question cannot be answered or routed without more detail,
  "clarifying_question": a single short question to ask the athlete, "" unless needs_clarification,
  "has_time_constraint": true if a deadline, hearing date, or imminent event is involved,
  "emotional_state": one of "neutral", "distressed", "panicked", "fearful"
}`

const planPrompt = `An athlete's question spans multiple governance areas. Break it into
independent sub-questions that can each be answered from one document set.

Question:
%s

Respond with only a JSON object: {"sub_queries": ["...", "..."]}
Use at most 3 sub-queries. If the question is really one question, return it alone.`

const expandPrompt = `A document search for an athlete governance question returned weak results.
Rewrite the query three different ways: once with formal regulatory vocabulary,
once with plain language, and once focused on the underlying procedure.

Original query:
%s

Respond with only a JSON object: {"queries": ["...", "...", "..."]}`

const qualityPrompt = `You are reviewing a drafted answer for an athlete governance help desk.
Judge whether the answer is grounded in the provided sources, addresses the
question, and avoids invented rules or deadlines.

Question:
%s

Sources:
%s

Drafted answer:
%s

Respond with only a JSON object:
{"passed": bool, "score": 0.0-1.0, "issues": ["..."], "critique": "one paragraph of specific fixes, \"\" if passed"}`

// buildSynthesisPrompt assembles the answer-drafting prompt from whatever
// context the pipeline gathered. Sections are omitted when empty.
func buildSynthesisPrompt(s state.AgentState) string {
	var b strings.Builder
	b.WriteString("You are an assistant for US Olympic and Paralympic athletes navigating\n")
	b.WriteString("governance: team selection, eligibility, SafeSport, anti-doping, dispute\n")
	b.WriteString("resolution, and athlete rights. Answer from the provided sources. If the\n")
	b.WriteString("sources do not cover the question, say so plainly and point the athlete\n")
	b.WriteString("to their NGB or the Athlete Ombuds. Never invent rules, deadlines, or\n")
	b.WriteString("section numbers.\n\n")

	if s.ConversationSummary != "" {
		fmt.Fprintf(&b, "Conversation so far:\n%s\n\n", s.ConversationSummary)
	}
	if len(s.RetrievedDocuments) > 0 {
		b.WriteString("Governance documents:\n")
		for i, d := range s.RetrievedDocuments {
			fmt.Fprintf(&b, "[%d] %s\n", i+1, d.Content)
		}
		b.WriteString("\n")
	}
	if len(s.WebSearchResults) > 0 {
		b.WriteString("Web search findings (secondary, cite cautiously):\n")
		for _, r := range s.WebSearchResults {
			fmt.Fprintf(&b, "- %s\n", r)
		}
		b.WriteString("\n")
	}
	if sc := s.SupportContext; sc != nil {
		fmt.Fprintf(&b, "The athlete sounds %s. Open with: %q\n", s.EmotionalState, sc.Acknowledgment)
		if len(sc.ToneModifiers) > 0 {
			fmt.Fprintf(&b, "Tone: %s.\n", strings.Join(sc.ToneModifiers, ", "))
		}
		if len(sc.Resources) > 0 {
			fmt.Fprintf(&b, "Mention these support resources: %s.\n", strings.Join(sc.Resources, "; "))
		}
		b.WriteString("\n")
	}
	if qc := s.QualityCheck; qc != nil && !qc.Passed && qc.Critique != "" {
		fmt.Fprintf(&b, "A previous draft was rejected by review. Address this critique:\n%s\n\n", qc.Critique)
	}

	fmt.Fprintf(&b, "Athlete's question:\n%s\n", s.LastUserMessage())
	return b.String()
}

// sourcesForReview renders retrieved content for the quality checker.
func sourcesForReview(s state.AgentState) string {
	if len(s.RetrievedDocuments) == 0 && len(s.WebSearchResults) == 0 {
		return "(no sources were available)"
	}
	var b strings.Builder
	for i, d := range s.RetrievedDocuments {
		fmt.Fprintf(&b, "[%d] %s\n", i+1, d.Content)
	}
	for _, r := range s.WebSearchResults {
		fmt.Fprintf(&b, "[web] %s\n", r)
	}
	return b.String()
}

// Package agent assembles the athlete-desk conversation graph and runs
// it: classification, retrieval with web fallback, synthesis, quality
// review, and the escalation and clarification short-circuits.
package agent

import "github.com/athletedesk/athletedesk/pkg/agent/state"

// Node identifiers. Checkpoints key on these, so renames are breaking.
const (
	NodeClassifier       = "classifier"
	NodeQueryPlanner     = "query_planner"
	NodeRetriever        = "retriever"
	NodeExpander         = "retrieval_expander"
	NodeResearcher       = "web_researcher"
	NodeEmotionalSupport = "emotional_support"
	NodeSynthesizer      = "synthesizer"
	NodeQualityChecker   = "quality_checker"
	NodeCitationBuilder  = "citation_builder"
	NodeDisclaimerGuard  = "disclaimer_guard"
	NodeEscalate         = "escalate"
	NodeClarify          = "clarify"
)

// ConfidenceThreshold is the retrieval confidence at or above which the
// pipeline answers from documents alone. The boundary is inclusive.
const ConfidenceThreshold = 0.5

// urgentDomains are the areas where a time-constrained question goes to
// a human instead of through synthesis.
var urgentDomains = map[state.TopicDomain]bool{
	state.DomainSafeSport:  true,
	state.DomainAntiDoping: true,
}

// ShouldEscalate is the single escalation predicate: routing consults it
// and nothing else, so the decision cannot drift between call sites.
func ShouldEscalate(s state.AgentState) bool {
	if s.QueryIntent == state.IntentEscalation {
		return true
	}
	return urgentDomains[s.TopicDomain] && s.HasTimeConstraint
}

// routeByDomain dispatches a classified question: clarification and
// escalation short-circuits first, then the retrieval path, through the
// query planner when that feature is on.
func routeByDomain(s state.AgentState, plannerEnabled bool) string {
	switch {
	case s.NeedsClarification:
		return NodeClarify
	case ShouldEscalate(s):
		return NodeEscalate
	case plannerEnabled:
		return NodeQueryPlanner
	default:
		return NodeRetriever
	}
}

// routeAfterRetrieval decides whether retrieved documents suffice.
// synthTarget is the node synthesis begins at, which shifts when
// emotional support is enabled. Expansion runs at most once per turn.
func routeAfterRetrieval(s state.AgentState, expansionEnabled bool, synthTarget string) string {
	switch {
	case s.RetrievalConfidence >= ConfidenceThreshold:
		return synthTarget
	case len(s.WebSearchResults) > 0:
		return synthTarget
	case expansionEnabled && !s.ExpansionAttempted:
		return NodeExpander
	default:
		return NodeResearcher
	}
}

// routeByQuality bounds the rewrite loop. The check fails open: a
// missing or passed verdict ships the answer, and once the retry budget
// is spent the best available draft ships regardless.
func routeByQuality(s state.AgentState, maxRetries int) string {
	if s.QualityCheck == nil || s.QualityCheck.Passed {
		return NodeCitationBuilder
	}
	if s.QualityRetryCount < maxRetries {
		return NodeSynthesizer
	}
	return NodeCitationBuilder
}

package nodes

import (
	"github.com/athletedesk/athletedesk/pkg/agent/state"
	"github.com/athletedesk/athletedesk/pkg/graph"
)

type citationKey struct {
	sourceURL string
	section   string
	title     string
}

// BuildCitations turns retrieved document metadata into athlete-facing
// citations, deduplicated by source. Documents with missing metadata
// still produce a citation with placeholder fields rather than being
// dropped silently.
func (n *Nodes) BuildCitations(_ graph.Context, s state.AgentState) (state.Update, error) {
	seen := make(map[citationKey]bool, len(s.RetrievedDocuments))
	citations := make([]state.Citation, 0, len(s.RetrievedDocuments))

	for _, d := range s.RetrievedDocuments {
		c := state.Citation{
			Title:          metaString(d.Metadata, "documentTitle", "Unknown Document"),
			URL:            metaString(d.Metadata, "sourceUrl", ""),
			DocumentType:   metaString(d.Metadata, "documentType", "document"),
			Section:        metaString(d.Metadata, "sectionTitle", ""),
			EffectiveDate:  metaString(d.Metadata, "effectiveDate", ""),
			AuthorityLevel: metaString(d.Metadata, "authorityLevel", ""),
			Snippet:        truncateSnippet(d.Content, n.cfg.SnippetLength),
		}
		key := citationKey{sourceURL: c.URL, section: c.Section, title: c.Title}
		if seen[key] {
			continue
		}
		seen[key] = true
		citations = append(citations, c)
	}
	return state.Update{Citations: state.Ptr(citations)}, nil
}

func metaString(meta map[string]any, key, fallback string) string {
	if v, ok := meta[key].(string); ok && v != "" {
		return v
	}
	return fallback
}

func truncateSnippet(content string, limit int) string {
	if len(content) <= limit {
		return content
	}
	return content[:limit] + "..."
}

// Domain disclaimers. Kept in a dedicated response field so clients can
// render them distinctly; they are never folded into the answer text.
var domainDisclaimers = map[state.TopicDomain]string{
	state.DomainAntiDoping: "This is general information, not anti-doping advice. Verify medication and supplement questions directly with USADA before competing; rules and the Prohibited List change annually.",
	state.DomainSafeSport:  "If you or someone else is in immediate danger, call 911. Reports of abuse or misconduct should go to the U.S. Center for SafeSport; this assistant is not a substitute for an official report.",
	state.DomainDisputeResolution: "This is general information, not legal advice. Arbitration and grievance deadlines are strict; confirm dates with the Athlete Ombuds or an attorney.",
	state.DomainTeamSelection:     "Selection procedures vary by National Governing Body and by games cycle. Always confirm against your NGB's published selection procedures for the current cycle.",
	state.DomainEligibility:       "Eligibility rules differ across federations and can change between seasons. Confirm your status with your NGB before relying on this information.",
}

// GuardDisclaimer attaches the regulatory disclaimer for the resolved
// domain, when one applies.
func (n *Nodes) GuardDisclaimer(_ graph.Context, s state.AgentState) (state.Update, error) {
	d, ok := domainDisclaimers[s.TopicDomain]
	if !ok {
		return state.Update{}, nil
	}
	return state.Update{Disclaimer: state.Ptr(d)}, nil
}

type escalationRoute struct {
	target  string
	contact string
}

var escalationRoutes = map[state.TopicDomain]escalationRoute{
	state.DomainSafeSport:  {"U.S. Center for SafeSport", "833-587-7233 or uscenterforsafesport.org/report-a-concern"},
	state.DomainAntiDoping: {"USADA", "866-601-2632 or athleteconnect.usada.org"},
}

var defaultEscalationRoute = escalationRoute{
	target:  "Team USA Athlete Ombuds",
	contact: "ombudsman@usathlete.org or (719) 866-5000",
}

// Escalate short-circuits the answer pipeline for safety-critical or
// explicitly escalated queries, handing the athlete directly to the
// responsible human channel.
func (n *Nodes) Escalate(_ graph.Context, s state.AgentState) (state.Update, error) {
	route, ok := escalationRoutes[s.TopicDomain]
	if !ok {
		route = defaultEscalationRoute
	}
	urgency := "standard"
	if s.HasTimeConstraint || s.EmotionalState == state.EmotionPanicked {
		urgency = "immediate"
	}

	answer := "This needs a human in the loop rather than an automated answer. " +
		"Contact " + route.target + " at " + route.contact + "."
	if urgency == "immediate" {
		answer = "Given the time pressure here, reach out now: contact " + route.target +
			" at " + route.contact + ". " +
			"They handle urgent cases and can act on deadlines that this assistant cannot."
	}

	return state.Update{
		Answer: state.Ptr(answer),
		Escalation: &state.EscalationInfo{
			Target:  route.target,
			Urgency: urgency,
			Contact: route.contact,
			Reason:  escalationReason(s),
		},
		Messages: []state.Message{{Role: "assistant", Content: answer}},
	}, nil
}

func escalationReason(s state.AgentState) string {
	if s.QueryIntent == state.IntentEscalation {
		return "athlete asked for escalation"
	}
	return "time-sensitive " + string(s.TopicDomain) + " matter"
}

const defaultClarifyingQuestion = "Could you share a bit more detail? For example, which sport or National Governing Body this involves, and whether there's a deadline attached."

// Clarify ends the turn with a question back to the athlete instead of
// guessing at an answer the classifier could not pin down.
func (n *Nodes) Clarify(_ graph.Context, s state.AgentState) (state.Update, error) {
	q := s.ClarifyingQuestion
	if q == "" {
		q = defaultClarifyingQuestion
	}
	return state.Update{
		Answer:   state.Ptr(q),
		Messages: []state.Message{{Role: "assistant", Content: q}},
	}, nil
}

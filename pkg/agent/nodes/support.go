package nodes

import (
	"github.com/athletedesk/athletedesk/pkg/agent/state"
	"github.com/athletedesk/athletedesk/pkg/graph"
)

// Support templates are static: this node never calls a model, so a
// distressed athlete gets an acknowledgment even during a provider outage.

var supportAcknowledgments = map[state.EmotionalState]string{
	state.EmotionDistressed: "This sounds like a stressful situation, and it makes sense that you're concerned.",
	state.EmotionPanicked:   "Take a breath. There are concrete steps available to you, and deadlines usually have defined processes around them.",
	state.EmotionFearful:    "What you're describing is serious, and you deserve to feel safe raising it.",
}

var supportTones = map[state.EmotionalState][]string{
	state.EmotionDistressed: {"calm", "step-by-step"},
	state.EmotionPanicked:   {"calm", "lead with the most time-critical action", "short sentences"},
	state.EmotionFearful:    {"reassuring", "emphasize confidentiality and anti-retaliation protections"},
}

var supportResources = map[state.TopicDomain][]string{
	state.DomainSafeSport: {
		"U.S. Center for SafeSport 24/7 helpline: 833-587-7233",
		"Team USA Athlete Ombuds (confidential): ombudsman@usathlete.org",
	},
	state.DomainAntiDoping: {
		"USADA Athlete Connect: 866-601-2632",
		"Team USA Athlete Ombuds (confidential): ombudsman@usathlete.org",
	},
	state.DomainDisputeResolution: {
		"Team USA Athlete Ombuds (free, confidential legal guidance): ombudsman@usathlete.org",
	},
	state.DomainTeamSelection: {
		"Team USA Athlete Ombuds (selection disputes): ombudsman@usathlete.org",
	},
}

// Support injects tone guidance and support resources into the state for
// the synthesizer. Neutral turns pass through unchanged.
func (n *Nodes) Support(_ graph.Context, s state.AgentState) (state.Update, error) {
	ack, ok := supportAcknowledgments[s.EmotionalState]
	if !ok {
		return state.Update{}, nil
	}
	return state.Update{
		SupportContext: &state.SupportContext{
			Acknowledgment: ack,
			ToneModifiers:  supportTones[s.EmotionalState],
			Resources:      supportResources[s.TopicDomain],
		},
	}, nil
}

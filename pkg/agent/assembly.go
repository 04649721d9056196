package agent

import (
	"github.com/athletedesk/athletedesk/pkg/agent/nodes"
	"github.com/athletedesk/athletedesk/pkg/agent/state"
	"github.com/athletedesk/athletedesk/pkg/graph"
)

// Features are the optional graph branches. They are read once, at
// build time: a disabled feature's nodes and edges are absent from the
// compiled graph rather than skipped at runtime, and toggling a flag
// mid-conversation has no effect until the graph is rebuilt.
type Features struct {
	QueryPlanner       bool
	RetrievalExpansion bool
	EmotionalSupport   bool
	QualityCheck       bool

	// MaxQualityRetries bounds the synthesis rewrite loop. Zero means
	// the default of one retry.
	MaxQualityRetries int
}

// Build assembles and compiles the conversation graph over the given
// node set. The returned graph is immutable and safe for concurrent runs.
func Build(n *nodes.Nodes, feats Features) (*graph.CompiledGraph[state.AgentState], error) {
	maxRetries := feats.MaxQualityRetries
	if maxRetries <= 0 {
		maxRetries = 1
	}

	synthTarget := NodeSynthesizer
	if feats.EmotionalSupport {
		synthTarget = NodeEmotionalSupport
	}

	g := graph.New[state.AgentState]().
		AddNode(NodeClassifier, state.Node(n.Classify)).
		AddNode(NodeRetriever, state.Node(n.Retrieve)).
		AddNode(NodeResearcher, state.Node(n.Research)).
		AddNode(NodeSynthesizer, state.Node(n.Synthesize)).
		AddNode(NodeCitationBuilder, state.Node(n.BuildCitations)).
		AddNode(NodeDisclaimerGuard, state.Node(n.GuardDisclaimer)).
		AddNode(NodeEscalate, state.Node(n.Escalate)).
		AddNode(NodeClarify, state.Node(n.Clarify)).
		SetEntry(NodeClassifier)

	g.AddConditionalEdge(NodeClassifier, func(_ graph.Context, s state.AgentState) string {
		return routeByDomain(s, feats.QueryPlanner)
	})

	if feats.QueryPlanner {
		g.AddNode(NodeQueryPlanner, state.Node(n.Plan))
		g.AddEdge(NodeQueryPlanner, NodeRetriever)
	}

	afterRetrieval := func(_ graph.Context, s state.AgentState) string {
		return routeAfterRetrieval(s, feats.RetrievalExpansion, synthTarget)
	}
	g.AddConditionalEdge(NodeRetriever, afterRetrieval)

	if feats.RetrievalExpansion {
		g.AddNode(NodeExpander, state.Node(n.Expand))
		g.AddConditionalEdge(NodeExpander, afterRetrieval)
	}

	g.AddEdge(NodeResearcher, synthTarget)

	if feats.EmotionalSupport {
		g.AddNode(NodeEmotionalSupport, state.Node(n.Support))
		g.AddEdge(NodeEmotionalSupport, NodeSynthesizer)
	}

	if feats.QualityCheck {
		g.AddNode(NodeQualityChecker, state.Node(n.CheckQuality))
		g.AddEdge(NodeSynthesizer, NodeQualityChecker)
		g.AddConditionalEdge(NodeQualityChecker, func(_ graph.Context, s state.AgentState) string {
			return routeByQuality(s, maxRetries)
		})
	} else {
		g.AddEdge(NodeSynthesizer, NodeCitationBuilder)
	}

	g.AddEdge(NodeCitationBuilder, NodeDisclaimerGuard)
	g.AddEdge(NodeDisclaimerGuard, graph.END)
	g.AddEdge(NodeEscalate, graph.END)
	g.AddEdge(NodeClarify, graph.END)

	return g.Compile()
}

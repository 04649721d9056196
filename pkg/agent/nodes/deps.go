// Package nodes implements the individual steps of the athlete-desk
// conversation graph. Each node reads the shared state and returns a
// partial update; external dependencies are injected behind narrow
// interfaces so nodes stay testable without live services.
package nodes

import (
	"context"

	"github.com/athletedesk/athletedesk/pkg/agent/state"
	"github.com/athletedesk/athletedesk/pkg/resilience"
)

// TextGenerator produces a completion for a prompt. Implementations wrap
// a chat model; nodes never see provider-specific types.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Retriever searches the governance document store.
type Retriever interface {
	Search(ctx context.Context, query string, ngbIDs []string, domain state.TopicDomain, limit int) ([]state.Document, error)
}

// WebSearcher runs a public web search and returns result snippets.
type WebSearcher interface {
	Search(ctx context.Context, query string) ([]string, error)
}

// URLSink receives source URLs discovered during web research. Calls are
// fire-and-forget; failures never affect the conversation.
type URLSink interface {
	Record(ctx context.Context, urls []string)
}

// Config tunes node behavior. Zero values are replaced with defaults
// by NewNodes.
type Config struct {
	// RetrievalLimit caps documents returned per vector search.
	RetrievalLimit int
	// WebResultLimit caps snippets kept from a web search.
	WebResultLimit int
	// SnippetLength is the citation snippet truncation point.
	SnippetLength int
}

// Nodes holds the injected dependencies for every node in the graph.
// Each model-backed dependency goes through its own circuit breaker so
// an outage in one provider does not trip the others.
type Nodes struct {
	cfg Config

	reasoning TextGenerator
	fast      TextGenerator
	retriever Retriever
	searcher  WebSearcher
	urlSink   URLSink

	reasoningBreaker *resilience.Breaker
	fastBreaker      *resilience.Breaker
	searchBreaker    *resilience.Breaker
}

// NewNodes wires the node set. reasoning handles synthesis, fast handles
// classification and auxiliary calls. searcher and urlSink may be nil when
// web research is disabled.
func NewNodes(cfg Config, reasoning, fast TextGenerator, retriever Retriever, searcher WebSearcher, urlSink URLSink,
	reasoningBreaker, fastBreaker, searchBreaker *resilience.Breaker) *Nodes {
	if cfg.RetrievalLimit <= 0 {
		cfg.RetrievalLimit = 5
	}
	if cfg.WebResultLimit <= 0 {
		cfg.WebResultLimit = 5
	}
	if cfg.SnippetLength <= 0 {
		cfg.SnippetLength = 200
	}
	return &Nodes{
		cfg:              cfg,
		reasoning:        reasoning,
		fast:             fast,
		retriever:        retriever,
		searcher:         searcher,
		urlSink:          urlSink,
		reasoningBreaker: reasoningBreaker,
		fastBreaker:      fastBreaker,
		searchBreaker:    searchBreaker,
	}
}

package nodes

import (
	"context"
	"fmt"

	"github.com/athletedesk/athletedesk/pkg/agent/state"
	"github.com/athletedesk/athletedesk/pkg/graph"
	"github.com/athletedesk/athletedesk/pkg/resilience"
)

// Retrieve searches the governance document store for the athlete's
// question. When the query planner has produced sub-queries it searches
// each one and merges the results. A store failure marks retrieval as
// errored with zero confidence; downstream routing treats that the same
// as an empty result set, so the turn degrades instead of aborting.
func (n *Nodes) Retrieve(ctx graph.Context, s state.AgentState) (state.Update, error) {
	queries := s.SubQueries
	if len(queries) == 0 {
		queries = []string{s.LastUserMessage()}
	}

	var docs []state.Document
	for _, q := range queries {
		found, err := n.retriever.Search(ctx, q, s.DetectedNGBIDs, s.TopicDomain, n.cfg.RetrievalLimit)
		if err != nil {
			ctx.Logger().Error("document retrieval failed", "error", err, "query_count", len(queries))
			return state.Update{
				RetrievedDocuments:  state.Ptr([]state.Document{}),
				RetrievalConfidence: state.Ptr(0.0),
				RetrievalStatus:     state.Ptr(state.RetrievalError),
			}, nil
		}
		docs = append(docs, found...)
	}
	docs = topDocuments(docs, n.cfg.RetrievalLimit)

	return state.Update{
		RetrievedDocuments:  state.Ptr(docs),
		RetrievalConfidence: state.Ptr(maxScore(docs)),
		RetrievalStatus:     state.Ptr(state.RetrievalSuccess),
	}, nil
}

// Plan decomposes a question that spans several governance areas into
// independent sub-queries for retrieval. On failure the original
// question is used as-is.
func (n *Nodes) Plan(ctx graph.Context, s state.AgentState) (state.Update, error) {
	prompt := fmt.Sprintf(planPrompt, s.LastUserMessage())

	var out struct {
		SubQueries []string `json:"sub_queries"`
	}
	raw, err := resilience.Do(ctx, n.fastBreaker, func(c context.Context) (string, error) {
		return n.fast.Generate(c, prompt)
	})
	if err == nil {
		err = decodeModelJSON(raw, &out)
	}
	if err != nil || len(out.SubQueries) == 0 {
		ctx.Logger().Warn("query planning failed, using original question", "error", err)
		return state.Update{}, nil
	}
	if len(out.SubQueries) > 3 {
		out.SubQueries = out.SubQueries[:3]
	}
	return state.Update{SubQueries: state.Ptr(out.SubQueries)}, nil
}

// Expand reformulates a low-confidence query three ways and retries
// retrieval with each variant, keeping the best-scoring documents across
// the original and expanded searches. It marks the expansion attempted
// even on failure so routing never sends the turn through here twice.
func (n *Nodes) Expand(ctx graph.Context, s state.AgentState) (state.Update, error) {
	upd := state.Update{ExpansionAttempted: state.Ptr(true)}
	prompt := fmt.Sprintf(expandPrompt, s.LastUserMessage())

	var out struct {
		Queries []string `json:"queries"`
	}
	raw, err := resilience.Do(ctx, n.fastBreaker, func(c context.Context) (string, error) {
		return n.fast.Generate(c, prompt)
	})
	if err == nil {
		err = decodeModelJSON(raw, &out)
	}
	if err != nil || len(out.Queries) == 0 {
		ctx.Logger().Warn("query expansion failed", "error", err)
		return upd, nil
	}

	docs := append([]state.Document{}, s.RetrievedDocuments...)
	for _, q := range out.Queries {
		found, err := n.retriever.Search(ctx, q, s.DetectedNGBIDs, s.TopicDomain, n.cfg.RetrievalLimit)
		if err != nil {
			ctx.Logger().Warn("expanded retrieval failed", "error", err, "query", q)
			continue
		}
		docs = append(docs, found...)
	}
	docs = topDocuments(docs, n.cfg.RetrievalLimit)

	upd.RetrievedDocuments = state.Ptr(docs)
	upd.RetrievalConfidence = state.Ptr(maxScore(docs))
	return upd, nil
}

// topDocuments deduplicates by content and keeps the highest-scoring
// limit documents.
func topDocuments(docs []state.Document, limit int) []state.Document {
	seen := make(map[string]int, len(docs))
	unique := docs[:0]
	for _, d := range docs {
		if i, ok := seen[d.Content]; ok {
			if d.Score > unique[i].Score {
				unique[i] = d
			}
			continue
		}
		seen[d.Content] = len(unique)
		unique = append(unique, d)
	}
	// Insertion sort keeps this simple; limit is single digits.
	for i := 1; i < len(unique); i++ {
		for j := i; j > 0 && unique[j].Score > unique[j-1].Score; j-- {
			unique[j], unique[j-1] = unique[j-1], unique[j]
		}
	}
	if len(unique) > limit {
		unique = unique[:limit]
	}
	return unique
}

func maxScore(docs []state.Document) float64 {
	var best float64
	for _, d := range docs {
		if d.Score > best {
			best = d.Score
		}
	}
	return best
}

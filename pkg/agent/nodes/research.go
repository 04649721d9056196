package nodes

import (
	"context"
	"strings"
	"time"

	"github.com/athletedesk/athletedesk/pkg/agent/state"
	"github.com/athletedesk/athletedesk/pkg/graph"
	"github.com/athletedesk/athletedesk/pkg/resilience"
)

// domainSearchContext steers web queries toward the authoritative bodies
// for each governance area.
var domainSearchContext = map[state.TopicDomain]string{
	state.DomainTeamSelection:     "team selection procedures olympic",
	state.DomainEligibility:       "athlete eligibility rules olympic",
	state.DomainGovernance:        "national governing body bylaws",
	state.DomainDisputeResolution: "athlete dispute arbitration section 9",
	state.DomainSafeSport:         "SafeSport policy reporting",
	state.DomainAntiDoping:        "USADA anti-doping testing",
	state.DomainAthleteRights:     "athlete rights Ted Stevens act",
}

// Research falls back to web search when document retrieval came up
// short. The query is prefixed with domain context so results skew
// toward governing-body sources. Search failures leave the state with
// an empty result list; the synthesizer already handles that.
func (n *Nodes) Research(ctx graph.Context, s state.AgentState) (state.Update, error) {
	query := s.LastUserMessage()
	if prefix, ok := domainSearchContext[s.TopicDomain]; ok {
		query = prefix + " " + query
	}

	results, err := resilience.DoWithFallback(ctx, n.searchBreaker, nil,
		func(c context.Context) ([]string, error) {
			return n.searcher.Search(c, query)
		})
	if err != nil {
		ctx.Logger().Warn("web research failed", "error", err)
		return state.Update{WebSearchResults: state.Ptr([]string{})}, nil
	}
	if len(results) > n.cfg.WebResultLimit {
		results = results[:n.cfg.WebResultLimit]
	}

	if n.urlSink != nil {
		if urls := extractURLs(results); len(urls) > 0 {
			// Detached from the turn so a slow sink cannot stall the answer.
			go func() {
				c, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
				defer cancel()
				n.urlSink.Record(c, urls)
			}()
		}
	}

	return state.Update{WebSearchResults: state.Ptr(results)}, nil
}

// extractURLs pulls http(s) links out of search result snippets.
func extractURLs(results []string) []string {
	var urls []string
	for _, r := range results {
		for _, tok := range strings.Fields(r) {
			if strings.HasPrefix(tok, "http://") || strings.HasPrefix(tok, "https://") {
				urls = append(urls, strings.TrimRight(tok, ".,;)"))
			}
		}
	}
	return urls
}

// Package search provides the web-research fallback used when the
// document store cannot answer a question, plus persistence for source
// URLs discovered along the way.
package search

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/tools/duckduckgo"
)

const userAgent = "athletedesk/1.0 (governance research)"

// DuckDuckGo wraps the DuckDuckGo search tool.
type DuckDuckGo struct {
	tool *duckduckgo.Tool
}

// NewDuckDuckGo creates a searcher returning at most maxResults snippets.
func NewDuckDuckGo(maxResults int) (*DuckDuckGo, error) {
	if maxResults <= 0 {
		maxResults = 5
	}
	tool, err := duckduckgo.New(maxResults, userAgent)
	if err != nil {
		return nil, fmt.Errorf("creating duckduckgo tool: %w", err)
	}
	return &DuckDuckGo{tool: tool}, nil
}

// Search runs the query and returns one snippet per result line.
func (d *DuckDuckGo) Search(ctx context.Context, query string) ([]string, error) {
	raw, err := d.tool.Call(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("web search: %w", err)
	}
	var results []string
	for _, line := range strings.Split(raw, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			results = append(results, line)
		}
	}
	return results, nil
}

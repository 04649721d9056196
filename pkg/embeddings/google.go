// Package embeddings produces query and document vectors via the
// Gemini embedding API.
package embeddings

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// DefaultDimension matches the pgvector column width used by the
// governance document store.
const DefaultDimension = 1536

// GoogleEmbedder generates embeddings with a Gemini embedding model.
type GoogleEmbedder struct {
	client    *genai.Client
	model     string
	dimension int32
}

// NewGoogleEmbedder creates an embedder for the given model. dimension
// of 0 uses DefaultDimension.
func NewGoogleEmbedder(ctx context.Context, apiKey, model string, dimension int32) (*GoogleEmbedder, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("creating genai client: %w", err)
	}
	if dimension <= 0 {
		dimension = DefaultDimension
	}
	return &GoogleEmbedder{client: client, model: model, dimension: dimension}, nil
}

// Embed returns the vector for a single text.
func (e *GoogleEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	dim := e.dimension
	res, err := e.client.Models.EmbedContent(ctx, e.model,
		[]*genai.Content{{Parts: []*genai.Part{{Text: text}}}},
		&genai.EmbedContentConfig{OutputDimensionality: &dim},
	)
	if err != nil {
		return nil, fmt.Errorf("embedding text: %w", err)
	}
	if len(res.Embeddings) == 0 || len(res.Embeddings[0].Values) == 0 {
		return nil, fmt.Errorf("empty embedding returned")
	}
	return res.Embeddings[0].Values, nil
}

// EmbedBatch returns vectors for multiple texts. Calls are sequential;
// ingestion volume is low enough that batching is not worth the API
// surface differences between SDK versions.
func (e *GoogleEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, 0, len(texts))
	for _, t := range texts {
		v, err := e.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		vectors = append(vectors, v)
	}
	return vectors, nil
}

package embeddings

import (
	"context"
	"fmt"
	"math"
	"strings"

	"google.golang.org/genai"
)

const defaultGoogleModel = "gemini-embedding-001"

// GoogleClient calls the Gemini embeddings API via the Google Gen AI SDK.
type GoogleClient struct {
	client     *genai.Client
	model      string
	dimensions int
}

// Ensure GoogleClient implements Client interface
var _ Client = (*GoogleClient)(nil)

// GoogleOption configures the GoogleClient.
type GoogleOption func(*GoogleClient)

// WithGoogleDimensions sets the requested embedding dimension (must match DB column).
func WithGoogleDimensions(dim int) GoogleOption {
	return func(c *GoogleClient) {
		c.dimensions = dim
	}
}

// WithGoogleModel sets the embedding model name (e.g. gemini-embedding-001). Empty uses default.
func WithGoogleModel(model string) GoogleOption {
	return func(c *GoogleClient) {
		if model != "" {
			c.model = model
		}
	}
}

// NewGoogleClient creates a Gemini embeddings client.
func NewGoogleClient(ctx context.Context, apiKey string, opts ...GoogleOption) (*GoogleClient, error) {
	genaiClient, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("googleai client: %w", err)
	}

	client := &GoogleClient{
		client:     genaiClient,
		model:      defaultGoogleModel,
		dimensions: defaultDimension,
	}
	for _, opt := range opts {
		opt(client)
	}

	return client, nil
}

// GetEmbedding generates an embedding vector for the given text.
func (c *GoogleClient) GetEmbedding(ctx context.Context, text string) ([]float32, error) {
	out, err := c.GetEmbeddings(ctx, []string{text})
	if err != nil {
		return nil, err
	}

	return out[0], nil
}

// GetEmbeddings generates embedding vectors for multiple texts in a batch.
// The returned slice lengths equal the configured dimensions when
// OutputDimensionality is supported.
func (c *GoogleClient) GetEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, ErrEmptyInput
	}

	if c.dimensions <= 0 || c.dimensions > math.MaxInt32 {
		return nil, ErrInvalidDims
	}

	contents := make([]*genai.Content, 0, len(texts))
	for i, t := range texts {
		t = strings.TrimSpace(t)
		if t == "" {
			return nil, fmt.Errorf("%w: index %d", ErrEmptyInput, i)
		}
		contents = append(contents, genai.NewContentFromText(t, genai.RoleUser))
	}

	//nolint:gosec // G115: c.dimensions is bounded above by math.MaxInt32
	dimInt32 := int32(c.dimensions)

	resp, err := c.client.Models.EmbedContent(ctx, c.model, contents, &genai.EmbedContentConfig{
		OutputDimensionality: &dimInt32,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini embedding: %w", err)
	}

	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("unexpected number of embeddings returned: got %d, expected %d", len(resp.Embeddings), len(texts))
	}

	out := make([][]float32, len(resp.Embeddings))
	for i, emb := range resp.Embeddings {
		if len(emb.Values) != c.dimensions {
			return nil, fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(emb.Values), c.dimensions)
		}
		vec := make([]float32, len(emb.Values))
		copy(vec, emb.Values)
		out[i] = vec
	}

	return out, nil
}

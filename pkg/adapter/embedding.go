package adapter

import (
	"context"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/genai"
)

// Embedder turns query text into the vector used for semantic search. The
// engine never generates embeddings itself; this is the port to the
// upstream embedding service.
type Embedder interface {
	Embed(ctx context.Context, text string) (firestore.Vector32, error)
}

type geminiEmbedder struct {
	client *genai.Client
	model  string
}

// GeminiOption is a functional option for the Gemini embedder
type GeminiOption func(*geminiEmbedder)

// WithEmbeddingModel overrides the embedding model name
func WithEmbeddingModel(model string) GeminiOption {
	return func(g *geminiEmbedder) {
		g.model = model
	}
}

// NewGeminiEmbedder creates an Embedder backed by Vertex AI Gemini
func NewGeminiEmbedder(ctx context.Context, projectID, location string, opts ...GeminiOption) (Embedder, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		Project:  projectID,
		Location: location,
		Backend:  genai.BackendVertexAI,
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create genai client")
	}

	g := &geminiEmbedder{
		client: client,
		model:  "gemini-embedding-001",
	}

	for _, opt := range opts {
		opt(g)
	}

	return g, nil
}

func (g *geminiEmbedder) Embed(ctx context.Context, text string) (firestore.Vector32, error) {
	resp, err := g.client.Models.EmbedContent(ctx, g.model, genai.Text(text), &genai.EmbedContentConfig{})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to embed content")
	}

	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Values) == 0 {
		return nil, goerr.New("embedding response is empty")
	}

	return firestore.Vector32(resp.Embeddings[0].Values), nil
}

// Package ollama talks to a local Ollama instance for embeddings and
// answer generation. Calls run through the shared resilience executor.
package ollama

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/engevia/fichas-inspecao/internal/core/domain"
	"github.com/engevia/fichas-inspecao/internal/infrastructure/resilience"
)

type Client struct {
	baseURL    string
	genModel   string
	embedModel string
	httpClient *http.Client
}

func New(baseURL, genModel, embedModel string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		genModel:   genModel,
		embedModel: embedModel,
		httpClient: &http.Client{Timeout: 120 * time.Second},
	}
}

type Embedder struct {
	client *Client
	exec   *resilience.Executor
}

func NewEmbedder(client *Client, exec *resilience.Executor) *Embedder {
	return &Embedder{client: client, exec: exec}
}

func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	request := map[string]any{
		"model": e.client.embedModel,
		"input": texts,
	}

	var response struct {
		Embeddings [][]float32 `json:"embeddings"`
	}
	err := e.exec.Execute(ctx, "ollama_embed", func(ctx context.Context) error {
		return e.client.postJSON(ctx, "/api/embed", request, &response, "embed")
	}, classifyOllamaError)
	if err != nil {
		return nil, wrapTemporaryIfNeeded("embed texts", err)
	}

	if len(response.Embeddings) != len(texts) {
		return nil, fmt.Errorf("embed texts: got %d vectors for %d inputs",
			len(response.Embeddings), len(texts))
	}
	return response.Embeddings, nil
}

func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("empty embedding result")
	}
	return vectors[0], nil
}

type Generator struct {
	client *Client
	exec   *resilience.Executor
}

func NewGenerator(client *Client, exec *resilience.Executor) *Generator {
	return &Generator{client: client, exec: exec}
}

func (g *Generator) GenerateAnswer(ctx context.Context, question string, segments []domain.RetrievedSegment) (string, error) {
	request := map[string]any{
		"model":  g.client.genModel,
		"prompt": buildAnswerPrompt(question, segments),
		"stream": false,
	}

	var response struct {
		Response string `json:"response"`
	}
	err := g.exec.Execute(ctx, "ollama_generate", func(ctx context.Context) error {
		return g.client.postJSON(ctx, "/api/generate", request, &response, "generate")
	}, classifyOllamaError)
	if err != nil {
		return "", wrapTemporaryIfNeeded("generate answer", err)
	}
	return strings.TrimSpace(response.Response), nil
}

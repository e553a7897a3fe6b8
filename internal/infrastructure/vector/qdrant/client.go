// Package qdrant talks to Qdrant over its HTTP API. Each chat session gets
// its own collection so a rebuilt corpus never mixes with an older one.
package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/engevia/fichas-inspecao/internal/core/domain"
)

type Client struct {
	baseURL        string
	collectionBase string
	httpClient     *http.Client
}

func New(baseURL, collectionBase string) *Client {
	return &Client{
		baseURL:        strings.TrimRight(baseURL, "/"),
		collectionBase: collectionBase,
		httpClient:     &http.Client{Timeout: 60 * time.Second},
	}
}

func (c *Client) collectionFor(sessionID string) string {
	return c.collectionBase + "_" + sessionID
}

// BuildSession creates the session collection and upserts every segment
// with its vector. The collection is sized from the first vector.
func (c *Client) BuildSession(ctx context.Context, sessionID string, segments []domain.Segment, vectors [][]float32) error {
	if len(segments) == 0 {
		return nil
	}
	if len(segments) != len(vectors) {
		return fmt.Errorf("segments/vectors mismatch: %d/%d", len(segments), len(vectors))
	}

	collection := c.collectionFor(sessionID)
	if err := c.createCollection(ctx, collection, len(vectors[0])); err != nil {
		return err
	}

	type point struct {
		ID      string         `json:"id"`
		Vector  []float32      `json:"vector"`
		Payload map[string]any `json:"payload"`
	}

	points := make([]point, 0, len(segments))
	for i := range segments {
		points = append(points, point{
			ID:     uuid.NewString(),
			Vector: vectors[i],
			Payload: map[string]any{
				"source_id":   segments[i].SourceID,
				"kind":        string(segments[i].Kind),
				"chunk_index": segments[i].ChunkIndex,
				"text":        segments[i].Text,
			},
		})
	}

	body, err := json.Marshal(map[string]any{"points": points})
	if err != nil {
		return fmt.Errorf("marshal upsert body: %w", err)
	}

	url := fmt.Sprintf("%s/collections/%s/points?wait=true", c.baseURL, collection)
	return c.do(ctx, http.MethodPut, url, body, nil)
}

func (c *Client) Search(ctx context.Context, sessionID string, queryVector []float32, limit int) ([]domain.RetrievedSegment, error) {
	body, err := json.Marshal(map[string]any{
		"vector":       queryVector,
		"limit":        limit,
		"with_payload": true,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal search body: %w", err)
	}

	var searchResp struct {
		Result []struct {
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}

	url := fmt.Sprintf("%s/collections/%s/points/search", c.baseURL, c.collectionFor(sessionID))
	if err := c.do(ctx, http.MethodPost, url, body, &searchResp); err != nil {
		return nil, err
	}

	out := make([]domain.RetrievedSegment, 0, len(searchResp.Result))
	for _, r := range searchResp.Result {
		out = append(out, domain.RetrievedSegment{
			SourceID: getStringPayload(r.Payload, "source_id"),
			Kind:     domain.SourceKind(getStringPayload(r.Payload, "kind")),
			Text:     getStringPayload(r.Payload, "text"),
			Score:    r.Score,
		})
	}
	return out, nil
}

func (c *Client) DropSession(ctx context.Context, sessionID string) error {
	url := fmt.Sprintf("%s/collections/%s", c.baseURL, c.collectionFor(sessionID))
	return c.do(ctx, http.MethodDelete, url, nil, nil)
}

func (c *Client) createCollection(ctx context.Context, collection string, vectorSize int) error {
	body, err := json.Marshal(map[string]any{
		"vectors": map[string]any{
			"size":     vectorSize,
			"distance": "Cosine",
		},
	})
	if err != nil {
		return fmt.Errorf("marshal create collection body: %w", err)
	}

	url := fmt.Sprintf("%s/collections/%s", c.baseURL, collection)
	return c.do(ctx, http.MethodPut, url, body, nil)
}

func (c *Client) do(ctx context.Context, method, url string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return fmt.Errorf("create qdrant request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("qdrant request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		if s := strings.TrimSpace(string(msg)); s != "" {
			return fmt.Errorf("qdrant status %s: %s", resp.Status, s)
		}
		return fmt.Errorf("qdrant status %s", resp.Status)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode qdrant response: %w", err)
		}
	}
	return nil
}

func getStringPayload(payload map[string]any, key string) string {
	v, ok := payload[key]
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

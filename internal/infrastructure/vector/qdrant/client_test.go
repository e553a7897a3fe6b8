package qdrant

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/engevia/fichas-inspecao/internal/core/domain"
)

func TestBuildSessionCreatesSessionCollectionAndUpserts(t *testing.T) {
	var createdCollection string
	var upsertedPoints int

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPut && r.URL.Path == "/collections/corpus_sess-1":
			createdCollection = "corpus_sess-1"
			w.WriteHeader(http.StatusCreated)
		case r.Method == http.MethodPut && r.URL.Path == "/collections/corpus_sess-1/points":
			var body struct {
				Points []json.RawMessage `json:"points"`
			}
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				t.Errorf("decode upsert body: %v", err)
			}
			upsertedPoints = len(body.Points)
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"status":"ok"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	client := New(server.URL, "corpus")
	segments := []domain.Segment{
		{SourceID: "Ficha_Banco_OAE-001", Kind: domain.SourceRecord, Text: "a"},
		{SourceID: "relatorio.pdf", Kind: domain.SourcePDF, Text: "b"},
	}
	vectors := [][]float32{{0.1, 0.2}, {0.3, 0.4}}

	if err := client.BuildSession(context.Background(), "sess-1", segments, vectors); err != nil {
		t.Fatalf("BuildSession() error = %v", err)
	}
	if createdCollection != "corpus_sess-1" {
		t.Fatalf("session collection not created")
	}
	if upsertedPoints != 2 {
		t.Fatalf("expected 2 points upserted, got %d", upsertedPoints)
	}
}

func TestSearchMapsPayloadToRetrievedSegments(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost && r.URL.Path == "/collections/corpus_sess-1/points/search" {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"result":[
				{"score":0.92,"payload":{"source_id":"Ficha_Banco_OAE-001","kind":"record","text":"Concessionária: CCR"}},
				{"score":0.81,"payload":{"source_id":"relatorio.pdf","kind":"pdf","text":"página 1"}}
			]}`))
			return
		}
		http.NotFound(w, r)
	}))
	defer server.Close()

	client := New(server.URL, "corpus")
	got, err := client.Search(context.Background(), "sess-1", []float32{0.1, 0.2}, 8)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 segments, got %d", len(got))
	}
	if got[0].SourceID != "Ficha_Banco_OAE-001" || got[0].Kind != domain.SourceRecord {
		t.Fatalf("unexpected first segment: %+v", got[0])
	}
	if got[1].Score != 0.81 {
		t.Fatalf("unexpected second score: %v", got[1].Score)
	}
}

func TestBuildSessionIncludesResponseBodyInError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	client := New(server.URL, "corpus")
	err := client.BuildSession(context.Background(), "sess-1",
		[]domain.Segment{{SourceID: "a", Text: "a"}}, [][]float32{{0.1}})
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(err.Error(), "boom") {
		t.Fatalf("expected error to include body, got %v", err)
	}
}

func TestDropSessionDeletesCollection(t *testing.T) {
	var deleted string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodDelete {
			deleted = r.URL.Path
			w.WriteHeader(http.StatusOK)
			return
		}
		http.NotFound(w, r)
	}))
	defer server.Close()

	client := New(server.URL, "corpus")
	if err := client.DropSession(context.Background(), "sess-1"); err != nil {
		t.Fatalf("DropSession() error = %v", err)
	}
	if deleted != "/collections/corpus_sess-1" {
		t.Fatalf("unexpected delete path: %s", deleted)
	}
}

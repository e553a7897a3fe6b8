package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/engevia/fichas-inspecao/internal/core/domain"
	"github.com/engevia/fichas-inspecao/internal/core/ports"
)

// ChatUseCase is the retrieval index adapter: it splits the assembled corpus
// into bounded overlapping segments, hands them to the external semantic
// index, and answers questions with the de-duplicated contributing sources.
type ChatUseCase struct {
	corpus    ports.CorpusSource
	chunker   ports.Chunker
	embedder  ports.Embedder
	index     ports.VectorIndex
	generator ports.AnswerGenerator
	log       *slog.Logger
	topK      int

	mu       sync.Mutex
	sessions map[string]*domain.ChatSession
	newID    func() string
}

func NewChatUseCase(
	corpus ports.CorpusSource,
	chunker ports.Chunker,
	embedder ports.Embedder,
	index ports.VectorIndex,
	generator ports.AnswerGenerator,
	log *slog.Logger,
	topK int,
) *ChatUseCase {
	if topK <= 0 {
		topK = 8
	}
	return &ChatUseCase{
		corpus:    corpus,
		chunker:   chunker,
		embedder:  embedder,
		index:     index,
		generator: generator,
		log:       log,
		topK:      topK,
		sessions:  make(map[string]*domain.ChatSession),
		newID:     uuid.NewString,
	}
}

// StartSession assembles a fresh corpus and builds a session-scoped index
// over it. Build failure is surfaced to the caller, who may retry with a
// fresh corpus; nothing is retained from a failed build.
func (uc *ChatUseCase) StartSession(ctx context.Context) (*domain.ChatSession, error) {
	docs, err := uc.corpus.Assemble(ctx)
	if err != nil {
		return nil, fmt.Errorf("assemble corpus: %w", err)
	}
	if len(docs) == 0 {
		return nil, domain.WrapError(domain.ErrEmptyCorpus, "build retrieval index",
			errors.New("no documents assembled from any source"))
	}

	segments := uc.splitAll(docs)
	if len(segments) == 0 {
		return nil, domain.WrapError(domain.ErrEmptyCorpus, "build retrieval index",
			errors.New("splitting produced zero segments"))
	}

	texts := make([]string, len(segments))
	for i, seg := range segments {
		texts[i] = seg.Text
	}
	vectors, err := uc.embedder.Embed(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed segments: %w", err)
	}
	if len(vectors) != len(segments) {
		return nil, domain.WrapError(domain.ErrInvalidInput, "embed segments",
			fmt.Errorf("vectors/segments mismatch: %d/%d", len(vectors), len(segments)))
	}

	session := &domain.ChatSession{
		ID:        uc.newID(),
		Documents: len(docs),
		Segments:  len(segments),
		CreatedAt: time.Now().UTC(),
	}
	if err := uc.index.BuildSession(ctx, session.ID, segments, vectors); err != nil {
		return nil, fmt.Errorf("build semantic index: %w", err)
	}

	uc.mu.Lock()
	uc.sessions[session.ID] = session
	uc.mu.Unlock()

	uc.log.Info("chat session built",
		"session_id", session.ID,
		"documents", session.Documents,
		"segments", session.Segments)
	return session, nil
}

// Ask retrieves the top-k segments for the question and generates an answer
// constrained to their content, returning the contributing source ids.
func (uc *ChatUseCase) Ask(ctx context.Context, sessionID, question string) (*domain.Answer, error) {
	if _, ok := uc.session(sessionID); !ok {
		return nil, domain.WrapError(domain.ErrFichaNotFound, "chat session",
			fmt.Errorf("unknown session %s", sessionID))
	}

	queryVector, err := uc.embedder.EmbedQuery(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("embed question: %w", err)
	}

	segments, err := uc.index.Search(ctx, sessionID, queryVector, uc.topK)
	if err != nil {
		return nil, fmt.Errorf("search semantic index: %w", err)
	}

	answerText, err := uc.generator.GenerateAnswer(ctx, question, segments)
	if err != nil {
		return nil, fmt.Errorf("generate answer: %w", err)
	}

	return &domain.Answer{
		Text:    answerText,
		Sources: dedupSources(segments),
	}, nil
}

func (uc *ChatUseCase) EndSession(ctx context.Context, sessionID string) error {
	uc.mu.Lock()
	delete(uc.sessions, sessionID)
	uc.mu.Unlock()

	if err := uc.index.DropSession(ctx, sessionID); err != nil {
		return fmt.Errorf("drop session index: %w", err)
	}
	return nil
}

func (uc *ChatUseCase) session(id string) (*domain.ChatSession, bool) {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	s, ok := uc.sessions[id]
	return s, ok
}

func (uc *ChatUseCase) splitAll(docs []domain.CorpusDocument) []domain.Segment {
	var segments []domain.Segment
	for _, doc := range docs {
		for i, chunk := range uc.chunker.Split(doc.Text) {
			segments = append(segments, domain.Segment{
				SourceID:   doc.SourceID,
				Kind:       doc.Kind,
				ChunkIndex: i,
				Text:       chunk,
			})
		}
	}
	return segments
}

func dedupSources(segments []domain.RetrievedSegment) []string {
	seen := make(map[string]struct{}, len(segments))
	sources := make([]string, 0, len(segments))
	for _, seg := range segments {
		if seg.SourceID == "" {
			continue
		}
		if _, ok := seen[seg.SourceID]; ok {
			continue
		}
		seen[seg.SourceID] = struct{}{}
		sources = append(sources, seg.SourceID)
	}
	return sources
}

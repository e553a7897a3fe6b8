package usecase

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/engevia/fichas-inspecao/internal/core/domain"
	"github.com/engevia/fichas-inspecao/internal/core/ports"
)

// fakeRepo keeps fichas in memory and simulates the storage uniqueness
// constraints inside InsertBatch.
type fakeRepo struct {
	fichas []domain.Ficha
	nextID int64

	schemaErr error
	listErr   error
	existsErr error
	insertErr error

	codigoInUse bool
}

func (r *fakeRepo) EnsureSchema(context.Context) error { return r.schemaErr }

func (r *fakeRepo) InsertBatch(_ context.Context, fichas []domain.Ficha) ([]ports.InsertOutcome, error) {
	if r.insertErr != nil {
		return nil, r.insertErr
	}
	outcomes := make([]ports.InsertOutcome, 0, len(fichas))
	for i := range fichas {
		if r.violatesConstraint(&fichas[i]) {
			outcomes = append(outcomes, ports.InsertOutcome{Index: i, SkippedDuplicate: true})
			continue
		}
		r.nextID++
		f := fichas[i]
		f.ID = r.nextID
		r.fichas = append(r.fichas, f)
		outcomes = append(outcomes, ports.InsertOutcome{Index: i, ID: f.ID})
	}
	return outcomes, nil
}

func (r *fakeRepo) violatesConstraint(candidate *domain.Ficha) bool {
	for i := range r.fichas {
		if r.fichas[i].SameInspection(candidate) {
			return true
		}
		if candidate.ArquivoS3 != "" && r.fichas[i].ArquivoS3 == candidate.ArquivoS3 {
			return true
		}
	}
	return false
}

func (r *fakeRepo) ExistsByCodigoAndData(_ context.Context, codigo string, data time.Time) (bool, error) {
	if r.existsErr != nil {
		return false, r.existsErr
	}
	for i := range r.fichas {
		if r.fichas[i].Codigo == codigo && r.fichas[i].DataInspecao != nil && r.fichas[i].DataInspecao.Equal(data) {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeRepo) ExistsByArquivo(_ context.Context, arquivo string) (bool, error) {
	if r.existsErr != nil {
		return false, r.existsErr
	}
	for i := range r.fichas {
		if r.fichas[i].ArquivoS3 == arquivo {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeRepo) List(context.Context) ([]domain.Ficha, error) {
	if r.listErr != nil {
		return nil, r.listErr
	}
	return append([]domain.Ficha(nil), r.fichas...), nil
}

func (r *fakeRepo) GetByID(_ context.Context, id int64) (*domain.Ficha, error) {
	for i := range r.fichas {
		if r.fichas[i].ID == id {
			f := r.fichas[i]
			return &f, nil
		}
	}
	return nil, domain.WrapError(domain.ErrFichaNotFound, "get ficha", errors.New("missing"))
}

func (r *fakeRepo) Update(_ context.Context, ficha domain.Ficha) error {
	for i := range r.fichas {
		if r.fichas[i].ID == ficha.ID {
			r.fichas[i] = ficha
			return nil
		}
	}
	return domain.WrapError(domain.ErrFichaNotFound, "update ficha", errors.New("missing"))
}

func (r *fakeRepo) Delete(_ context.Context, id int64) error {
	for i := range r.fichas {
		if r.fichas[i].ID == id {
			r.fichas = append(r.fichas[:i], r.fichas[i+1:]...)
			return nil
		}
	}
	return domain.WrapError(domain.ErrFichaNotFound, "delete ficha", errors.New("missing"))
}

func (r *fakeRepo) CodigoInUseByOther(context.Context, string, int64) (bool, error) {
	return r.codigoInUse, nil
}

type fakeStorage struct {
	objects map[string][]byte

	putErr  error
	listErr error
	getErr  error
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{objects: map[string][]byte{}}
}

func (s *fakeStorage) Exists(_ context.Context, key string) (bool, error) {
	_, ok := s.objects[key]
	return ok, nil
}

func (s *fakeStorage) Put(_ context.Context, key, _ string, data io.Reader) error {
	if s.putErr != nil {
		return s.putErr
	}
	b, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	s.objects[key] = b
	return nil
}

func (s *fakeStorage) Get(_ context.Context, key string) (io.ReadCloser, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	b, ok := s.objects[key]
	if !ok {
		return nil, errors.New("object not found: " + key)
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

func (s *fakeStorage) List(_ context.Context, prefix string, max int) ([]string, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	var keys []string
	for key := range s.objects {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	if max > 0 && len(keys) > max {
		keys = keys[:max]
	}
	return keys, nil
}

func (s *fakeStorage) Delete(_ context.Context, key string) error {
	delete(s.objects, key)
	return nil
}

func (s *fakeStorage) Head(_ context.Context, key string) (*domain.ObjectInfo, error) {
	b, ok := s.objects[key]
	if !ok {
		return nil, errors.New("object not found: " + key)
	}
	return &domain.ObjectInfo{Size: int64(len(b))}, nil
}

// fakeRecordExtractor maps raw file bytes to a prepared record.
type fakeRecordExtractor struct {
	byContent map[string]*domain.Ficha
	errs      map[string]error
}

func (e *fakeRecordExtractor) Extract(_ context.Context, data []byte) (*domain.Ficha, error) {
	if err, ok := e.errs[string(data)]; ok {
		return nil, err
	}
	if f, ok := e.byContent[string(data)]; ok {
		out := *f
		return &out, nil
	}
	return nil, domain.WrapError(domain.ErrCouldNotExtract, "fake extract", errors.New("unknown content"))
}

type fakeTextExtractor struct {
	sections map[string][]domain.TextSection
	errs     map[string]error
}

func (e *fakeTextExtractor) Extract(_ context.Context, filename string, _ []byte) ([]domain.TextSection, error) {
	if err, ok := e.errs[filename]; ok {
		return nil, err
	}
	return e.sections[filename], nil
}

type fakeRegistry struct {
	records map[domain.FileKind]ports.RecordExtractor
	texts   map[domain.FileKind]ports.TextExtractor
}

func (r *fakeRegistry) RecordExtractor(kind domain.FileKind) (ports.RecordExtractor, bool) {
	ex, ok := r.records[kind]
	return ex, ok
}

func (r *fakeRegistry) TextExtractor(kind domain.FileKind) (ports.TextExtractor, bool) {
	ex, ok := r.texts[kind]
	return ex, ok
}

type fakePublisher struct {
	published []int
	err       error
	closed    bool
}

func (p *fakePublisher) PublishCorpusStale(_ context.Context, inserted int) error {
	if p.err != nil {
		return p.err
	}
	p.published = append(p.published, inserted)
	return nil
}

func (p *fakePublisher) Close() { p.closed = true }

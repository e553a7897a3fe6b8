package usecase

import (
	"context"
	"fmt"

	"github.com/engevia/fichas-inspecao/internal/core/domain"
	"github.com/engevia/fichas-inspecao/internal/core/ports"
)

// DuplicateClassifier decides whether a candidate record repeats something
// already persisted. It is intentionally conservative: only an authoritative
// match counts, never fuzzy or partial field coincidence. The storage-layer
// unique constraints remain the second line of defense against races.
type DuplicateClassifier struct {
	repo ports.FichaRepository
}

func NewDuplicateClassifier(repo ports.FichaRepository) *DuplicateClassifier {
	return &DuplicateClassifier{repo: repo}
}

// IsDuplicate applies the layered rule set, first match wins:
//  1. (codigo, data_inspecao) pair already stored — the semantic identity of
//     an inspection event.
//  2. arquivo_s3 already stored — the same physical file re-uploaded under a
//     different or missing codigo.
//
// Anything else is not a duplicate.
func (c *DuplicateClassifier) IsDuplicate(ctx context.Context, ficha *domain.Ficha) (bool, error) {
	if ficha.SemanticKeySet() {
		exists, err := c.repo.ExistsByCodigoAndData(ctx, ficha.Codigo, *ficha.DataInspecao)
		if err != nil {
			return false, fmt.Errorf("check codigo+data: %w", err)
		}
		if exists {
			return true, nil
		}
	}

	if ficha.ArquivoS3 != "" {
		exists, err := c.repo.ExistsByArquivo(ctx, ficha.ArquivoS3)
		if err != nil {
			return false, fmt.Errorf("check arquivo: %w", err)
		}
		if exists {
			return true, nil
		}
	}

	return false, nil
}

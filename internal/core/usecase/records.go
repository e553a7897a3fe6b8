package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/engevia/fichas-inspecao/internal/core/domain"
	"github.com/engevia/fichas-inspecao/internal/core/ports"
)

// RecordsUseCase is the operator-facing read/update/delete surface over
// stored fichas. Deletes are destructive; there is no soft-delete.
type RecordsUseCase struct {
	repo ports.FichaRepository
}

func NewRecordsUseCase(repo ports.FichaRepository) *RecordsUseCase {
	return &RecordsUseCase{repo: repo}
}

func (uc *RecordsUseCase) List(ctx context.Context) ([]domain.Ficha, error) {
	fichas, err := uc.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list fichas: %w", err)
	}
	return fichas, nil
}

func (uc *RecordsUseCase) GetByID(ctx context.Context, id int64) (*domain.Ficha, error) {
	ficha, err := uc.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get ficha %d: %w", id, err)
	}
	return ficha, nil
}

// Update rewrites a record in place. An update that would reuse another
// record's codigo is refused before any write happens.
func (uc *RecordsUseCase) Update(ctx context.Context, ficha domain.Ficha) error {
	if ficha.ID == 0 {
		return domain.WrapError(domain.ErrInvalidInput, "update ficha", errors.New("missing id"))
	}
	if err := ficha.ValidateGrades(); err != nil {
		return err
	}

	if ficha.Codigo != "" {
		inUse, err := uc.repo.CodigoInUseByOther(ctx, ficha.Codigo, ficha.ID)
		if err != nil {
			return fmt.Errorf("check codigo reuse: %w", err)
		}
		if inUse {
			return domain.WrapError(domain.ErrDuplicate, "update ficha",
				fmt.Errorf("codigo %s already belongs to another ficha", ficha.Codigo))
		}
	}

	if err := uc.repo.Update(ctx, ficha); err != nil {
		return fmt.Errorf("update ficha %d: %w", ficha.ID, err)
	}
	return nil
}

func (uc *RecordsUseCase) Delete(ctx context.Context, id int64) error {
	if err := uc.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete ficha %d: %w", id, err)
	}
	return nil
}

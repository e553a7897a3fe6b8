package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/engevia/fichas-inspecao/internal/core/domain"
	"github.com/engevia/fichas-inspecao/internal/core/ports"
)

const defaultArchiveListMax = 500

// ArchiveBrowserUseCase is the operator maintenance surface over the raw
// file archive: listing, metadata lookup and deletion. Keys outside the two
// archive prefixes are refused so the browser cannot touch foreign objects.
type ArchiveBrowserUseCase struct {
	storage ports.ObjectStorage
}

func NewArchiveBrowserUseCase(storage ports.ObjectStorage) *ArchiveBrowserUseCase {
	return &ArchiveBrowserUseCase{storage: storage}
}

func (uc *ArchiveBrowserUseCase) ListObjects(ctx context.Context, prefix string, max int) ([]string, error) {
	if prefix != "" && !archiveKey(prefix) {
		return nil, domain.WrapError(domain.ErrInvalidInput, "list archive",
			fmt.Errorf("prefix %q is outside the archive", prefix))
	}
	if max <= 0 || max > defaultArchiveListMax {
		max = defaultArchiveListMax
	}

	if prefix != "" {
		keys, err := uc.storage.List(ctx, prefix, max)
		if err != nil {
			return nil, fmt.Errorf("list archive %q: %w", prefix, err)
		}
		return keys, nil
	}

	var keys []string
	for _, p := range []string{ArchivePrefixFichas, ArchivePrefixRelatorios} {
		part, err := uc.storage.List(ctx, p, max-len(keys))
		if err != nil {
			return nil, fmt.Errorf("list archive %q: %w", p, err)
		}
		keys = append(keys, part...)
		if len(keys) >= max {
			break
		}
	}
	return keys, nil
}

func (uc *ArchiveBrowserUseCase) HeadObject(ctx context.Context, key string) (*domain.ObjectInfo, error) {
	if err := uc.checkKey(ctx, key); err != nil {
		return nil, err
	}
	info, err := uc.storage.Head(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("head archive object %q: %w", key, err)
	}
	return info, nil
}

func (uc *ArchiveBrowserUseCase) DeleteObject(ctx context.Context, key string) error {
	if err := uc.checkKey(ctx, key); err != nil {
		return err
	}
	if err := uc.storage.Delete(ctx, key); err != nil {
		return fmt.Errorf("delete archive object %q: %w", key, err)
	}
	return nil
}

func (uc *ArchiveBrowserUseCase) checkKey(ctx context.Context, key string) error {
	if !archiveKey(key) {
		return domain.WrapError(domain.ErrInvalidInput, "archive object",
			fmt.Errorf("key %q is outside the archive", key))
	}
	exists, err := uc.storage.Exists(ctx, key)
	if err != nil {
		return fmt.Errorf("check archive object %q: %w", key, err)
	}
	if !exists {
		return domain.WrapError(domain.ErrFichaNotFound, "archive object",
			fmt.Errorf("key %q does not exist", key))
	}
	return nil
}

func archiveKey(key string) bool {
	return strings.HasPrefix(key, ArchivePrefixFichas) ||
		strings.HasPrefix(key, ArchivePrefixRelatorios)
}

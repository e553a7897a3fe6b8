package httpadapter

import (
	"net/http"

	"github.com/engevia/fichas-inspecao/internal/core/domain"
)

func mapErrorToHTTPStatus(err error) int {
	switch {
	case domain.IsKind(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrFichaNotFound):
		return http.StatusNotFound
	case domain.IsKind(err, domain.ErrDuplicate):
		return http.StatusConflict
	case domain.IsKind(err, domain.ErrEmptyCorpus):
		return http.StatusUnprocessableEntity
	case domain.IsKind(err, domain.ErrCouldNotExtract):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrTemporary):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

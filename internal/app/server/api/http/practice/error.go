package practice

import (
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"vetsync/internal/domain/entity"
	"vetsync/internal/domain/practice"
	"vetsync/internal/domain/tenant"
)

// ConflictModel — тело ответа 409 с текущей версией записи.
type ConflictModel struct {
	huma.ErrorModel
	Record *entity.RemoteRecord `json:"record"`
}

func (e *ConflictModel) GetStatus() int {
	return http.StatusConflict
}

func (e *ConflictModel) Error() string {
	return e.Detail
}

// statusError переводит ошибки домена в ответы API.
func (h *Handler) statusError(op string, err error) error {
	var ce *practice.ConflictError
	switch {
	case errors.As(err, &ce):
		return &ConflictModel{
			ErrorModel: huma.ErrorModel{
				Title:  http.StatusText(http.StatusConflict),
				Status: http.StatusConflict,
				Detail: ce.Error(),
			},
			Record: ce.Current,
		}
	case errors.Is(err, tenant.ErrScope):
		return huma.Error401Unauthorized("Unauthorized")
	case errors.Is(err, practice.ErrNotFound):
		return huma.Error404NotFound("record not found")
	case errors.Is(err, practice.ErrInvalidData):
		return huma.Error422UnprocessableEntity(err.Error())
	}
	h.log.Error("entity operation failed", "op", op, "error", err)
	return huma.Error500InternalServerError(op + " failed")
}

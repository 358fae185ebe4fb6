// Package practice — HTTP-операции над записями клиники.
package practice

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"golang.org/x/exp/slog"

	"vetsync/internal/domain/entity"
	"vetsync/internal/domain/practice"
)

type Handler struct {
	service    practice.Servicer
	log        *slog.Logger
	middleware huma.Middlewares
}

func NewHandler(service practice.Servicer, log *slog.Logger, mws huma.Middlewares) *Handler {
	return &Handler{
		service:    service,
		log:        log,
		middleware: mws,
	}
}

func (h *Handler) SetupRoutes(api huma.API) {
	huma.Register(api, h.listOp(), h.list)
	huma.Register(api, h.createOp(), h.create)
	huma.Register(api, h.getOp(), h.get)
	huma.Register(api, h.updateOp(), h.update)
	huma.Register(api, h.deleteOp(), h.delete)
}

func (h *Handler) create(ctx context.Context, input *createInput) (*recordOutput, error) {
	rec, created, err := h.service.Create(ctx, input.Type, input.Body.ClientID, input.Body.Data)
	if err != nil {
		return nil, h.statusError("create", err)
	}
	status := http.StatusCreated
	if !created {
		status = http.StatusOK
	}
	return &recordOutput{Status: status, Body: rec}, nil
}

func (h *Handler) update(ctx context.Context, input *updateInput) (*recordOutput, error) {
	rec, err := h.service.Update(ctx, input.Type, input.ID, input.Body.BaseVersion, input.Body.Data)
	if err != nil {
		return nil, h.statusError("update", err)
	}
	return &recordOutput{Status: http.StatusOK, Body: rec}, nil
}

func (h *Handler) delete(ctx context.Context, input *deleteInput) (*struct{}, error) {
	if err := h.service.Delete(ctx, input.Type, input.ID, input.BaseVersion); err != nil {
		return nil, h.statusError("delete", err)
	}
	return nil, nil
}

func (h *Handler) get(ctx context.Context, input *getInput) (*recordOutput, error) {
	rec, err := h.service.Get(ctx, input.Type, input.ID)
	if err != nil {
		return nil, h.statusError("get", err)
	}
	return &recordOutput{Status: http.StatusOK, Body: rec}, nil
}

func (h *Handler) list(ctx context.Context, input *listInput) (*listOutput, error) {
	var since time.Time
	if input.Since != "" {
		t, err := time.Parse(time.RFC3339Nano, input.Since)
		if err != nil {
			return nil, huma.Error422UnprocessableEntity("since must be RFC 3339")
		}
		since = t
	}

	recs, err := h.service.List(ctx, input.Type, since)
	if err != nil {
		return nil, h.statusError("list", err)
	}
	if recs == nil {
		recs = []*entity.RemoteRecord{}
	}
	return &listOutput{Body: ListResponse{Records: recs}}, nil
}

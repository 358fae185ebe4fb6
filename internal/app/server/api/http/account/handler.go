// Package account — HTTP-операции входа и регистрации сотрудников.
package account

import (
	"context"
	"errors"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	"golang.org/x/exp/slog"

	"vetsync/internal/domain/session"
	"vetsync/internal/domain/staff"
)

type Handler struct {
	service    staff.Servicer
	session    session.Servicer
	log        *slog.Logger
	middleware huma.Middlewares
}

func NewHandler(service staff.Servicer, session session.Servicer, log *slog.Logger, middleware huma.Middlewares) *Handler {
	return &Handler{
		service:    service,
		session:    session,
		log:        log,
		middleware: middleware,
	}
}

func (h *Handler) SetupRoutes(api huma.API) {
	huma.Register(api, h.registerOp(), h.register)
	huma.Register(api, h.loginOp(), h.login)
	huma.Register(api, h.logoutOp(), h.logout)
}

func (h *Handler) register(ctx context.Context, input *registerInput) (*registerOutput, error) {
	b := input.Body
	id, err := h.service.Register(ctx, b.TenantID, b.PracticeID, b.Login, b.Password)
	switch {
	case errors.Is(err, staff.ErrInvalidInput):
		return nil, huma.Error422UnprocessableEntity(err.Error())
	case errors.Is(err, staff.ErrLoginTaken):
		return nil, huma.Error409Conflict(err.Error())
	case err != nil:
		h.log.Error("register staff", "tenant", b.TenantID, "error", err)
		return nil, huma.Error500InternalServerError("register failed")
	}
	return &registerOutput{Body: RegisterResponse{ID: id}}, nil
}

func (h *Handler) login(ctx context.Context, input *loginInput) (*loginOutput, error) {
	b := input.Body
	m, err := h.service.Authenticate(ctx, b.TenantID, b.Login, b.Password)
	if errors.Is(err, staff.ErrInvalidAuth) {
		return nil, huma.Error401Unauthorized("invalid credentials")
	}
	if err != nil {
		h.log.Error("authenticate staff", "tenant", b.TenantID, "error", err)
		return nil, huma.Error500InternalServerError("login failed")
	}

	token, expiresAt, err := h.session.Create(ctx, m)
	if err != nil {
		h.log.Error("create session", "error", err)
		return nil, huma.Error500InternalServerError("login failed")
	}

	return &loginOutput{Body: LoginResponse{
		Token:     token,
		ExpiresAt: expiresAt,
		Scope:     m.Scope(),
	}}, nil
}

func (h *Handler) logout(ctx context.Context, input *logoutInput) (*struct{}, error) {
	token, ok := strings.CutPrefix(input.Authorization, "Bearer ")
	if !ok || token == "" {
		return nil, huma.Error401Unauthorized("Unauthorized")
	}
	if err := h.session.Revoke(ctx, token); err != nil {
		h.log.Error("revoke session", "error", err)
		return nil, huma.Error500InternalServerError("logout failed")
	}
	return nil, nil
}

package auth

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	"golang.org/x/exp/slog"

	"vetsync/internal/domain/session"
	"vetsync/internal/domain/tenant"
)

const (
	HeaderTenant   = "X-Tenant-Id"
	HeaderPractice = "X-Practice-Id"
)

type Auth struct {
	api     huma.API
	session session.Servicer
	log     *slog.Logger
}

func New(api huma.API, session session.Servicer, log *slog.Logger) *Auth {
	return &Auth{
		api:     api,
		session: session,
		log:     log.With("component", "auth_middleware"),
	}
}

// Middleware проверяет Bearer-токен и привязывает область сотрудника к контексту запроса.
// Заголовки арендатора и клиники, если переданы, должны совпадать с областью сессии.
func (a *Auth) Middleware() func(huma.Context, func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		token, ok := strings.CutPrefix(ctx.Header("Authorization"), "Bearer ")
		if !ok || token == "" {
			a.log.Debug("missing bearer token", "path", ctx.URL().Path)
			a.deny(ctx, http.StatusUnauthorized, "Unauthorized")
			return
		}

		scope, err := a.session.Validate(ctx.Context(), token)
		if err != nil {
			a.log.Debug("session rejected", "error", err)
			a.deny(ctx, http.StatusUnauthorized, "Unauthorized")
			return
		}

		if !headersMatch(ctx, scope) {
			a.log.Warn("scope headers mismatch",
				"scope", scope.String(),
				"tenant", ctx.Header(HeaderTenant),
				"practice", ctx.Header(HeaderPractice),
			)
			a.deny(ctx, http.StatusForbidden, "tenant scope mismatch")
			return
		}

		next(huma.WithContext(ctx, tenant.WithScope(ctx.Context(), scope)))
	}
}

func headersMatch(ctx huma.Context, scope tenant.Scope) bool {
	if t := ctx.Header(HeaderTenant); t != "" && t != scope.TenantID {
		return false
	}
	if p := ctx.Header(HeaderPractice); p != "" {
		id, err := strconv.ParseInt(p, 10, 64)
		if err != nil || id != scope.PracticeID {
			return false
		}
	}
	return true
}

func (a *Auth) deny(ctx huma.Context, status int, msg string) {
	if err := huma.WriteErr(a.api, ctx, status, msg); err != nil {
		a.log.Error("write error response", "error", err)
	}
}

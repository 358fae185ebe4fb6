package account

import (
	"time"

	"vetsync/internal/domain/tenant"
)

type credentials struct {
	TenantID string `json:"tenant_id" minLength:"1" doc:"Идентификатор арендатора"`
	Login    string `json:"login" minLength:"1" doc:"Логин сотрудника"`
	Password string `json:"password" minLength:"1" doc:"Пароль"`
}

type loginInput struct {
	Body credentials
}

type loginOutput struct {
	Body LoginResponse
}

type LoginResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	Scope     tenant.Scope `json:"scope"`
}

type registerInput struct {
	Body struct {
		TenantID   string `json:"tenant_id" minLength:"1" doc:"Идентификатор арендатора"`
		PracticeID int64  `json:"practice_id" minimum:"1" doc:"Клиника сотрудника"`
		Login      string `json:"login" minLength:"1" doc:"Логин сотрудника"`
		Password   string `json:"password" minLength:"1" doc:"Пароль"`
	}
}

type registerOutput struct {
	Body RegisterResponse
}

type RegisterResponse struct {
	ID int64 `json:"user_id"`
}

type logoutInput struct {
	Authorization string `header:"Authorization"`
}

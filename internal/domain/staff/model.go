package staff

import (
	"time"

	"vetsync/internal/domain/tenant"
)

// Member — сотрудник клиники с учётной записью на сервере.
type Member struct {
	ID         int64
	TenantID   string
	PracticeID int64
	Login      string
	Password   string // хэш
	CreatedAt  time.Time
}

// Scope возвращает область данных, в которой работает сотрудник.
func (m Member) Scope() tenant.Scope {
	return tenant.Scope{TenantID: m.TenantID, PracticeID: m.PracticeID, UserID: m.ID}
}

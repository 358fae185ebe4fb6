package staff

import "context"

type Repository interface {
	Create(ctx context.Context, m Member) (int64, error)
	FindByLogin(ctx context.Context, tenantID, login string) (Member, error)
}

package tenant

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScope_Validate(t *testing.T) {
	tests := []struct {
		name    string
		scope   Scope
		wantErr bool
	}{
		{name: "valid", scope: Scope{TenantID: "clinic-a", PracticeID: 1, UserID: 7}},
		{name: "empty tenant", scope: Scope{PracticeID: 1, UserID: 7}, wantErr: true},
		{name: "zero practice", scope: Scope{TenantID: "clinic-a", UserID: 7}, wantErr: true},
		{name: "zero user", scope: Scope{TenantID: "clinic-a", PracticeID: 1}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.scope.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrScope)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestFromContext(t *testing.T) {
	_, err := FromContext(context.Background())
	assert.ErrorIs(t, err, ErrScope)

	_, err = FromContext(WithScope(context.Background(), Scope{TenantID: "clinic-a"}))
	assert.ErrorIs(t, err, ErrScope)

	want := Scope{TenantID: "clinic-a", PracticeID: 2, UserID: 3}
	got, err := FromContext(WithScope(context.Background(), want))
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Equal(t, "clinic-a/2/3", got.String())
}

func TestScope_SameTenant(t *testing.T) {
	a := Scope{TenantID: "clinic-a", PracticeID: 1, UserID: 1}
	assert.True(t, a.SameTenant(Scope{TenantID: "clinic-a", PracticeID: 1, UserID: 9}))
	assert.False(t, a.SameTenant(Scope{TenantID: "clinic-b", PracticeID: 1, UserID: 1}))
}

package staff

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPasswordValidator_ValidateLogin(t *testing.T) {
	v := NewPasswordValidator()

	tests := []struct {
		name    string
		login   string
		wantErr string
	}{
		{name: "plain", login: "vet123"},
		{name: "with separators", login: "dr.smith_on-call"},
		{name: "cyrillic", login: "врач"},
		{name: "too short", login: "ab", wantErr: "at least 3"},
		{name: "too long", login: strings.Repeat("a", 33), wantErr: "at most 32"},
		{name: "space", login: "dr smith", wantErr: "can only contain"},
		{name: "at sign", login: "dr@clinic", wantErr: "can only contain"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.ValidateLogin(tt.login)
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestPasswordValidator_ValidatePassword(t *testing.T) {
	v := NewPasswordValidator()

	tests := []struct {
		name     string
		password string
		wantErr  string
	}{
		{name: "strong", password: "Ch3ckup!now"},
		{name: "too short", password: "Ab1!", wantErr: "at least 8"},
		{name: "no upper", password: "ch3ckup!now", wantErr: "uppercase"},
		{name: "no lower", password: "CH3CKUP!NOW", wantErr: "lowercase"},
		{name: "no digit", password: "Checkup!now", wantErr: "digit"},
		{name: "no special", password: "Ch3ckupnow", wantErr: "special character"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.ValidatePassword(tt.password)
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestPasswordValidator_ValidateRegister(t *testing.T) {
	v := NewPasswordValidator()

	require.NoError(t, v.ValidateRegister("reception", "Fr0nt#desk"))
	assert.ErrorContains(t, v.ValidateRegister("ab", "Fr0nt#desk"), "login validation failed")
	assert.ErrorContains(t, v.ValidateRegister("reception", "short"), "password validation failed")
}

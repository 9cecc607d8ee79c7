package auth_test

import (
	"strings"
	"testing"

	"github.com/BradenHooton/tourney/pkg/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashPassword_RoundTrip(t *testing.T) {
	hash, err := auth.HashPassword("Str0ng!Pass")
	require.NoError(t, err)

	assert.NotEqual(t, "Str0ng!Pass", hash)
	assert.NoError(t, auth.ComparePassword(hash, "Str0ng!Pass"))
	assert.Error(t, auth.ComparePassword(hash, "wrong"))
}

func TestHashPassword_Empty(t *testing.T) {
	_, err := auth.HashPassword("")
	assert.Error(t, err)
}

func TestValidatePassword(t *testing.T) {
	tests := []struct {
		name     string
		password string
		wantErr  bool
	}{
		{"valid", "Str0ng!Pass", false},
		{"too short", "S0!a", true},
		{"too long", "Aa1!" + strings.Repeat("x", 80), true},
		{"no upper", "str0ng!pass", true},
		{"no lower", "STR0NG!PASS", true},
		{"no digit", "Strong!Pass", true},
		{"no special", "Str0ngPass", true},
		{"common", "Tournament1!", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := auth.ValidatePassword(tt.password)
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, "invalid password", err.Error())
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestGenerateResetToken(t *testing.T) {
	plain, hash, err := auth.GenerateResetToken()
	require.NoError(t, err)

	assert.Len(t, plain, 43)
	assert.Len(t, hash, 64)
	assert.Equal(t, hash, auth.HashResetToken(plain))

	other, _, err := auth.GenerateResetToken()
	require.NoError(t, err)
	assert.NotEqual(t, plain, other)
}

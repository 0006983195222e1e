package area

import (
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"testing"
	"zentry/internal/model"
)

func TestForRole(t *testing.T) {
	tests := []struct {
		role     string
		wantName string
		wantErr  bool
	}{
		{role: "student", wantName: "student"},
		{role: "LECTURER", wantName: "lecture"},
		{role: "Lecturer", wantName: "lecture"},
		{role: "admin", wantErr: true},
		{role: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.role, func(t *testing.T) {
			a, err := ForRole(model.ParseRole(tt.role))
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrNoArea)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantName, a.Name)
			assert.NotEmpty(t, a.Menu)
		})
	}
}

func TestForRole_MenuIsCopied(t *testing.T) {
	a, err := ForRole(model.RoleStudent)
	require.NoError(t, err)
	a.Menu[0] = "changed"

	b, err := ForRole(model.RoleStudent)
	require.NoError(t, err)
	assert.Equal(t, "home", b.Menu[0])
}

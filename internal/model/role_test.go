package model

import (
	"github.com/stretchr/testify/assert"
	"testing"
)

func TestParseRole(t *testing.T) {
	cases := []struct {
		in   string
		want Role
	}{
		{"student", RoleStudent},
		{"Student", RoleStudent},
		{"STUDENT", RoleStudent},
		{"lecturer", RoleTeacher},
		{"Lecturer", RoleTeacher},
		{" lecturer ", RoleTeacher},
		{"teacher", RoleUnrecognized},
		{"admin", RoleUnrecognized},
		{"", RoleUnrecognized},
	}

	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			got := ParseRole(tc.in)
			assert.Equal(t, tc.want, got)
			assert.Equal(t, tc.want.Valid(), got != RoleUnrecognized)
		})
	}
}

func TestRole_String(t *testing.T) {
	assert.Equal(t, "STUDENT", RoleStudent.String())
	assert.Equal(t, "TEACHER", RoleTeacher.String())
	assert.Equal(t, "UNRECOGNIZED", RoleUnrecognized.String())
}

func TestRefreshResponse_Normalize(t *testing.T) {
	camel := RefreshResponse{AccessToken: "a2", RefreshToken: "r2"}
	assert.Equal(t, TokenPair{AccessToken: "a2", RefreshToken: "r2"}, camel.Normalize())

	snake := RefreshResponse{AccessTokenSnake: "a3", RefreshTokenSnake: "r3"}
	assert.Equal(t, TokenPair{AccessToken: "a3", RefreshToken: "r3"}, snake.Normalize())

	both := RefreshResponse{AccessToken: "a4", AccessTokenSnake: "ignored"}
	assert.Equal(t, "a4", both.Normalize().AccessToken)
	assert.Empty(t, both.Normalize().RefreshToken)
}

func TestRecord_IsLoggedIn(t *testing.T) {
	assert.False(t, Record{}.IsLoggedIn())
	assert.False(t, Record{LoggedIn: true, AccessToken: "a"}.IsLoggedIn())
	assert.False(t, Record{AccessToken: "a", RefreshToken: "r"}.IsLoggedIn())
	assert.True(t, Record{AccessToken: "a", RefreshToken: "r"}.HasTokens())
	assert.True(t, Record{LoggedIn: true, AccessToken: "a", RefreshToken: "r"}.IsLoggedIn())
}

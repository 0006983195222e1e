package model

import (
	"errors"
	"strings"
)

var ErrUnrecognizedRole = errors.New("unrecognized role")

// Role is the internal representation of the server's free-text role.
type Role int

const (
	RoleUnrecognized Role = iota
	RoleStudent
	RoleTeacher
)

const (
	wireStudent  = "student"
	wireLecturer = "lecturer"
)

// ParseRole maps the wire role to a Role, ignoring case.
func ParseRole(s string) Role {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case wireStudent:
		return RoleStudent
	case wireLecturer:
		return RoleTeacher
	default:
		return RoleUnrecognized
	}
}

func (r Role) Valid() bool {
	return r == RoleStudent || r == RoleTeacher
}

func (r Role) String() string {
	switch r {
	case RoleStudent:
		return "STUDENT"
	case RoleTeacher:
		return "TEACHER"
	default:
		return "UNRECOGNIZED"
	}
}

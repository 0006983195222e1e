package area

import (
	"errors"
	"fmt"
	"zentry/internal/model"
)

var ErrNoArea = errors.New("no area for role")

// Area is the part of the app a role lands in after login.
type Area struct {
	Name string
	Menu []string
}

var areas = map[model.Role]Area{
	model.RoleStudent: {
		Name: "student",
		Menu: []string{"home", "lectures", "attendance_history"},
	},
	model.RoleTeacher: {
		Name: "lecture",
		Menu: []string{"home", "create_lecture", "manage_attendance", "reports"},
	},
}

func ForRole(role model.Role) (Area, error) {
	a, ok := areas[role]
	if !ok {
		return Area{}, fmt.Errorf("%w: %s", ErrNoArea, role)
	}
	return Area{Name: a.Name, Menu: append([]string(nil), a.Menu...)}, nil
}

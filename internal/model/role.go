package model

import "strings"

// Role: кто выполняет действие. Нулевое значение не является ролью.
type Role uint8

const (
	RoleUnknown Role = iota
	RoleClient
	RoleCS
	RoleSystem
)

var roleNames = map[Role]string{
	RoleClient: "client",
	RoleCS:     "cs",
	RoleSystem: "system",
}

func (r Role) String() string {
	if n, ok := roleNames[r]; ok {
		return n
	}
	return "unknown"
}

func (r Role) Valid() bool {
	_, ok := roleNames[r]
	return ok
}

// Human: роль принадлежит человеку, а не автоматике.
func (r Role) Human() bool {
	return r == RoleClient || r == RoleCS
}

// ParseRole принимает "client", "cs" или "system" без учёта регистра.
func ParseRole(s string) (Role, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for r, n := range roleNames {
		if n == s {
			return r, true
		}
	}
	return RoleUnknown, false
}

func (r Role) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

func (r *Role) UnmarshalText(b []byte) error {
	parsed, ok := ParseRole(string(b))
	if !ok {
		*r = RoleUnknown
		return nil
	}
	*r = parsed
	return nil
}

// Actor: от чьего имени выполняется команда.
type Actor struct {
	Name string
	Role Role
}

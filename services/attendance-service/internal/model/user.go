package model

type Role string

const (
	RoleAdmin      Role = "admin"
	RolePastor     Role = "pastor"
	RoleVoluntario Role = "voluntario"
)

func ParseRole(s string) (Role, bool) {
	switch Role(s) {
	case RoleAdmin, RolePastor, RoleVoluntario:
		return Role(s), true
	}
	return "", false
}

// User is a stored account. EmailOrPhone is the unique login key.
type User struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	EmailOrPhone string `json:"emailOrPhone"`
	Password     string `json:"password,omitempty"`
	Role         Role   `json:"role"`
	Avatar       string `json:"avatar"`
}

// Public strips the credential. Accounts stored without a role read as voluntario.
func (u User) Public() User {
	u.Password = ""
	if u.Role == "" {
		u.Role = RoleVoluntario
	}
	return u
}

func CloneUsers(in []User) []User {
	out := make([]User, len(in))
	copy(out, in)
	return out
}

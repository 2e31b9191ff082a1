package core

// User is an identity bound to a session.
type User struct {
	Login    string
	Password string
}

// Equal reports whether both login and password match.
func (u *User) Equal(other *User) bool {
	if u == nil || other == nil {
		return u == other
	}
	return u.Login == other.Login && u.Password == other.Password
}

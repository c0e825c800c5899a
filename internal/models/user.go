package models

// User is a registered account. The password column only ever holds a bcrypt hash.
type User struct {
	ID           int    `json:"user_id"`
	Username     string `json:"username"`
	PasswordHash string `json:"-"` // don’t expose hash
}

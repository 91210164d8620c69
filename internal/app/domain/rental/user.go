package rental

import (
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// ErrEmptyPassword is returned when a blank password is set.
var ErrEmptyPassword = errors.New("password cannot be empty")

// User owns places and reviews. Password only ever holds a bcrypt hash.
type User struct {
	Base
	Email     string `json:"email" db:"email"`
	Password  string `json:"password" db:"password"`
	FirstName string `json:"first_name" db:"first_name"`
	LastName  string `json:"last_name" db:"last_name"`
}

func (*User) Kind() Kind { return KindUser }
func (*User) ParentID(Kind) string { return "" }

// SetPassword hashes plain and stores the hash. Every call rehashes, so
// setting the same password twice yields two different stored values.
func (u *User) SetPassword(plain string) error {
	if strings.TrimSpace(plain) == "" {
		return ErrEmptyPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.Password = string(hash)
	return nil
}

// CheckPassword reports whether plain matches the stored hash.
func (u *User) CheckPassword(plain string) bool {
	if u.Password == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(plain)) == nil
}

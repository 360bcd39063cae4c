package models

import (
	"strings"
	"time"

	dErrors "clinic/pkg/domain-errors"
)

// User is a principal allowed to obtain access tokens.
type User struct {
	Username     string
	PasswordHash string
	CreatedAt    time.Time
}

// Credentials are the username/password pair supplied at registration and login.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

const (
	maxUsernameLength = 64
	// bcrypt ignores input beyond 72 bytes.
	maxPasswordLength = 72
)

// Validate implements httputil.Validatable. It trims the username in place.
func (c *Credentials) Validate() error {
	if c == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	c.Username = strings.TrimSpace(c.Username)
	if c.Username == "" {
		return dErrors.New(dErrors.CodeBadRequest, "username is required")
	}
	if len(c.Username) > maxUsernameLength {
		return dErrors.New(dErrors.CodeBadRequest, "username is too long")
	}
	if c.Password == "" {
		return dErrors.New(dErrors.CodeBadRequest, "password is required")
	}
	if len(c.Password) > maxPasswordLength {
		return dErrors.New(dErrors.CodeBadRequest, "password is too long")
	}
	return nil
}

// RegisterResult is returned after a successful registration.
type RegisterResult struct {
	Username string `json:"username"`
	Message  string `json:"message"`
}

// TokenResult is the bearer credential issued by POST /token.
type TokenResult struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

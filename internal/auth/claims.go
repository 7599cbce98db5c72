package auth

import "github.com/golang-jwt/jwt/v5"

type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

// Claims are the only supported JWT claims shape for this service.
// Multi-tenant invariant: AccountID must be present on every token; all
// API reads and writes are scoped to it.
type Claims struct {
	jwt.RegisteredClaims

	AccountID string    `json:"account_id"`
	TokenType TokenType `json:"token_type"`
}

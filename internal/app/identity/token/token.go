package token

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// InviteClaims binds an email address to permission-to-register.
type InviteClaims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
}

// AccessClaims authenticate a request as the user in Subject.
type AccessClaims struct {
	jwt.RegisteredClaims
}

// RefreshClaims authorize minting new access tokens for the user in Subject.
// They carry no expiry; client retention is bounded by cookie lifetime only.
type RefreshClaims struct {
	jwt.RegisteredClaims
}

// TokenUtil mints and verifies the three token classes. Each class is signed
// with its own secret, so a token of one class never verifies as another.
type TokenUtil interface {
	IssueInvite(email string) (token string, exp time.Time, err error)
	IssueAccessToken(userID uuid.UUID) (token string, exp time.Time, err error)
	IssueRefreshToken(userID uuid.UUID) (token string, err error)
	VerifyInvite(token string) (InviteClaims, error)
	VerifyAccess(token string) (AccessClaims, error)
	VerifyRefresh(token string) (RefreshClaims, error)
}

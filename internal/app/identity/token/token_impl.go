package token

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	customErrors "github.com/nordfeed/identity-service/internal/domain/identity/errors"
	"github.com/nordfeed/identity-service/internal/infra/config"
)

type TokenUtilImpl struct {
	inviteSecret  []byte
	accessSecret  []byte
	refreshSecret []byte
	inviteTTL     time.Duration
	accessTTL     time.Duration
}

func NewTokenUtil(cfg *config.Config) (*TokenUtilImpl, error) {
	if cfg.InviteTokenSecret == "" || cfg.AccessTokenSecret == "" || cfg.RefreshTokenSecret == "" {
		return nil, customErrors.WrapInternal(errors.New("empty token secret"), "NewTokenUtil")
	}

	return &TokenUtilImpl{
		inviteSecret:  []byte(cfg.InviteTokenSecret),
		accessSecret:  []byte(cfg.AccessTokenSecret),
		refreshSecret: []byte(cfg.RefreshTokenSecret),
		inviteTTL:     cfg.InviteTokenTTL,
		accessTTL:     cfg.AccessTokenTTL,
	}, nil
}

func (t *TokenUtilImpl) IssueInvite(email string) (string, time.Time, error) {
	now := time.Now()

	claims := InviteClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.inviteTTL)),
		},
		Email: email,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.inviteSecret)
	if err != nil {
		return "", time.Time{}, customErrors.WrapInternal(err, "sign invite token")
	}

	return signed, claims.ExpiresAt.Time, nil
}

func (t *TokenUtilImpl) IssueAccessToken(userID uuid.UUID) (string, time.Time, error) {
	now := time.Now()

	claims := AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.accessTTL)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.accessSecret)
	if err != nil {
		return "", time.Time{}, customErrors.WrapInternal(err, "sign access token")
	}

	return signed, claims.ExpiresAt.Time, nil
}

// IssueRefreshToken deliberately sets no exp claim: the signature stays valid
// for the token's whole life, only the cookie expiry limits client retention.
func (t *TokenUtilImpl) IssueRefreshToken(userID uuid.UUID) (string, error) {
	claims := RefreshClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  userID.String(),
			IssuedAt: jwt.NewNumericDate(time.Now()),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.refreshSecret)
	if err != nil {
		return "", customErrors.WrapInternal(err, "sign refresh token")
	}

	return signed, nil
}

func (t *TokenUtilImpl) VerifyInvite(raw string) (InviteClaims, error) {
	var claims InviteClaims
	if err := t.verify(raw, &claims, t.inviteSecret); err != nil {
		return InviteClaims{}, err
	}
	return claims, nil
}

func (t *TokenUtilImpl) VerifyAccess(raw string) (AccessClaims, error) {
	var claims AccessClaims
	if err := t.verify(raw, &claims, t.accessSecret); err != nil {
		return AccessClaims{}, err
	}
	return claims, nil
}

func (t *TokenUtilImpl) VerifyRefresh(raw string) (RefreshClaims, error) {
	var claims RefreshClaims
	if err := t.verify(raw, &claims, t.refreshSecret); err != nil {
		return RefreshClaims{}, err
	}
	return claims, nil
}

// verify pins the algorithm and checks the signature, and the expiry when an
// exp claim is present. A wrong secret and a tampered token are
// indistinguishable on purpose.
func (t *TokenUtilImpl) verify(raw string, claims jwt.Claims, secret []byte) error {
	token, err := jwt.ParseWithClaims(raw, claims, func(tok *jwt.Token) (interface{}, error) {
		if tok.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, customErrors.ErrInvalidToken
		}
		return secret, nil
	})

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return customErrors.ErrTokenExpired
		}
		return customErrors.ErrInvalidToken
	}

	if !token.Valid {
		return customErrors.ErrInvalidToken
	}

	return nil
}

package service

import (
	"context"
	"errors"
	"net/url"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/nordfeed/identity-service/internal/adapters/transport/http/dto"
	"github.com/nordfeed/identity-service/internal/app/identity/hash"
	"github.com/nordfeed/identity-service/internal/app/identity/token"
	customErrors "github.com/nordfeed/identity-service/internal/domain/identity/errors"
	"github.com/nordfeed/identity-service/internal/domain/identity/model"
	"github.com/nordfeed/identity-service/internal/domain/identity/notify"
	"github.com/nordfeed/identity-service/internal/domain/identity/repo"
	"github.com/nordfeed/identity-service/internal/infra/config"
)

type identityService struct {
	userRepo repo.UserRepo
	gateway  notify.Gateway
	tokens   token.TokenUtil
	hasher   hash.Hasher
	cfg      *config.Config
	v        *validator.Validate
}

type Service interface {
	Invite(context.Context, dto.InviteDTO) (model.Invite, error)
	Register(context.Context, dto.RegisterDTO) (model.User, error)
	Login(context.Context, dto.LoginDTO) (model.TokenPair, error)
	Refresh(context.Context, dto.RefreshDTO) (model.AccessGrant, error)
}

func New(
	ur repo.UserRepo,
	gw notify.Gateway,
	tu token.TokenUtil,
	h hash.Hasher,
	cfg *config.Config,
	v *validator.Validate,
) Service {
	return &identityService{
		userRepo: ur, gateway: gw, tokens: tu, hasher: h, cfg: cfg, v: v,
	}
}

func (s *identityService) Invite(ctx context.Context, in dto.InviteDTO) (model.Invite, error) {
	if err := s.v.Struct(in); err != nil {
		return model.Invite{}, customErrors.NewInvalidArgument(err.Error())
	}

	tok, exp, err := s.tokens.IssueInvite(in.Email)
	if err != nil {
		return model.Invite{}, customErrors.WrapInternal(err, "IssueInvite")
	}

	link := s.cfg.FrontendURL + "/register?inviteToken=" + url.QueryEscape(tok)

	// Delivery failure is the authoritative outcome, so the response waits on
	// the gateway. A hung SMTP dialog must not pin the handler forever.
	sendCtx, cancel := context.WithTimeout(ctx, s.cfg.MailTimeout)
	defer cancel()
	if err := s.gateway.SendInvite(sendCtx, in.Email, link); err != nil {
		return model.Invite{}, customErrors.WrapNotification(err, "SendInvite")
	}

	return model.Invite{Email: in.Email, Token: tok, ExpiresAt: exp}, nil
}

func (s *identityService) Register(ctx context.Context, in dto.RegisterDTO) (model.User, error) {
	// Token first: a request without a usable invite never learns which body
	// fields were missing.
	if in.InviteToken == "" {
		return model.User{}, customErrors.ErrInvalidToken
	}
	claims, err := s.tokens.VerifyInvite(in.InviteToken)
	if err != nil {
		return model.User{}, err
	}

	if err := s.v.Struct(in); err != nil {
		return model.User{}, customErrors.NewInvalidArgument(err.Error())
	}

	// Case-sensitive comparison binds the invite to exactly one address.
	if claims.Email != in.Email {
		return model.User{}, customErrors.ErrInvalidToken
	}

	passwordHash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return model.User{}, customErrors.WrapInternal(err, "Register")
	}

	user := model.User{
		ID:           uuid.New(),
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now(),
		EditedAt:     nil,
	}

	// Uniqueness is the store's call; two racing registrations resolve on the
	// email constraint and the loser surfaces here.
	if _, err := s.userRepo.CreateUser(ctx, user); err != nil {
		return model.User{}, customErrors.WrapStorage(err, "CreateUser")
	}

	return user, nil
}

func (s *identityService) Login(ctx context.Context, in dto.LoginDTO) (model.TokenPair, error) {
	if err := s.v.Struct(in); err != nil {
		return model.TokenPair{}, customErrors.NewInvalidArgument(err.Error())
	}

	user, err := s.userRepo.GetUserByEmail(ctx, in.Email)
	switch {
	case errors.Is(err, customErrors.ErrNotFound):
		return model.TokenPair{}, customErrors.ErrInvalidCredentials
	case err != nil:
		return model.TokenPair{}, customErrors.WrapStorage(err, "Login")
	}

	ok, err := s.hasher.Verify(in.Password, user.PasswordHash)
	if err != nil {
		return model.TokenPair{}, customErrors.WrapInternal(err, "Login")
	}
	if !ok {
		return model.TokenPair{}, customErrors.ErrInvalidCredentials
	}

	return s.issueTokens(user.ID)
}

func (s *identityService) Refresh(ctx context.Context, in dto.RefreshDTO) (model.AccessGrant, error) {
	if in.RefreshToken == "" {
		return model.AccessGrant{}, customErrors.ErrInvalidToken
	}

	claims, err := s.tokens.VerifyRefresh(in.RefreshToken)
	if err != nil {
		return model.AccessGrant{}, customErrors.ErrInvalidToken
	}
	if claims.Subject == "" {
		return model.AccessGrant{}, customErrors.ErrInvalidToken
	}
	uid, err := uuid.Parse(claims.Subject)
	if err != nil {
		return model.AccessGrant{}, customErrors.ErrInvalidToken
	}

	// The presented refresh token stays valid; only a new access token is
	// minted here.
	at, atExp, err := s.tokens.IssueAccessToken(uid)
	if err != nil {
		return model.AccessGrant{}, customErrors.WrapInternal(err, "IssueAccessToken")
	}

	return model.AccessGrant{
		AccessToken: at,
		AccessTTL:   time.Until(atExp),
		UserID:      uid,
	}, nil
}

func (s *identityService) issueTokens(uid uuid.UUID) (model.TokenPair, error) {
	at, atExp, err := s.tokens.IssueAccessToken(uid)
	if err != nil {
		return model.TokenPair{}, customErrors.WrapInternal(err, "IssueAccessToken")
	}
	rt, err := s.tokens.IssueRefreshToken(uid)
	if err != nil {
		return model.TokenPair{}, customErrors.WrapInternal(err, "IssueRefreshToken")
	}

	return model.TokenPair{
		AccessToken:  at,
		RefreshToken: rt,
		AccessTTL:    time.Until(atExp),
		RefreshTTL:   s.cfg.RefreshCookieTTL,
		UserID:       uid,
	}, nil
}

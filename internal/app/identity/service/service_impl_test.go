package service_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/nordfeed/identity-service/internal/adapters/transport/http/dto"
	"github.com/nordfeed/identity-service/internal/app/identity/hash"
	appsvc "github.com/nordfeed/identity-service/internal/app/identity/service"
	"github.com/nordfeed/identity-service/internal/app/identity/token"
	customErrors "github.com/nordfeed/identity-service/internal/domain/identity/errors"
	"github.com/nordfeed/identity-service/internal/domain/identity/model"
	"github.com/nordfeed/identity-service/internal/infra/config"
)

/* ──────────────────────────────── stubs ──────────────────────────────── */

type userRepoStub struct {
	mu      sync.Mutex
	byEmail map[string]model.User
	byID    map[uuid.UUID]model.User
}

func newUserRepoStub() *userRepoStub {
	return &userRepoStub{
		byEmail: make(map[string]model.User),
		byID:    make(map[uuid.UUID]model.User),
	}
}

func (u *userRepoStub) CreateUser(_ context.Context, m model.User) (uuid.UUID, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if _, ok := u.byEmail[m.Email]; ok {
		return uuid.Nil, customErrors.ErrAlreadyExists
	}
	u.byEmail[m.Email] = m
	u.byID[m.ID] = m
	return m.ID, nil
}

func (u *userRepoStub) GetUserByEmail(_ context.Context, email string) (model.User, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	m, ok := u.byEmail[email]
	if !ok {
		return model.User{}, customErrors.ErrNotFound
	}
	return m, nil
}

func (u *userRepoStub) GetUserByID(_ context.Context, id uuid.UUID) (model.User, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	m, ok := u.byID[id]
	if !ok {
		return model.User{}, customErrors.ErrNotFound
	}
	return m, nil
}

type gatewayStub struct {
	mu    sync.Mutex
	sent  []string // "email|link"
	fail  bool
	block bool
}

func (g *gatewayStub) SendInvite(ctx context.Context, email, link string) error {
	if g.block {
		<-ctx.Done()
		return ctx.Err()
	}
	if g.fail {
		return errors.New("smtp: connection refused")
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sent = append(g.sent, email+"|"+link)
	return nil
}

/* ───────────────────────────── helpers ───────────────────────────── */

func testConfig() *config.Config {
	return &config.Config{
		InviteTokenSecret:  "invite-secret",
		AccessTokenSecret:  "access-secret",
		RefreshTokenSecret: "refresh-secret",
		InviteTokenTTL:     15 * time.Minute,
		AccessTokenTTL:     15 * time.Minute,
		RefreshCookieTTL:   7 * 24 * time.Hour,
		HashMemory:         8 * 1024,
		HashIterations:     1,
		HashParallelism:    1,
		HashSaltLength:     16,
		HashKeyLength:      32,
		MailTimeout:        100 * time.Millisecond,
		FrontendURL:        "https://app.example.com",
	}
}

func newSvc(t *testing.T, gw *gatewayStub) (appsvc.Service, *userRepoStub, token.TokenUtil) {
	t.Helper()

	cfg := testConfig()
	ur := newUserRepoStub()
	tu, err := token.NewTokenUtil(cfg)
	require.NoError(t, err)
	h := hash.NewArgon2Hasher(cfg)

	return appsvc.New(ur, gw, tu, h, cfg, validator.New()), ur, tu
}

func mustInvite(t *testing.T, svc appsvc.Service, email string) string {
	t.Helper()
	inv, err := svc.Invite(context.Background(), dto.InviteDTO{Email: email})
	require.NoError(t, err)
	return inv.Token
}

/* ─────────────────────────────── invite ─────────────────────────────── */

func TestInvite_Success(t *testing.T) {
	gw := &gatewayStub{}
	svc, _, tu := newSvc(t, gw)

	inv, err := svc.Invite(context.Background(), dto.InviteDTO{Email: "a@x.com"})
	require.NoError(t, err)
	require.NotEmpty(t, inv.Token)
	require.WithinDuration(t, time.Now().Add(15*time.Minute), inv.ExpiresAt, time.Minute)

	claims, err := tu.VerifyInvite(inv.Token)
	require.NoError(t, err)
	require.Equal(t, "a@x.com", claims.Email)

	require.Len(t, gw.sent, 1)
	require.Contains(t, gw.sent[0], "a@x.com|https://app.example.com/register?inviteToken=")
}

func TestInvite_MissingEmail(t *testing.T) {
	svc, _, _ := newSvc(t, &gatewayStub{})

	_, err := svc.Invite(context.Background(), dto.InviteDTO{})
	require.True(t, customErrors.IsInvalidArgument(err))
}

func TestInvite_DeliveryFailure(t *testing.T) {
	svc, _, _ := newSvc(t, &gatewayStub{fail: true})

	_, err := svc.Invite(context.Background(), dto.InviteDTO{Email: "a@x.com"})
	require.True(t, customErrors.IsNotification(err))
}

func TestInvite_GatewayTimeout(t *testing.T) {
	svc, _, _ := newSvc(t, &gatewayStub{block: true})

	start := time.Now()
	_, err := svc.Invite(context.Background(), dto.InviteDTO{Email: "a@x.com"})
	require.True(t, customErrors.IsNotification(err))
	require.Less(t, time.Since(start), time.Second, "a hung gateway must not pin the handler")
}

/* ────────────────────────────── register ────────────────────────────── */

func TestRegister_Success(t *testing.T) {
	svc, ur, _ := newSvc(t, &gatewayStub{})
	tok := mustInvite(t, svc, "a@x.com")

	user, err := svc.Register(context.Background(), dto.RegisterDTO{
		InviteToken: tok,
		Username:    "alice",
		Email:       "a@x.com",
		Password:    "p@ss1",
	})
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, user.ID)
	require.Nil(t, user.EditedAt)
	require.False(t, user.CreatedAt.IsZero())
	require.NotEqual(t, "p@ss1", user.PasswordHash)

	stored, err := ur.GetUserByEmail(context.Background(), "a@x.com")
	require.NoError(t, err)
	require.Equal(t, user.ID, stored.ID)
}

func TestRegister_MissingToken(t *testing.T) {
	svc, _, _ := newSvc(t, &gatewayStub{})

	_, err := svc.Register(context.Background(), dto.RegisterDTO{
		Username: "alice", Email: "a@x.com", Password: "p@ss1",
	})
	require.True(t, customErrors.IsInvalidToken(err))
}

func TestRegister_GarbageToken(t *testing.T) {
	svc, _, _ := newSvc(t, &gatewayStub{})

	_, err := svc.Register(context.Background(), dto.RegisterDTO{
		InviteToken: "garbage",
		Username:    "alice", Email: "a@x.com", Password: "p@ss1",
	})
	require.True(t, customErrors.IsInvalidToken(err))
}

func TestRegister_ExpiredToken(t *testing.T) {
	cfg := testConfig()
	cfg.InviteTokenTTL = -time.Second
	expiredUtil, err := token.NewTokenUtil(cfg)
	require.NoError(t, err)
	tok, _, err := expiredUtil.IssueInvite("a@x.com")
	require.NoError(t, err)

	svc, _, _ := newSvc(t, &gatewayStub{})
	_, err = svc.Register(context.Background(), dto.RegisterDTO{
		InviteToken: tok,
		Username:    "alice", Email: "a@x.com", Password: "p@ss1",
	})
	require.True(t, customErrors.IsTokenExpired(err))
}

func TestRegister_MissingFields(t *testing.T) {
	svc, _, _ := newSvc(t, &gatewayStub{})
	tok := mustInvite(t, svc, "a@x.com")

	cases := []dto.RegisterDTO{
		{InviteToken: tok, Email: "a@x.com", Password: "p@ss1"},  // no username
		{InviteToken: tok, Username: "alice", Password: "p@ss1"}, // no email
		{InviteToken: tok, Username: "alice", Email: "a@x.com"},  // no password
	}
	for _, in := range cases {
		_, err := svc.Register(context.Background(), in)
		require.True(t, customErrors.IsInvalidArgument(err), "case %+v", in)
	}
}

func TestRegister_EmailMismatch(t *testing.T) {
	svc, _, _ := newSvc(t, &gatewayStub{})
	tok := mustInvite(t, svc, "a@x.com")

	_, err := svc.Register(context.Background(), dto.RegisterDTO{
		InviteToken: tok,
		Username:    "alice", Email: "b@x.com", Password: "p@ss1",
	})
	require.True(t, customErrors.IsInvalidToken(err))

	// same address, different case: the comparison is exact
	_, err = svc.Register(context.Background(), dto.RegisterDTO{
		InviteToken: tok,
		Username:    "alice", Email: "A@x.com", Password: "p@ss1",
	})
	require.True(t, customErrors.IsInvalidToken(err))
}

func TestRegister_DuplicateEmail(t *testing.T) {
	svc, _, _ := newSvc(t, &gatewayStub{})
	tok := mustInvite(t, svc, "a@x.com")

	in := dto.RegisterDTO{
		InviteToken: tok,
		Username:    "alice", Email: "a@x.com", Password: "p@ss1",
	}
	_, err := svc.Register(context.Background(), in)
	require.NoError(t, err)

	// invite tokens are verified, not consumed, so the second attempt reaches
	// the store and loses on the unique constraint
	_, err = svc.Register(context.Background(), in)
	require.True(t, customErrors.IsStorage(err))
}

func TestRegister_ConcurrentSameEmail(t *testing.T) {
	svc, _, _ := newSvc(t, &gatewayStub{})
	tok := mustInvite(t, svc, "a@x.com")

	const n = 8
	errs := make(chan error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Register(context.Background(), dto.RegisterDTO{
				InviteToken: tok,
				Username:    "alice", Email: "a@x.com", Password: "p@ss1",
			})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var okCount, storageCount int
	for err := range errs {
		switch {
		case err == nil:
			okCount++
		case customErrors.IsStorage(err):
			storageCount++
		default:
			t.Fatalf("unexpected error kind: %v", err)
		}
	}
	require.Equal(t, 1, okCount, "at most one registration wins")
	require.Equal(t, n-1, storageCount)
}

/* ─────────────────────────────── login ─────────────────────────────── */

func registerAlice(t *testing.T, svc appsvc.Service) model.User {
	t.Helper()
	tok := mustInvite(t, svc, "a@x.com")
	user, err := svc.Register(context.Background(), dto.RegisterDTO{
		InviteToken: tok,
		Username:    "alice", Email: "a@x.com", Password: "p@ss1",
	})
	require.NoError(t, err)
	return user
}

func TestLogin_Success(t *testing.T) {
	svc, _, tu := newSvc(t, &gatewayStub{})
	user := registerAlice(t, svc)

	pair, err := svc.Login(context.Background(), dto.LoginDTO{Email: "a@x.com", Password: "p@ss1"})
	require.NoError(t, err)
	require.Equal(t, user.ID, pair.UserID)

	ac, err := tu.VerifyAccess(pair.AccessToken)
	require.NoError(t, err)
	require.Equal(t, user.ID.String(), ac.Subject)

	rc, err := tu.VerifyRefresh(pair.RefreshToken)
	require.NoError(t, err)
	require.Equal(t, user.ID.String(), rc.Subject)

	require.InDelta(t, (15 * time.Minute).Seconds(), pair.AccessTTL.Seconds(), 60)
	require.Equal(t, 7*24*time.Hour, pair.RefreshTTL)
}

func TestLogin_UnknownEmail(t *testing.T) {
	svc, _, _ := newSvc(t, &gatewayStub{})
	registerAlice(t, svc)

	_, err := svc.Login(context.Background(), dto.LoginDTO{Email: "nobody@x.com", Password: "p@ss1"})
	require.True(t, customErrors.IsInvalidCredentials(err))
}

func TestLogin_WrongPassword(t *testing.T) {
	svc, _, _ := newSvc(t, &gatewayStub{})
	registerAlice(t, svc)

	_, err := svc.Login(context.Background(), dto.LoginDTO{Email: "a@x.com", Password: "wrong"})
	require.True(t, customErrors.IsInvalidCredentials(err))
}

func TestLogin_MissingFields(t *testing.T) {
	svc, _, _ := newSvc(t, &gatewayStub{})

	_, err := svc.Login(context.Background(), dto.LoginDTO{Email: "a@x.com"})
	require.True(t, customErrors.IsInvalidArgument(err))

	_, err = svc.Login(context.Background(), dto.LoginDTO{Password: "p@ss1"})
	require.True(t, customErrors.IsInvalidArgument(err))
}

/* ────────────────────────────── refresh ────────────────────────────── */

func TestRefresh_Success_NoRotation(t *testing.T) {
	svc, _, tu := newSvc(t, &gatewayStub{})
	registerAlice(t, svc)

	pair, err := svc.Login(context.Background(), dto.LoginDTO{Email: "a@x.com", Password: "p@ss1"})
	require.NoError(t, err)

	grant, err := svc.Refresh(context.Background(), dto.RefreshDTO{RefreshToken: pair.RefreshToken})
	require.NoError(t, err)
	require.Equal(t, pair.UserID, grant.UserID)

	ac, err := tu.VerifyAccess(grant.AccessToken)
	require.NoError(t, err)
	require.Equal(t, pair.UserID.String(), ac.Subject)

	// the presented refresh token is still independently valid
	_, err = tu.VerifyRefresh(pair.RefreshToken)
	require.NoError(t, err)

	grant2, err := svc.Refresh(context.Background(), dto.RefreshDTO{RefreshToken: pair.RefreshToken})
	require.NoError(t, err)
	require.Equal(t, pair.UserID, grant2.UserID)
}

func TestRefresh_MissingToken(t *testing.T) {
	svc, _, _ := newSvc(t, &gatewayStub{})

	_, err := svc.Refresh(context.Background(), dto.RefreshDTO{})
	require.True(t, customErrors.IsInvalidToken(err))
}

func TestRefresh_WrongSecret(t *testing.T) {
	svc, _, _ := newSvc(t, &gatewayStub{})

	other := testConfig()
	other.RefreshTokenSecret = "another-secret"
	otherUtil, err := token.NewTokenUtil(other)
	require.NoError(t, err)
	rt, err := otherUtil.IssueRefreshToken(uuid.New())
	require.NoError(t, err)
	require.Equal(t, 3, strings.Count(rt, ".")+1, "syntactically a JWT")

	_, err = svc.Refresh(context.Background(), dto.RefreshDTO{RefreshToken: rt})
	require.True(t, customErrors.IsInvalidToken(err))
}

func TestRefresh_MissingSubject(t *testing.T) {
	svc, _, _ := newSvc(t, &gatewayStub{})

	// correctly signed, but no subject claim
	rt, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		IssuedAt: jwt.NewNumericDate(time.Now()),
	}).SignedString([]byte("refresh-secret"))
	require.NoError(t, err)

	_, err = svc.Refresh(context.Background(), dto.RefreshDTO{RefreshToken: rt})
	require.True(t, customErrors.IsInvalidToken(err))
}

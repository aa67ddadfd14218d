package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/keurgui/access-gateway-go/internal/audit"
	apperrors "github.com/keurgui/access-gateway-go/internal/errors"
	"github.com/keurgui/access-gateway-go/internal/model"
	"github.com/keurgui/access-gateway-go/internal/repository"
	"github.com/keurgui/access-gateway-go/internal/upstream"
	"github.com/keurgui/access-gateway-go/internal/util"
)

type LoginResult struct {
	Token     string    `json:"token"`
	Username  string    `json:"username"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// SessionService exchanges resident credentials for gateway sessions. The
// upstream access token lives only in the session row; callers hold the
// gateway token, which is persisted as a hash.
type SessionService struct {
	sessionRepo repository.SessionRepository
	auth        upstream.AuthService
	sessionTTL  time.Duration
}

func NewSessionService(
	sessionRepo repository.SessionRepository,
	auth upstream.AuthService,
	sessionTTL time.Duration,
) *SessionService {
	return &SessionService{
		sessionRepo: sessionRepo,
		auth:        auth,
		sessionTTL:  sessionTTL,
	}
}

func (s *SessionService) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, apperrors.MissingRequired("username and password")
	}

	upstreamToken, err := s.auth.Login(ctx, username, password)
	if err != nil {
		audit.Log(ctx, audit.Event{Type: audit.EventLoginFailure, Username: username})
		if apperrors.IsAuth(err) {
			return nil, apperrors.Unauthorized("Invalid username or password")
		}
		return nil, err
	}

	token, err := util.GenerateToken()
	if err != nil {
		return nil, fmt.Errorf("generate token: %w", err)
	}

	session, err := s.sessionRepo.Create(ctx, model.CreateSessionParams{
		TokenHash:     util.HashToken(token),
		Username:      username,
		UpstreamToken: upstreamToken,
		ExpiresAt:     time.Now().Add(s.sessionTTL),
	})
	if err != nil {
		return nil, apperrors.Database(err)
	}

	log.Info().
		Str("sessionId", session.ID).
		Str("username", username).
		Time("expiresAt", session.ExpiresAt).
		Msg("session created")

	audit.Log(ctx, audit.Event{Type: audit.EventLoginSuccess, Username: username})

	return &LoginResult{
		Token:     token,
		Username:  session.Username,
		ExpiresAt: session.ExpiresAt,
	}, nil
}

func (s *SessionService) Register(ctx context.Context, params upstream.RegisterParams) (*model.UserSummary, error) {
	params.Name = strings.TrimSpace(params.Name)
	params.Email = strings.TrimSpace(params.Email)
	if params.Name == "" {
		return nil, apperrors.MissingRequired("name")
	}
	if params.Email == "" {
		return nil, apperrors.MissingRequired("email")
	}
	if len(params.Password) < 8 {
		return nil, apperrors.InvalidInput("password", "must be at least 8 characters")
	}
	if !util.IsValidPhone(params.Phone) {
		return nil, apperrors.InvalidInput("phone number", "unrecognized format")
	}

	user, err := s.auth.Register(ctx, params)
	if err != nil {
		return nil, err
	}

	audit.Log(ctx, audit.Event{Type: audit.EventRegister, Username: params.Email})
	return user, nil
}

// Authenticate resolves a gateway bearer token to its session. An unknown
// or expired token yields a token-expired error so clients re-login.
func (s *SessionService) Authenticate(ctx context.Context, token string) (*model.Session, error) {
	if token == "" {
		return nil, apperrors.Unauthorized("Missing authentication token")
	}

	session, err := s.sessionRepo.FindByTokenHash(ctx, util.HashToken(token))
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if session == nil {
		return nil, apperrors.TokenExpired()
	}
	return session, nil
}

func (s *SessionService) Logout(ctx context.Context, token string) error {
	if err := s.sessionRepo.DeleteByTokenHash(ctx, util.HashToken(token)); err != nil {
		return apperrors.Database(err)
	}
	audit.Log(ctx, audit.Event{Type: audit.EventLogout})
	return nil
}

// InvalidateByUpstreamToken drops every session whose upstream token was
// rejected by the record store.
func (s *SessionService) InvalidateByUpstreamToken(ctx context.Context, upstreamToken string) error {
	n, err := s.sessionRepo.DeleteByUpstreamToken(ctx, upstreamToken)
	if err != nil {
		return apperrors.Database(err)
	}
	if n > 0 {
		log.Warn().
			Int64("sessions", n).
			Str("token", util.MaskToken(upstreamToken)).
			Msg("sessions invalidated after upstream auth failure")
		audit.Log(ctx, audit.Event{
			Type:    audit.EventSessionInvalidate,
			Details: map[string]interface{}{"sessions": n},
		})
	}
	return nil
}

// DeleteExpired removes sessions past their expiry. Called by the cleanup
// job.
func (s *SessionService) DeleteExpired(ctx context.Context) (int64, error) {
	return s.sessionRepo.DeleteExpired(ctx)
}

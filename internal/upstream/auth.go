package upstream

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/keurgui/access-gateway-go/internal/model"
)

// AuthService is the remote service that authenticates residents and
// registers new accounts.
type AuthService interface {
	Login(ctx context.Context, username, password string) (string, error)
	Register(ctx context.Context, params RegisterParams) (*model.UserSummary, error)
}

// RegisterParams are the fields of a new resident account.
type RegisterParams struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Phone    string `json:"phone_number"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

type authClient struct {
	*Client
}

// NewAuthService builds the HTTP client for the auth service API.
func NewAuthService(baseURL string, timeout time.Duration) AuthService {
	return &authClient{NewClient(baseURL, timeout)}
}

// Login exchanges credentials for an upstream access token. The auth
// service takes form-encoded credentials, not JSON.
func (c *authClient) Login(ctx context.Context, username, password string) (string, error) {
	form := url.Values{
		"username": {username},
		"password": {password},
	}

	var resp tokenResponse
	if err := c.doForm(ctx, "/auth/login", form, &resp); err != nil {
		return "", err
	}
	return resp.AccessToken, nil
}

func (c *authClient) Register(ctx context.Context, params RegisterParams) (*model.UserSummary, error) {
	var user model.UserSummary
	if err := c.do(ctx, http.MethodPost, "/users/register", nil, params, "", &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// Package upstream holds the HTTP clients for the remote collaborators:
// the record store that owns access records and the auth service that
// issues resident tokens. Both speak JSON over authenticated HTTPS; non-2xx
// responses carry a machine-readable `detail` field that is mapped onto the
// gateway's error taxonomy here, so nothing above this package inspects
// HTTP status codes.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	apperrors "github.com/keurgui/access-gateway-go/internal/errors"
)

type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

type errorBody struct {
	Detail string `json:"detail"`
}

// do performs one round trip. A non-nil body is JSON-encoded; a non-empty
// token is sent as a bearer credential; a non-nil out receives the decoded
// 2xx response body.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any, token string, out any) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return apperrors.Internal("encode request").WithCause(err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return apperrors.Internal("create request").WithCause(err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	return c.send(req, out)
}

// doForm posts form-encoded values, which is how the auth service expects
// login credentials.
func (c *Client) doForm(ctx context.Context, path string, form url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path,
		strings.NewReader(form.Encode()))
	if err != nil {
		return apperrors.Internal("create request").WithCause(err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	return c.send(req, out)
}

func (c *Client) send(req *http.Request, out any) error {
	start := time.Now()

	resp, err := c.http.Do(req)
	elapsed := time.Since(start)
	if err != nil {
		log.Error().
			Err(err).
			Str("method", req.Method).
			Str("url", req.URL.String()).
			Dur("elapsed", elapsed).
			Msg("upstream request error")
		return apperrors.Upstream("", err)
	}
	defer resp.Body.Close()

	log.Debug().
		Str("method", req.Method).
		Str("path", req.URL.Path).
		Int("status", resp.StatusCode).
		Dur("elapsed", elapsed).
		Msg("upstream request")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var detail errorBody
		_ = json.NewDecoder(resp.Body).Decode(&detail)
		return statusToError(resp.StatusCode, detail.Detail)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return apperrors.Upstream("", err)
		}
	}
	return nil
}

// statusToError translates an upstream status into the gateway taxonomy.
// The mapping is status-code based throughout; response text is carried as
// the user-facing detail, never matched against.
func statusToError(status int, detail string) error {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		if detail == "" {
			detail = "Invalid or expired credentials"
		}
		return apperrors.Unauthorized(detail)
	case status == http.StatusNotFound:
		return apperrors.NotFound("Access record")
	case status == http.StatusConflict:
		if detail == "" {
			detail = "Resource"
		}
		return apperrors.AlreadyExists(detail)
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		if detail == "" {
			detail = "Invalid request"
		}
		return apperrors.ValidationError(detail)
	case status == http.StatusTooManyRequests:
		return apperrors.RateLimitExceeded()
	default:
		return apperrors.Upstream(detail, nil)
	}
}

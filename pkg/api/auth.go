package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/handicraft/storefront/pkg/identity"
)

// Credentials is the body of POST /auth/login.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Registration is the body of POST /auth/register.
type Registration struct {
	Name     string        `json:"name"`
	Email    string        `json:"email"`
	Password string        `json:"password"`
	Role     identity.Role `json:"role"`
}

// Session is what a successful login yields.
type Session struct {
	Token string            `json:"token"`
	User  identity.Identity `json:"user"`
}

// Login exchanges credentials for a bearer token and the user's identity.
// It does not arm the client; that is the session store's decision.
func (c *Client) Login(ctx context.Context, creds Credentials) (Session, error) {
	r, err := jsonRequest(http.MethodPost, "/auth/login", creds)
	if err != nil {
		return Session{}, err
	}
	body, err := c.do(ctx, r)
	if err != nil {
		return Session{}, err
	}

	// The token and user sit at the top level; some deployments nest them in data.
	var resp struct {
		envelope
		Session
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return Session{}, &NetworkError{Method: r.method, Path: r.path, Err: fmt.Errorf("decode login response: %w", err)}
	}
	if resp.Success != nil && !*resp.Success {
		return Session{}, classify(http.StatusOK, r.path, resp.Message, true)
	}

	sess := resp.Session
	if sess.Token == "" && len(resp.Data) > 0 {
		if err := json.Unmarshal(resp.Data, &sess); err != nil {
			return Session{}, &NetworkError{Method: r.method, Path: r.path, Err: fmt.Errorf("decode login data: %w", err)}
		}
	}
	if sess.Token == "" {
		return Session{}, &AuthError{Status: http.StatusOK, Message: ErrMissingToken.Error()}
	}
	if err := sess.User.Validate(); err != nil {
		return Session{}, &NetworkError{Method: r.method, Path: r.path, Err: err}
	}
	return sess, nil
}

// Register creates an account. It never signs the caller in.
func (c *Client) Register(ctx context.Context, reg Registration) error {
	r, err := jsonRequest(http.MethodPost, "/auth/register", reg)
	if err != nil {
		return err
	}
	return c.call(ctx, r, nil)
}

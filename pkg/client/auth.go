package client

import (
	"context"
	"fmt"
	"net/http"

	"github.com/residenciauni/residencia/pkg/contextkeys"
	"github.com/residenciauni/residencia/pkg/identity"
	"github.com/residenciauni/residencia/pkg/records"
)

// LoginRequest is the email/password login payload
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RegisterRequest creates a resident account
type RegisterRequest struct {
	FullName string `json:"fullName"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginUser struct {
	ID       string           `json:"_id"`
	AltID    string           `json:"id"`
	Role     string           `json:"role"`
	FullName string           `json:"fullName"`
	Email    string           `json:"email"`
	Floor    *records.FlexInt `json:"floor"`
}

// LoginResponse is the backend's answer to a successful login
type LoginResponse struct {
	Token string `json:"token"`
	loginUser
	User *loginUser `json:"user,omitempty"`
}

// Identity builds the session identity, filling gaps from the token claims
func (r LoginResponse) Identity() identity.Identity {
	u := r.loginUser
	if r.User != nil {
		u = mergeUser(u, *r.User)
	}
	id := u.ID
	if id == "" {
		id = u.AltID
	}
	var floor *int
	if u.Floor != nil {
		floor = identity.IntPtr(int(*u.Floor))
	}
	return identity.Merge(identity.New(id, identity.ParseRole(u.Role), floor, u.FullName, u.Email, r.Token))
}

func mergeUser(top, nested loginUser) loginUser {
	if top.ID == "" {
		top.ID = nested.ID
	}
	if top.AltID == "" {
		top.AltID = nested.AltID
	}
	if top.Role == "" {
		top.Role = nested.Role
	}
	if top.FullName == "" {
		top.FullName = nested.FullName
	}
	if top.Email == "" {
		top.Email = nested.Email
	}
	if top.Floor == nil {
		top.Floor = nested.Floor
	}
	return top
}

// Login authenticates with email and password
func (c *Client) Login(ctx context.Context, email, password string) (identity.Identity, error) {
	var resp LoginResponse
	ctx = contextkeys.WithModule(ctx, "auth")
	if err := c.doJSON(ctx, http.MethodPost, "/auth/login", LoginRequest{Email: email, Password: password}, &resp); err != nil {
		return identity.Identity{}, fmt.Errorf("login failed: %w", err)
	}
	return identityFrom(resp)
}

// Register creates a new account
func (c *Client) Register(ctx context.Context, req RegisterRequest) error {
	ctx = contextkeys.WithModule(ctx, "auth")
	if _, err := c.do(ctx, http.MethodPost, "/auth/register", req); err != nil {
		return fmt.Errorf("registration failed: %w", err)
	}
	return nil
}

// GoogleLogin exchanges a verified Google ID token for a backend session
func (c *Client) GoogleLogin(ctx context.Context, googleIDToken string) (identity.Identity, error) {
	var resp LoginResponse
	ctx = contextkeys.WithModule(ctx, "auth")
	body := map[string]string{"token": googleIDToken}
	if err := c.doJSON(ctx, http.MethodPost, "/auth/google", body, &resp); err != nil {
		return identity.Identity{}, fmt.Errorf("google login failed: %w", err)
	}
	return identityFrom(resp)
}

func identityFrom(resp LoginResponse) (identity.Identity, error) {
	if resp.Token == "" {
		return identity.Identity{}, fmt.Errorf("backend returned no token")
	}
	return resp.Identity(), nil
}

package supabase

import (
	"context"
	"encoding/json"
	"fmt"
)

// AuthClient handles GoTrue auth operations.
type AuthClient struct {
	client *Client
}

func (a *AuthClient) url(path string) string {
	return a.client.baseURL + "/auth/v1" + path
}

// SignInWithPassword authenticates with email/password and returns the
// issued session.
func (a *AuthClient) SignInWithPassword(ctx context.Context, email, password string) (*Session, error) {
	body, err := json.Marshal(map[string]string{
		"email":    email,
		"password": password,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	resp, err := a.client.request(ctx, "POST", a.url("/token?grant_type=password"), body, nil, "")
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		return nil, parseError(resp.Body, resp.StatusCode)
	}

	var session Session
	if err := json.Unmarshal(resp.Body, &session); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	return &session, nil
}

// SignUp registers a new user. data is attached as user metadata and shows
// up in the profile trigger / user_metadata later.
func (a *AuthClient) SignUp(ctx context.Context, email, password string, data map[string]interface{}) (*Session, error) {
	body, err := json.Marshal(map[string]interface{}{
		"email":    email,
		"password": password,
		"data":     data,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	resp, err := a.client.request(ctx, "POST", a.url("/signup"), body, nil, "")
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		return nil, parseError(resp.Body, resp.StatusCode)
	}

	var session Session
	if err := json.Unmarshal(resp.Body, &session); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	return &session, nil
}

// RefreshSession exchanges a refresh token for a fresh session. This is the
// session-retrieval primitive the session controller races against its
// startup timeout.
func (a *AuthClient) RefreshSession(ctx context.Context, refreshToken string) (*Session, error) {
	body, err := json.Marshal(map[string]string{"refresh_token": refreshToken})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	resp, err := a.client.request(ctx, "POST", a.url("/token?grant_type=refresh_token"), body, nil, "")
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		return nil, parseError(resp.Body, resp.StatusCode)
	}

	var session Session
	if err := json.Unmarshal(resp.Body, &session); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	return &session, nil
}

// GetUser fetches the user behind an access token.
func (a *AuthClient) GetUser(ctx context.Context, accessToken string) (*User, error) {
	resp, err := a.client.request(ctx, "GET", a.url("/user"), nil, nil, accessToken)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		return nil, parseError(resp.Body, resp.StatusCode)
	}

	var user User
	if err := json.Unmarshal(resp.Body, &user); err != nil {
		return nil, fmt.Errorf("unmarshal user: %w", err)
	}
	return &user, nil
}

// SignOut revokes the session behind the access token.
func (a *AuthClient) SignOut(ctx context.Context, accessToken string) error {
	resp, err := a.client.request(ctx, "POST", a.url("/logout"), nil, nil, accessToken)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		return parseError(resp.Body, resp.StatusCode)
	}
	return nil
}

package utils

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
)

// SupabaseClient talks to the project's auth admin API and PostgREST with the
// service role key. It is read-only here.
type SupabaseClient struct {
	BaseURL        string
	ServiceRoleKey string
	HTTP           *http.Client
}

type supabaseUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

func NewSupabaseClient(baseURL, serviceRoleKey string) *SupabaseClient {
	return &SupabaseClient{
		BaseURL:        strings.TrimRight(baseURL, "/"),
		ServiceRoleKey: serviceRoleKey,
		HTTP:           &http.Client{Timeout: 10 * time.Second},
	}
}

// EmailByAccountID returns the account's email, or "" when the account does
// not exist.
func (c *SupabaseClient) EmailByAccountID(ctx context.Context, accountID string) (string, error) {
	var user supabaseUser
	found, err := c.get(ctx, "/auth/v1/admin/users/"+url.PathEscape(accountID), &user)
	if err != nil || !found {
		return "", err
	}
	return user.Email, nil
}

// AccountIDByPhone looks the phone up in the profiles table through PostgREST.
func (c *SupabaseClient) AccountIDByPhone(ctx context.Context, phone string) (string, error) {
	q := url.Values{}
	q.Set("select", "id")
	q.Set("phone", "eq."+phone)
	q.Set("limit", "1")

	var rows []struct {
		ID string `json:"id"`
	}
	if _, err := c.get(ctx, "/rest/v1/profiles?"+q.Encode(), &rows); err != nil {
		return "", err
	}
	if len(rows) == 0 {
		return "", nil
	}
	return rows[0].ID, nil
}

func (c *SupabaseClient) get(ctx context.Context, path string, out any) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+path, nil)
	if err != nil {
		return false, fmt.Errorf("build supabase request: %w", err)
	}
	req.Header.Set("apikey", c.ServiceRoleKey)
	req.Header.Set("Authorization", "Bearer "+c.ServiceRoleKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return false, fmt.Errorf("supabase request: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if resp.StatusCode == http.StatusNotFound {
		return false, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return false, fmt.Errorf("supabase %s: status %d: %s", path, resp.StatusCode, body)
	}
	if err := jsoniter.Unmarshal(body, out); err != nil {
		return false, fmt.Errorf("parse supabase response: %w", err)
	}
	return true, nil
}

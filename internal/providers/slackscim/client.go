// Package slackscim talks to the Slack SCIM v1 API: the target directory.
// Reads list the user directory; writes are the corrective mutations the
// reconciliation engine applies. Every write parses the value echoed back
// by Slack so callers can verify the post-state instead of trusting a 200.
package slackscim

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"orgsync/internal/domain"
	"orgsync/internal/httpx"
	"orgsync/internal/secrets"
	syncengine "orgsync/internal/sync"
)

const enterpriseSchema = "urn:scim:schemas:extension:enterprise:1.0"

// Secret names in the store. The refresh token rotates: every token
// exchange returns a new one which must replace the old.
const (
	SecretClientID     = "slackClientId"
	SecretClientSecret = "slackClientSecret"
	SecretRefreshToken = "slackRefreshToken"
)

type Client struct {
	BaseURL string // https://api.slack.com
	AuthURL string // https://slack.com/api/oauth.v2.access
	HTTP    *http.Client
	Secrets secrets.Store

	// PageSize for SCIM listing. Slack caps pages server-side anyway.
	PageSize int
}

func New(baseURL, authURL string, store secrets.Store) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		AuthURL: authURL,
		HTTP: &http.Client{
			Timeout: 2 * time.Minute,
		},
		Secrets:  store,
		PageSize: 100,
	}
}

type tokenResponse struct {
	OK           bool   `json:"ok"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	Error        string `json:"error"`
}

// token exchanges the stored refresh token for an access token and persists
// the rotated refresh token before returning.
func (c *Client) token(ctx context.Context) (string, error) {
	clientID, err := c.Secrets.Get(SecretClientID)
	if err != nil {
		return "", err
	}
	clientSecret, err := c.Secrets.Get(SecretClientSecret)
	if err != nil {
		return "", err
	}
	refreshToken, err := c.Secrets.Get(SecretRefreshToken)
	if err != nil {
		return "", err
	}

	form := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshToken},
		"client_id":     {clientID},
		"client_secret": {clientSecret},
	}

	var tr tokenResponse
	err = httpx.DoJSON(
		ctx,
		c.HTTP,
		func(ctx context.Context) (*http.Request, error) {
			r, err := http.NewRequestWithContext(ctx, http.MethodPost, c.AuthURL, strings.NewReader(form.Encode()))
			if err != nil {
				return nil, err
			}
			r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			return r, nil
		},
		&tr,
		httpx.DefaultRetryConfig(),
	)
	if err != nil {
		return "", fmt.Errorf("slack token exchange failed: %w", err)
	}
	if !tr.OK || tr.AccessToken == "" {
		return "", fmt.Errorf("slack token exchange rejected: %s", tr.Error)
	}

	if tr.RefreshToken != "" {
		if err := c.Secrets.Put(SecretRefreshToken, tr.RefreshToken); err != nil {
			return "", fmt.Errorf("persisting rotated refresh token: %w", err)
		}
	}
	return tr.AccessToken, nil
}

type scimEmail struct {
	Value   string `json:"value"`
	Type    string `json:"type,omitempty"`
	Primary bool   `json:"primary"`
}

type scimManager struct {
	ManagerID *string `json:"managerId"`
}

type scimEnterprise struct {
	Manager scimManager `json:"manager"`
}

type scimResource struct {
	Schemas    []string        `json:"schemas,omitempty"`
	ID         string          `json:"id,omitempty"`
	UserName   string          `json:"userName,omitempty"`
	Title      string          `json:"title,omitempty"`
	UserType   string          `json:"userType,omitempty"`
	Active     *bool           `json:"active,omitempty"`
	Emails     []scimEmail     `json:"emails,omitempty"`
	Enterprise *scimEnterprise `json:"urn:scim:schemas:extension:enterprise:1.0,omitempty"`
}

type listResponse struct {
	TotalResults int            `json:"totalResults"`
	ItemsPerPage int            `json:"itemsPerPage"`
	StartIndex   int            `json:"startIndex"`
	Resources    []scimResource `json:"Resources"`
}

func (c *Client) Name() string { return "slack" }

// ListUsers pages through /scim/v1/Users with count/startIndex until the
// reported totalResults is reached.
func (c *Client) ListUsers(ctx context.Context) ([]domain.RawUser, error) {
	token, err := c.token(ctx)
	if err != nil {
		return nil, err
	}

	count := c.PageSize
	if count <= 0 {
		count = 100
	}

	var raws []domain.RawUser
	startIndex := 1
	fetched := 0
	for {
		pageURL := fmt.Sprintf("%s/scim/v1/Users?count=%d&startIndex=%d", c.BaseURL, count, startIndex)
		var page listResponse
		err := httpx.DoJSON(
			ctx,
			c.HTTP,
			func(ctx context.Context) (*http.Request, error) {
				r, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
				if err != nil {
					return nil, err
				}
				r.Header.Set("Authorization", "Bearer "+token)
				return r, nil
			},
			&page,
			httpx.DefaultRetryConfig(),
		)
		if err != nil {
			return nil, fmt.Errorf("slack scim list failed: %w", err)
		}

		for _, res := range page.Resources {
			raws = append(raws, rawFromResource(res))
		}

		if page.ItemsPerPage <= 0 {
			break
		}
		fetched += page.ItemsPerPage
		if fetched >= page.TotalResults {
			break
		}
		startIndex += page.ItemsPerPage
	}

	return raws, nil
}

func rawFromResource(res scimResource) domain.RawUser {
	email := ""
	for _, e := range res.Emails {
		if e.Primary {
			email = e.Value
		}
	}
	raw := domain.RawUser{
		ID:       res.ID,
		UserName: res.UserName,
		Email:    email,
		Title:    res.Title,
		Source:   "slack",
	}
	if res.Active != nil {
		raw.Active = *res.Active
	}
	if res.Enterprise != nil && res.Enterprise.Manager.ManagerID != nil {
		raw.ManagerID = *res.Enterprise.Manager.ManagerID
	}
	return raw
}

// SetManager patches the user's enterprise manager extension. Passing nil
// removes the manager. Returns the manager id Slack reports after the
// write, which the caller compares against the requested one.
func (c *Client) SetManager(ctx context.Context, userID string, managerID *string) (*string, error) {
	patch := scimResource{
		Enterprise: &scimEnterprise{Manager: scimManager{ManagerID: managerID}},
	}
	res, err := c.patchUser(ctx, userID, patch)
	if err != nil {
		return nil, err
	}
	if res.Enterprise == nil {
		return nil, nil
	}
	got := res.Enterprise.Manager.ManagerID
	if got != nil && *got == "" {
		return nil, nil
	}
	return got, nil
}

// SetTitle patches the user's title. Passing nil clears it.
func (c *Client) SetTitle(ctx context.Context, userID string, title *string) (*string, error) {
	patch := scimResource{}
	if title != nil {
		patch.Title = *title
	}
	res, err := c.patchUser(ctx, userID, patch)
	if err != nil {
		return nil, err
	}
	if res.Title == "" {
		return nil, nil
	}
	return domain.StrPtr(res.Title), nil
}

// SetActive activates or deactivates the user. Deactivation is how users
// leave the directory; SCIM DELETE is never used.
func (c *Client) SetActive(ctx context.Context, userID string, active bool) (bool, error) {
	patch := scimResource{Active: &active}
	res, err := c.patchUser(ctx, userID, patch)
	if err != nil {
		return !active, err
	}
	if res.Active == nil {
		return !active, nil
	}
	return *res.Active, nil
}

func (c *Client) patchUser(ctx context.Context, userID string, patch scimResource) (scimResource, error) {
	token, err := c.token(ctx)
	if err != nil {
		return scimResource{}, err
	}
	b, err := json.Marshal(patch)
	if err != nil {
		return scimResource{}, err
	}

	var res scimResource
	err = httpx.DoJSON(
		ctx,
		c.HTTP,
		func(ctx context.Context) (*http.Request, error) {
			r, err := http.NewRequestWithContext(ctx, http.MethodPatch,
				fmt.Sprintf("%s/scim/v1/Users/%s", c.BaseURL, userID), bytes.NewReader(b))
			if err != nil {
				return nil, err
			}
			r.Header.Set("Content-Type", "application/json")
			r.Header.Set("Authorization", "Bearer "+token)
			return r, nil
		},
		&res,
		httpx.DefaultRetryConfig(),
	)
	if err != nil {
		return scimResource{}, fmt.Errorf("slack scim patch failed: %w", err)
	}
	return res, nil
}

type createResponse struct {
	ID string `json:"id"`
}

// CreateUser posts a new SCIM user and returns the id Slack assigned.
func (c *Client) CreateUser(ctx context.Context, user syncengine.NewUser) (string, error) {
	token, err := c.token(ctx)
	if err != nil {
		return "", err
	}

	userType := ""
	if user.ProfileOnly {
		userType = "[[profile-only]]"
	}
	active := true
	payload := map[string]any{
		"schemas":     []string{"urn:scim:schemas:core:1.0", enterpriseSchema},
		"userName":    user.UserName,
		"name":        map[string]string{"givenName": user.FirstName, "familyName": user.LastName},
		"displayName": user.FirstName + " " + user.LastName,
		"emails":      []scimEmail{{Value: user.Email, Type: "work", Primary: true}},
		"userType":    userType,
		"title":       user.Title,
		"active":      active,
		enterpriseSchema: scimEnterprise{
			Manager: scimManager{ManagerID: user.ManagerID},
		},
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	var res createResponse
	err = httpx.DoJSON(
		ctx,
		c.HTTP,
		func(ctx context.Context) (*http.Request, error) {
			r, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/scim/v1/Users", bytes.NewReader(b))
			if err != nil {
				return nil, err
			}
			r.Header.Set("Content-Type", "application/json")
			r.Header.Set("Authorization", "Bearer "+token)
			return r, nil
		},
		&res,
		httpx.DefaultRetryConfig(),
	)
	if err != nil {
		return "", fmt.Errorf("slack scim create failed: %w", err)
	}
	if res.ID == "" {
		return "", fmt.Errorf("slack scim create returned no id")
	}
	return res.ID, nil
}

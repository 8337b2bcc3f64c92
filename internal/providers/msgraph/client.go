package msgraph

import (
	"context"
	"net/http"
	"time"

	"orgsync/internal/domain"
	"orgsync/internal/httpx"
)

// Client reads the organization's users from the Microsoft Graph API.
// This is the source of record for the hierarchy.
type Client struct {
	BaseURL     string
	BearerToken string
	HTTP        *http.Client
}

func New(baseURL, bearerToken string) *Client {
	return &Client{
		BaseURL:     baseURL,
		BearerToken: bearerToken,
		HTTP: &http.Client{
			Timeout: 2 * time.Minute,
		},
	}
}

type graphUser struct {
	ID             string  `json:"id"`
	AccountEnabled bool    `json:"accountEnabled"`
	DisplayName    string  `json:"displayName"`
	EmployeeType   *string `json:"employeeType"`
	Mail           string  `json:"mail"`
	JobTitle       string  `json:"jobTitle"`
	Manager        *struct {
		ID string `json:"id"`
	} `json:"manager"`
}

type usersResponse struct {
	NextLink string      `json:"@odata.nextLink"`
	Value    []graphUser `json:"value"`
}

// usersQuery expands each user's manager one level so the manager id comes
// back in the same page as the user.
const usersQuery = "/v1.0/users?$expand=manager($levels=1;$select=id)&$select=id,accountEnabled,displayName,employeeType,mail,jobTitle"

func (p *Client) Name() string { return "msgraph" }

// ListUsers fetches every page, following @odata.nextLink until exhausted.
// Users with no mail are skipped: they cannot participate in email-keyed
// comparison.
func (p *Client) ListUsers(ctx context.Context) ([]domain.RawUser, error) {
	var raws []domain.RawUser

	url := p.BaseURL + usersQuery
	for url != "" {
		pageURL := url
		var page usersResponse
		err := httpx.DoJSON(
			ctx,
			p.HTTP,
			func(ctx context.Context) (*http.Request, error) {
				r, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
				if err != nil {
					return nil, err
				}
				r.Header.Set("Accept", "application/json")
				r.Header.Set("Authorization", "Bearer "+p.BearerToken)
				return r, nil
			},
			&page,
			httpx.DefaultRetryConfig(),
		)
		if err != nil {
			return nil, err
		}

		for _, u := range page.Value {
			if u.Mail == "" {
				continue
			}
			raw := domain.RawUser{
				ID:     u.ID,
				Email:  u.Mail,
				Title:  u.JobTitle,
				Active: u.AccountEnabled,
				Source: "msgraph",
			}
			if u.Manager != nil {
				raw.ManagerID = u.Manager.ID
			}
			raws = append(raws, raw)
		}
		url = page.NextLink
	}

	return raws, nil
}

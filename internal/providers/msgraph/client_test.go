package msgraph

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListUsersFollowsNextLink(t *testing.T) {
	var srv *httptest.Server
	mux := http.NewServeMux()
	mux.HandleFunc("/v1.0/users", func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer graph-token" {
			t.Errorf("Authorization = %q", got)
		}
		if r.URL.Query().Get("page") == "2" {
			json.NewEncoder(w).Encode(map[string]any{
				"value": []map[string]any{
					{"id": "G3", "accountEnabled": true, "mail": "eva@x.com", "jobTitle": "VP"},
				},
			})
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"@odata.nextLink": srv.URL + "/v1.0/users?page=2",
			"value": []map[string]any{
				{"id": "G1", "accountEnabled": true, "mail": "ann@x.com",
					"manager": map[string]string{"id": "G3"}},
				{"id": "G2", "accountEnabled": false, "mail": "bob@x.com"},
				{"id": "G9", "accountEnabled": true, "mail": "", "displayName": "Room 4A"},
			},
		})
	})
	srv = httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	c := New(srv.URL, "graph-token")
	c.HTTP = srv.Client()

	raws, err := c.ListUsers(context.Background())
	require.NoError(t, err)
	require.Len(t, raws, 3, "mail-less entries are skipped")

	assert.Equal(t, "ann@x.com", raws[0].Email)
	assert.Equal(t, "G3", raws[0].ManagerID)
	assert.True(t, raws[0].Active)
	assert.False(t, raws[1].Active)
	assert.Empty(t, raws[1].ManagerID)
	assert.Equal(t, "VP", raws[2].Title)
	assert.Equal(t, "msgraph", raws[2].Source)
}

func TestListUsersServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad token", http.StatusUnauthorized)
	}))
	t.Cleanup(srv.Close)

	c := New(srv.URL, "expired")
	c.HTTP = srv.Client()

	_, err := c.ListUsers(context.Background())
	require.Error(t, err)
}

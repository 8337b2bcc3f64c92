package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	syncengine "orgsync/internal/sync"
)

func decodeJSON(r *http.Request, v any) error {
	if r.Body == nil {
		return fmt.Errorf("missing request body")
	}
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

type patchUserRequest struct {
	ID        string  `json:"id"`
	ManagerID *string `json:"managerId"`
}

// handlePatchSlackUser sets or clears one user's manager directly, outside
// any comparison run. The echoed manager id must equal the requested one or
// the patch is reported failed: a 200 from the directory is not proof the
// write took.
func (s *Server) handlePatchSlackUser(w http.ResponseWriter, r *http.Request) {
	var req patchUserRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.ID == "" {
		writeError(w, http.StatusBadRequest, "missing id property")
		return
	}

	got, err := s.opts.Writer.SetManager(r.Context(), req.ID, req.ManagerID)
	if err != nil {
		s.log.WithError(err).Error("manager patch failed")
		writeError(w, http.StatusBadGateway, "failed to patch user")
		return
	}
	if !ptrEqual(got, req.ManagerID) {
		writeError(w, http.StatusBadGateway,
			fmt.Sprintf("update to manager for user %s did not take", req.ID))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"managerId": got})
}

type postUserRequest struct {
	FirstName   string  `json:"firstName"`
	LastName    string  `json:"lastName"`
	UserName    string  `json:"userName"`
	Title       string  `json:"title"`
	Email       string  `json:"email"`
	ProfileOnly bool    `json:"profileOnly"`
	ManagerID   *string `json:"managerId"`
}

// handlePostSlackUser creates a user directly.
func (s *Server) handlePostSlackUser(w http.ResponseWriter, r *http.Request) {
	var req postUserRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Email == "" || req.UserName == "" {
		writeError(w, http.StatusBadRequest, "missing email or userName")
		return
	}

	id, err := s.opts.Writer.CreateUser(r.Context(), syncengine.NewUser{
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		UserName:    req.UserName,
		Title:       req.Title,
		Email:       req.Email,
		ProfileOnly: req.ProfileOnly,
		ManagerID:   req.ManagerID,
	})
	if err != nil {
		s.log.WithError(err).Error("user create failed")
		writeError(w, http.StatusBadGateway, "failed to create user")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

func ptrEqual(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

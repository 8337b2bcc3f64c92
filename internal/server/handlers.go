package server

import (
	"context"
	"fmt"
	"net/http"
	"sort"

	"github.com/gorilla/mux"

	"orgsync/internal/domain"
	"orgsync/internal/export"
	"orgsync/internal/hierarchy"
	syncengine "orgsync/internal/sync"
)

// userJSON is the wire shape for canonical users.
type userJSON struct {
	ID           string  `json:"id"`
	Email        string  `json:"email"`
	ManagerEmail *string `json:"managerEmail"`
	Title        *string `json:"title"`
	ProfileOnly  bool    `json:"profileOnly,omitempty"`
}

func toUserJSON(u domain.CanonicalUser) userJSON {
	return userJSON{
		ID:           u.ID,
		Email:        u.Email,
		ManagerEmail: u.ManagerEmail,
		Title:        u.Title,
		ProfileOnly:  u.ProfileOnly,
	}
}

// snapshot fetches and builds the named source. Valid names: the configured
// source of record, the target, or "csv" when a drop is configured.
func (s *Server) snapshot(ctx context.Context, name string) (domain.Snapshot, error) {
	switch name {
	case s.opts.Source.Name():
		raws, err := s.opts.Source.ListUsers(ctx)
		if err != nil {
			return nil, err
		}
		return hierarchy.Build(raws, s.log), nil
	case s.opts.Target.Name():
		raws, err := s.opts.Target.ListUsers(ctx)
		if err != nil {
			return nil, err
		}
		return hierarchy.Build(raws, s.log), nil
	case "csv":
		if s.opts.CSVLoader == nil {
			return nil, fmt.Errorf("no csv drop configured")
		}
		_, contents, err := s.opts.CSVLoader(ctx)
		if err != nil {
			return nil, err
		}
		return hierarchy.BuildFromCSV(string(contents), s.log), nil
	default:
		return nil, fmt.Errorf("unknown source %q", name)
	}
}

func (s *Server) handleGetUsers(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["source"]
	snap, err := s.snapshot(r.Context(), name)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	emails := snap.Emails()
	sort.Strings(emails)
	users := make([]userJSON, 0, len(emails))
	for _, e := range emails {
		users = append(users, toUserJSON(snap[e]))
	}
	writeJSON(w, http.StatusOK, map[string]any{"source": name, "users": users})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["source"]
	snap, err := s.snapshot(r.Context(), name)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s-snapshot.csv", name))
	if err := export.WriteSnapshotCSV(w, snap); err != nil {
		s.log.WithError(err).Error("csv export failed")
	}
}

type compareRequest struct {
	// Target and Source name the two snapshots; "csv" means the HR drop.
	// CSVContents, when set, is an inline upload used instead of the drop
	// for the source side.
	Target      string `json:"target"`
	Source      string `json:"source"`
	CSVContents string `json:"csvContents,omitempty"`
}

type recordJSON struct {
	Index           int             `json:"index"`
	Email           string          `json:"email"`
	Action          domain.FixAction `json:"action"`
	Note            string          `json:"note"`
	State           domain.FixState `json:"state"`
	NewManagerEmail *string         `json:"newManagerEmail,omitempty"`
	Title           *string         `json:"title,omitempty"`
}

func toRecordJSON(i int, rec *domain.ReconciliationRecord) recordJSON {
	return recordJSON{
		Index:           i,
		Email:           rec.Diff.Email(),
		Action:          rec.Action,
		Note:            rec.Note,
		State:           rec.State,
		NewManagerEmail: rec.NewManagerEmail,
		Title:           rec.Title,
	}
}

// handleCompare builds both snapshots, diffs, classifies and stores the run.
// The previous run's records are discarded: fix indices only make sense
// against the run that produced them.
func (s *Server) handleCompare(w http.ResponseWriter, r *http.Request) {
	var req compareRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Target == "" {
		req.Target = s.opts.Target.Name()
	}
	if req.Source == "" {
		req.Source = s.opts.Source.Name()
	}

	target, err := s.snapshot(r.Context(), req.Target)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	var source domain.Snapshot
	if req.CSVContents != "" {
		source = hierarchy.BuildFromCSV(req.CSVContents, s.log)
	} else {
		source, err = s.snapshot(r.Context(), req.Source)
		if err != nil {
			writeError(w, http.StatusBadGateway, err.Error())
			return
		}
	}

	diffs := syncengine.Compare(target, source)
	var records []*domain.ReconciliationRecord
	emails := make([]string, 0, len(diffs))
	for email := range diffs {
		emails = append(emails, email)
	}
	sort.Strings(emails)
	for _, email := range emails {
		records = append(records, syncengine.Classify(diffs[email], target, source)...)
	}

	s.mu.Lock()
	s.cur = &run{
		target:     target,
		source:     source,
		records:    records,
		reconciler: syncengine.NewReconciler(s.opts.Writer, target, source, s.log),
	}
	s.mu.Unlock()

	out := make([]recordJSON, 0, len(records))
	for i, rec := range records {
		out = append(out, toRecordJSON(i, rec))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"target":  req.Target,
		"source":  req.Source,
		"records": out,
	})
}

type fixRequest struct {
	Index int            `json:"index"`
	Mode  domain.AddMode `json:"mode,omitempty"`
}

// handleFix applies one record from the current run. The response always
// carries a terminal state for the record; remote failures surface as
// CannotFix with a note, never as a 5xx.
func (s *Server) handleFix(w http.ResponseWriter, r *http.Request) {
	var req fixRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.mu.Lock()
	cur := s.cur
	s.mu.Unlock()
	if cur == nil {
		writeError(w, http.StatusConflict, "no comparison run; call /api/compare first")
		return
	}
	if req.Index < 0 || req.Index >= len(cur.records) {
		writeError(w, http.StatusBadRequest, "record index out of range")
		return
	}

	rec := cur.records[req.Index]
	if req.Mode != "" {
		rec.Mode = req.Mode
	}

	if _, err := cur.reconciler.ApplyFix(r.Context(), rec); err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, toRecordJSON(req.Index, rec))
}

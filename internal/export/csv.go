package export

import (
	"encoding/csv"
	"io"
	"sort"
	"strings"

	"orgsync/internal/domain"
)

// Snapshot CSV header. Keep column order EXACT: it is the same fixed order
// the CSV snapshot parser expects, so an exported file round-trips.
var snapshotHeader = []string{
	"id",
	"firstName",
	"lastName",
	"title",
	"email",
	"managerId",
}

// WriteSnapshotCSV writes a snapshot in the canonical HR column order,
// sorted by email so output is stable. managerId is resolved through the
// snapshot; a manager email that does not resolve leaves the column empty.
func WriteSnapshotCSV(w io.Writer, snap domain.Snapshot) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(snapshotHeader); err != nil {
		return err
	}

	emails := snap.Emails()
	sort.Strings(emails)

	for _, email := range emails {
		u := snap[email]
		if err := cw.Write(toRow(u, snap)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func toRow(u domain.CanonicalUser, snap domain.Snapshot) []string {
	first, last := u.FirstName, u.LastName
	if first == "" && last == "" {
		first, last = splitLocalPart(u.Email)
	}
	title := ""
	if u.Title != nil {
		title = *u.Title
	}
	managerID := ""
	if u.ManagerEmail != nil {
		if m, ok := snap[*u.ManagerEmail]; ok {
			managerID = m.ID
		}
	}
	return []string{u.ID, first, last, title, u.Email, managerID}
}

func splitLocalPart(email string) (string, string) {
	local := email
	if i := strings.Index(email, "@"); i >= 0 {
		local = email[:i]
	}
	if i := strings.Index(local, "."); i >= 0 {
		return local[:i], local[i+1:]
	}
	return local, ""
}

package hierarchy

import (
	"github.com/sirupsen/logrus"

	"orgsync/internal/domain"
)

// Build assembles a snapshot from raw records. Two passes: the first
// normalizes every record and indexes by email and by source id, the second
// resolves manager-id references into manager emails. Two passes are
// required because manager references use the source's internal id and ids
// are only fully known once every (possibly paginated) record is in.
//
// A manager id that points outside the snapshot resolves to no manager.
// That is expected, not an error: the manager may have been filtered out as
// inactive or emailless.
func Build(raws []domain.RawUser, log *logrus.Logger) domain.Snapshot {
	byEmail := make(domain.Snapshot, len(raws))
	byID := make(map[string]domain.CanonicalUser, len(raws))
	managerIDs := make(map[string]string, len(raws))

	for _, raw := range raws {
		u, ok := Normalize(raw, log)
		if !ok {
			continue
		}
		byEmail[u.Email] = u
		if u.ID != "" {
			byID[u.ID] = u
		}
		if raw.ManagerID != "" {
			managerIDs[u.Email] = raw.ManagerID
		}
	}

	for email, managerID := range managerIDs {
		manager, ok := byID[managerID]
		if !ok {
			continue
		}
		u := byEmail[email]
		u.ManagerEmail = domain.StrPtr(manager.Email)
		byEmail[email] = u
	}

	return byEmail
}

package hierarchy

import (
	"strings"

	"github.com/sirupsen/logrus"

	"orgsync/internal/domain"
)

// SourceSlack is the source name that gets bot-account filtering. Bot users
// in the Slack directory all carry an email under this domain.
const (
	SourceSlack  = "slack"
	botDomain    = "@slack-bots.com"
	profileInfix = "+slackprofile@"
)

// Normalize converts one raw record into a canonical user. The second return
// is false when the record must be rejected (inactive, bot account) or
// dropped (no email). Rules apply in order; rejection is silent, a missing
// email logs a warning because it usually means the upstream export is
// partial, and comparison has to tolerate that rather than fail.
func Normalize(raw domain.RawUser, log *logrus.Logger) (domain.CanonicalUser, bool) {
	if !raw.Active {
		return domain.CanonicalUser{}, false
	}
	if raw.Source == SourceSlack && strings.HasSuffix(strings.ToLower(raw.Email), botDomain) {
		return domain.CanonicalUser{}, false
	}
	email := strings.ToLower(strings.TrimSpace(raw.Email))
	if email == "" {
		if log != nil {
			log.WithFields(logrus.Fields{
				"source": raw.Source,
				"id":     raw.ID,
			}).Warn("dropping record with no email")
		}
		return domain.CanonicalUser{}, false
	}

	// Profile-only shadow accounts are stored with a +slackprofile infix to
	// keep Slack emails unique. The canonical key is the real address; the
	// flag survives separately.
	profileOnly := false
	if strings.Contains(email, profileInfix) {
		email = strings.Replace(email, profileInfix, "@", 1)
		profileOnly = true
	}

	u := domain.CanonicalUser{
		ID:          raw.ID,
		Email:       email,
		Active:      raw.Active,
		ProfileOnly: profileOnly,
		FirstName:   strings.TrimSpace(raw.FirstName),
		LastName:    strings.TrimSpace(raw.LastName),
	}
	if t := strings.TrimSpace(raw.Title); t != "" {
		u.Title = domain.StrPtr(t)
	}
	return u, true
}

package hierarchy

import (
	"strings"

	"github.com/sirupsen/logrus"

	"orgsync/internal/domain"
)

// CSV column order for HR snapshot files. Fixed, no quoting support: a value
// containing a comma will shift the columns after it. Known hazard we live
// with because the upstream export never quotes.
const csvColumns = 6

// ParseCSV converts an HR snapshot file into raw records. The first line is
// a header and is skipped, blank lines are skipped, short lines are dropped
// with a warning. An empty managerId column means no manager (nil, not "").
func ParseCSV(contents string, log *logrus.Logger) []domain.RawUser {
	lines := strings.Split(contents, "\n")
	raws := make([]domain.RawUser, 0, len(lines))
	for i, line := range lines {
		if i == 0 {
			continue
		}
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			continue
		}
		fields := strings.Split(line, ",")
		if len(fields) < csvColumns {
			if log != nil {
				log.WithField("line", i+1).Warn("dropping malformed csv line")
			}
			continue
		}
		raws = append(raws, domain.RawUser{
			ID:        fields[0],
			FirstName: fields[1],
			LastName:  fields[2],
			Title:     fields[3],
			Email:     fields[4],
			ManagerID: fields[5],
			Active:    true,
			Source:    "csv",
		})
	}
	return raws
}

// BuildFromCSV parses and builds in one step.
func BuildFromCSV(contents string, log *logrus.Logger) domain.Snapshot {
	return Build(ParseCSV(contents, log), log)
}

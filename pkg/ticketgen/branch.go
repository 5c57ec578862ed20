package ticketgen

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

const (
	branchPrefix = "feature/"
	maxSlugLen   = 40
)

var (
	nonSlugChars = regexp.MustCompile(`[^a-z0-9\s-]`)
	dashRun      = regexp.MustCompile(`-+`)
)

// BranchName derives a ticket's branch name from its title at generation
// time. The base36 timestamp keeps regenerated graphs from colliding with
// branches of an earlier run; everything downstream treats the name as
// opaque.
func BranchName(title string, now time.Time) string {
	return branchPrefix + slug(title) + "-" + strconv.FormatInt(now.Unix(), 36)
}

func slug(title string) string {
	s := strings.ToLower(title)
	s = nonSlugChars.ReplaceAllString(s, "")
	s = strings.Join(strings.Fields(s), "-")
	s = dashRun.ReplaceAllString(s, "-")

	if len(s) > maxSlugLen {
		s = s[:maxSlugLen]
	}
	s = strings.Trim(s, "-")
	if s == "" {
		s = "ticket"
	}
	return s
}

// Package vendors captures per-vendor knowledge about how fix commits
// are announced in commit messages.
package vendors

import (
	"fmt"
	"regexp"

	"github.com/sirupsen/logrus"

	"github.com/lmarques/vulnhist/internal/models"
)

// Profile describes the version control search behavior of one vendor.
// VCSPatterns returns the commit message patterns that announce the fix
// of a vulnerability, as extended regular expressions for git log
// --grep. An empty result means the vendor offers no version control
// search.
type Profile interface {
	Name() string
	VCSPatterns(v models.Vulnerability) []string
}

// ForName returns the profile registered under the given name. Unknown
// names fall back to the generic profile with a warning; the empty name
// selects it silently.
func ForName(name string, logger *logrus.Logger) Profile {
	switch name {
	case "", "generic":
		return generic{}
	case "mozilla":
		return mozilla{}
	case "xen":
		return xen{}
	case "apache":
		return apache{}
	case "glibc":
		return glibc{}
	default:
		logger.Warnf("Unknown vendor %q, using the generic profile.", name)
		return generic{}
	}
}

// generic is the default profile for projects without a message
// convention worth searching.
type generic struct{}

func (generic) Name() string { return "generic" }

func (generic) VCSPatterns(models.Vulnerability) []string { return nil }

// mozilla fix commits start with the Bugzilla bug reference.
type mozilla struct{}

func (mozilla) Name() string { return "mozilla" }

func (mozilla) VCSPatterns(v models.Vulnerability) []string {
	var patterns []string
	for _, id := range v.BugIDs {
		patterns = append(patterns, fmt.Sprintf(`^Bug \b%s\b`, regexp.QuoteMeta(id)))
	}
	return patterns
}

// xen fix commits mention the advisory in a "This is ..." sentence,
// naming either the CVE or the XSA advisory.
type xen struct{}

func (xen) Name() string { return "xen" }

func (xen) VCSPatterns(v models.Vulnerability) []string {
	var patterns []string
	for _, id := range v.AdvisoryIDs {
		patterns = append(patterns, fmt.Sprintf(`This is.*\b(%s|%s)\b`, regexp.QuoteMeta(v.ID), regexp.QuoteMeta(id)))
	}
	return patterns
}

// apache fix commits carry a SECURITY: trailer naming the CVE.
type apache struct{}

func (apache) Name() string { return "apache" }

func (apache) VCSPatterns(v models.Vulnerability) []string {
	return []string{fmt.Sprintf(`SECURITY:.*\b%s\b`, regexp.QuoteMeta(v.ID))}
}

// glibc fix commits reference the Bugzilla bug as "BZ #NNN", "Bug NNN",
// or the compact "BZNNN".
type glibc struct{}

func (glibc) Name() string { return "glibc" }

func (glibc) VCSPatterns(v models.Vulnerability) []string {
	var patterns []string
	for _, id := range v.BugIDs {
		escaped := regexp.QuoteMeta(id)
		patterns = append(patterns, fmt.Sprintf(`((BZ|Bug).*\b%s\b)|(\bBZ%s\b)`, escaped, escaped))
	}
	return patterns
}

// Package models defines the shared data types that flow through the
// vulnerability history pipeline: changed line ranges, extracted code units,
// commit references, and the rows of the two output tables.
package models

import (
	"encoding/json"
	"fmt"

	log "github.com/sirupsen/logrus"
)

// LineRange is a 1-based inclusive span of source lines. Ranges always
// satisfy Begin <= End when well formed; the zero-begin and zero-length
// sentinels emitted by diff hunk headers are dropped before a LineRange is
// ever constructed.
type LineRange struct {
	Begin int
	End   int
}

// Overlaps reports whether two ranges share at least one line. A malformed
// operand (Begin > End) is logged and treated as non-overlapping.
func (r LineRange) Overlaps(other LineRange) bool {
	if r.Begin > r.End || other.Begin > other.End {
		log.Warnf("Cannot check the overlap between the ranges %v and %v.", r, other)
		return false
	}
	return r.Begin <= other.End && other.Begin <= r.End
}

// MarshalJSON encodes the range as the two-element array used in CSV cells.
func (r LineRange) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]int{r.Begin, r.End})
}

// UnmarshalJSON decodes the two-element array form.
func (r *LineRange) UnmarshalJSON(data []byte) error {
	var pair []int
	if err := json.Unmarshal(data, &pair); err != nil {
		return err
	}
	if len(pair) != 2 {
		return fmt.Errorf("line range must have exactly two elements, got %d", len(pair))
	}
	r.Begin = pair[0]
	r.End = pair[1]
	return nil
}

// CodeUnit is a function or type definition extracted from a source file.
// Kind is set for type-like units (Struct, Union, Class) and omitted for
// functions. Vulnerable holds the literal "Yes" or "No" once the unit has
// been resolved against the changed line ranges, and is omitted until then.
type CodeUnit struct {
	Name       string    `json:"Name"`
	Signature  string    `json:"Signature"`
	Kind       string    `json:"Kind,omitempty"`
	Lines      LineRange `json:"Lines"`
	Vulnerable string    `json:"Vulnerable,omitempty"`
}

// CommitRef is a commit as seen by one traversal. TopologicalIndex and
// Vulnerable depend on the traversal that produced the reference; they are
// not intrinsic properties of the commit.
type CommitRef struct {
	Hash             string
	TopologicalIndex int
	TagName          string
	AuthorDate       string
	Parents          []string
	Vulnerable       bool
}

// AffectedFile is one row of the affected-file table: a source file changed
// by a fix commit, seen from one (vulnerable parent, neutral fix) commit
// pair. A fix commit with several parents produces one row per parent, all
// sharing the neutral side.
type AffectedFile struct {
	FilePath         string
	TopologicalIndex int
	ParentCount      int

	Vulnerable CommitRef
	Neutral    CommitRef

	VulnerableLines []LineRange
	NeutralLines    []LineRange

	VulnerableFunctions []CodeUnit
	VulnerableClasses   []CodeUnit
	NeutralFunctions    []CodeUnit
	NeutralClasses      []CodeUnit

	CVEs             []string
	LastChangeHashes []string
}

// TimelineEntry is one row of the file-timeline table: a file's presence at
// one checkpoint of the alternating neutral/vulnerable sequence. Entries are
// unique per (FilePath, TopologicalIndex, Affected).
type TimelineEntry struct {
	FilePath         string
	TopologicalIndex int
	Affected         bool
	Vulnerable       bool

	CommitHash string
	TagName    string
	AuthorDate string

	ChangedLines      []LineRange
	AffectedFunctions []CodeUnit
	AffectedClasses   []CodeUnit
	CVEs              []string
}

// Vulnerability is one row of the input list: an external vulnerability id
// with its known fix commits. BugIDs and AdvisoryIDs only feed the vendor
// version-control search; they stay empty when the input lacks the columns.
type Vulnerability struct {
	ID           string
	CommitHashes []string
	BugIDs       []string
	AdvisoryIDs  []string
}

package models

import (
	"github.com/voteflow/voteflow/utils"
)

// VoterContact is a single entry from an ingested voter roll. Contacts are
// created by the ingestion adapter and read-only afterwards.
type VoterContact struct {
	Name   string `json:"NAME"`
	Mobile string `json:"MOBILE"`
	Page   int    `json:"PAGE,omitempty"` // source page for scanned documents, 0 otherwise
}

// Usable reports whether the contact carries a deliverable mobile number.
// The extraction service emits sentinel values for unreadable handwriting.
func (v VoterContact) Usable() bool {
	return !utils.IsUnusableMobile(v.Mobile)
}

// VoterList is an ordered sequence of voter contacts.
type VoterList []VoterContact

// Truncate clamps the list to the given ceiling, preserving order. The
// second return value reports whether anything was dropped.
func (l VoterList) Truncate(max int) (VoterList, bool) {
	if max <= 0 || len(l) <= max {
		return l, false
	}
	return l[:max], true
}

// UsableCount returns the number of contacts with a deliverable number.
func (l VoterList) UsableCount() int {
	n := 0
	for _, v := range l {
		if v.Usable() {
			n++
		}
	}
	return n
}

package strike

import (
	"strings"
	"time"
)

// Key addresses one strike counter.
type Key struct {
	InstanceID string
	Identity   string
	Category   Category
}

func (k Key) String() string {
	return k.InstanceID + "/" + k.Identity + "/" + string(k.Category)
}

// Valid reports whether every component of the key is populated.
func (k Key) Valid() bool {
	return strings.TrimSpace(k.InstanceID) != "" && strings.TrimSpace(k.Identity) != "" && k.Category.Valid()
}

// Record is the persisted state of one strike counter.
type Record struct {
	Key
	Title        string
	Count        int
	FirstSeenAt  time.Time
	LastStruckAt time.Time
	LastCycle    string
}

// ActionKind describes what the remediator did with an item.
type ActionKind string

const (
	StrikeOnly     ActionKind = "strike-only"
	RemoveAndBlock ActionKind = "remove-and-block"
)

// Action is one remediation decision, persisted in the action log.
type Action struct {
	ID         string
	CycleID    string
	InstanceID string
	Identity   string
	Title      string
	Kind       ActionKind
	Categories []Category
	Counts     map[Category]int
	Removed    bool
	Blocked    bool
	Researched bool
	Error      string
	At         time.Time
}

// Failed reports whether the action recorded an error.
func (a Action) Failed() bool {
	return strings.TrimSpace(a.Error) != ""
}

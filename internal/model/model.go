// Package model defines the record representation shared by the converter, stores and services.
package model

import (
	"math"
	"time"
)

// Kind is the remote record type of an entity.
type Kind string

// Record kinds mirrored to the remote store.
const (
	KindJournalEntry Kind = "JournalEntry"
	KindGoal         Kind = "Goal"
	KindChatMessage  Kind = "ChatMessage"
	KindPreference   Kind = "UserPreference"
)

// Kinds lists every known record kind.
func Kinds() []Kind {
	return []Kind{KindJournalEntry, KindGoal, KindChatMessage, KindPreference}
}

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	for _, known := range Kinds() {
		if k == known {
			return true
		}
	}
	return false
}

// RecordID addresses a record: identity is unique per kind.
type RecordID struct {
	Kind Kind
	Name string
}

// String renders the id as "Kind/Name".
func (id RecordID) String() string { return string(id.Kind) + "/" + id.Name }

// Record is the generic remote unit. Treat fetched records as immutable;
// build a new Record to represent an update.
type Record struct {
	ID     RecordID
	Fields map[string]Value
}

// Type returns the record kind.
func (r Record) Type() Kind { return r.ID.Kind }

// Get returns the field value, or Null when the field is absent.
func (r Record) Get(name string) Value {
	if v, ok := r.Fields[name]; ok {
		return v
	}
	return Null()
}

// Payload is the untyped key/value form of an entity exchanged with callers.
type Payload = map[string]any

// AccountStatus is the remote store session state.
type AccountStatus int

// Account states reported by stores.
const (
	AccountUnavailable AccountStatus = iota
	AccountAvailable
	AccountRestricted
	AccountNoAccount
	AccountTemporarilyUnavailable
)

// String returns the wire name of the status.
func (s AccountStatus) String() string {
	switch s {
	case AccountAvailable:
		return "available"
	case AccountRestricted:
		return "restricted"
	case AccountNoAccount:
		return "noAccount"
	case AccountTemporarilyUnavailable:
		return "temporarilyUnavailable"
	default:
		return "unavailable"
	}
}

// ParseAccountStatus maps a wire name back to a status; unknown names map to AccountUnavailable.
func ParseAccountStatus(s string) AccountStatus {
	switch s {
	case "available":
		return AccountAvailable
	case "restricted":
		return AccountRestricted
	case "noAccount":
		return AccountNoAccount
	case "temporarilyUnavailable":
		return AccountTemporarilyUnavailable
	default:
		return AccountUnavailable
	}
}

// EpochSeconds converts t to fractional seconds since 1970-01-01T00:00:00Z.
func EpochSeconds(t time.Time) float64 {
	return float64(t.Unix()) + float64(t.Nanosecond())/float64(time.Second)
}

// FromEpochSeconds is the inverse of EpochSeconds.
func FromEpochSeconds(sec float64) time.Time {
	whole, frac := math.Modf(sec)
	return time.Unix(int64(whole), int64(math.Round(frac*float64(time.Second)))).UTC()
}

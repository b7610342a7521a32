// Package convert maps caller payloads to remote records and back.
package convert

import (
	"github.com/and161185/sable-sync/internal/model"
)

// PreferenceIDPrefix prefixes the key to form a preference record name.
const PreferenceIDPrefix = "pref_"

// fieldSpec describes one persisted field of a kind.
//
// writeDefault is stored when the payload lacks the field; readDefault is emitted
// when the record lacks it. A nil readDefault means the field is optional and is
// omitted from the payload.
type fieldSpec struct {
	name         string
	typ          model.ValueType
	writeDefault *model.Value
	readDefault  any
}

func ptr(v model.Value) *model.Value { return &v }

var journalFields = []fieldSpec{
	{name: "content", typ: model.TypeString, readDefault: ""},
	{name: "plainText", typ: model.TypeString, readDefault: ""},
	{name: "timestamp", typ: model.TypeTimestamp, readDefault: float64(0)},
	{name: "updatedAt", typ: model.TypeTimestamp},
	{name: "bucketId", typ: model.TypeString, readDefault: "default"},
	{name: "tags", typ: model.TypeStrings, readDefault: []string{}},
	{name: "moodScore", typ: model.TypeInt},
	{name: "isPrivate", typ: model.TypeBool, writeDefault: ptr(model.Bool(false)), readDefault: false},
	{name: "location", typ: model.TypeString},
	{name: "weather", typ: model.TypeString},
	{name: "stepCount", typ: model.TypeInt},
	{name: "nowPlayingTrack", typ: model.TypeString},
	{name: "nowPlayingArtist", typ: model.TypeString},
}

var goalFields = []fieldSpec{
	{name: "title", typ: model.TypeString, readDefault: ""},
	{name: "description", typ: model.TypeString, readDefault: ""},
	{name: "targetDate", typ: model.TypeTimestamp},
	{name: "createdAt", typ: model.TypeTimestamp},
	{name: "progress", typ: model.TypeDouble, readDefault: float64(0)},
	{name: "isCompleted", typ: model.TypeBool, writeDefault: ptr(model.Bool(false)), readDefault: false},
	{name: "checkInFrequencyDays", typ: model.TypeInt, readDefault: int64(7)},
}

var chatMessageFields = []fieldSpec{
	{name: "role", typ: model.TypeString, readDefault: "user"},
	{name: "content", typ: model.TypeString, readDefault: ""},
	{name: "timestamp", typ: model.TypeTimestamp, readDefault: float64(0)},
	{name: "contextType", typ: model.TypeString},
}

var preferenceFields = []fieldSpec{
	{name: "key", typ: model.TypeString},
	{name: "value", typ: model.TypeString},
	{name: "updatedAt", typ: model.TypeTimestamp},
}

var schemas = map[model.Kind][]fieldSpec{
	model.KindJournalEntry: journalFields,
	model.KindGoal:         goalFields,
	model.KindChatMessage:  chatMessageFields,
	model.KindPreference:   preferenceFields,
}

// FieldNames returns the persisted field names for kind, excluding the identity field.
func FieldNames(kind model.Kind) []string {
	specs := schemas[kind]
	out := make([]string, 0, len(specs))
	for _, f := range specs {
		out = append(out, f.name)
	}
	return out
}

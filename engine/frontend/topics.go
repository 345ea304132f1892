// Package frontend is the thin view over the query service: a fixed topic
// catalogue, query synthesis, and the HTTP handlers serving the advice form.
package frontend

import "strings"

// Other is the catalogue entry that switches to free text.
const Other = "Other"

// Topics are the issues offered in the selector, in display order.
var Topics = []string{
	"Depression",
	"Anxiety",
	"PTSD",
	"Bipolar Disorder",
	"Schizophrenia",
	Other,
}

// IsTopic reports whether t is a catalogue entry.
func IsTopic(t string) bool {
	for _, v := range Topics {
		if v == t {
			return true
		}
	}
	return false
}

// BuildQuery turns a selection into the text sent to the query service, and
// returns the label to show above the advice. For a catalogue topic other
// than Other the query is synthesized; for Other (or an unknown topic) the
// custom text is used as typed. Both are "" when nothing usable was given.
func BuildQuery(topic, custom string) (query, label string) {
	topic = strings.TrimSpace(topic)
	custom = strings.TrimSpace(custom)
	if topic != "" && topic != Other && IsTopic(topic) {
		return "Provide advice for treating " + topic, topic
	}
	return custom, custom
}

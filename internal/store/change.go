package store

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

type EventType string

const (
	EventInsert EventType = "INSERT"
	EventUpdate EventType = "UPDATE"
	EventDelete EventType = "DELETE"
)

// Change is a notification that a row changed. Row carries whatever
// attributes the feed knows about and may be empty.
type Change struct {
	Table string                 `json:"table"`
	Type  EventType              `json:"type"`
	ID    string                 `json:"id"`
	Row   map[string]interface{} `json:"row,omitempty"`
	At    time.Time              `json:"at"`
}

// Scope selects the changes a subscriber cares about. Empty Events means all
// event types; an empty Field means every row of the table.
type Scope struct {
	Table  string      `json:"table"`
	Events []EventType `json:"events,omitempty"`
	Field  string      `json:"field,omitempty"`
	Value  string      `json:"value,omitempty"`
}

// Matches reports whether c falls inside the scope. A change that does not
// carry the filtered field matches, since the feed already narrowed it.
func (s Scope) Matches(c Change) bool {
	if s.Table != c.Table {
		return false
	}
	if len(s.Events) > 0 {
		ok := false
		for _, e := range s.Events {
			if e == c.Type {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	if s.Field == "" {
		return true
	}
	v, ok := c.Row[s.Field]
	if !ok || v == nil {
		return true
	}
	return fmt.Sprint(v) == s.Value
}

// Key is a stable identity for the scope, used to share feed connections.
func (s Scope) Key() string {
	events := "*"
	if len(s.Events) > 0 {
		parts := make([]string, len(s.Events))
		for i, e := range s.Events {
			parts[i] = string(e)
		}
		sort.Strings(parts)
		events = strings.Join(parts, ",")
	}
	if s.Field == "" {
		return s.Table + "/" + events
	}
	return s.Table + "/" + events + "/" + s.Field + "=" + s.Value
}

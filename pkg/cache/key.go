package cache

import "strings"

// Key identifies a cached query: the entity or aggregate name followed by its
// parameters, e.g. Key{"telemetry", vehicleID, "history", "24"}.
type Key []string

func K(parts ...string) Key {
	return Key(parts)
}

func (k Key) String() string {
	return strings.Join(k, ":")
}

// Name is the first part, used as a bounded metrics label.
func (k Key) Name() string {
	if len(k) == 0 {
		return ""
	}
	return k[0]
}

// HasPrefix reports whether p matches k on whole parts.
func (k Key) HasPrefix(p Key) bool {
	if len(p) > len(k) {
		return false
	}
	for i := range p {
		if k[i] != p[i] {
			return false
		}
	}
	return true
}

func (k Key) Equal(o Key) bool {
	return len(k) == len(o) && k.HasPrefix(o)
}

// Prefixes returns every non-empty prefix of k, shortest first.
func (k Key) Prefixes() []Key {
	out := make([]Key, 0, len(k))
	for i := 1; i <= len(k); i++ {
		out = append(out, k[:i:i])
	}
	return out
}

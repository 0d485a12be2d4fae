// Package featureflags gates optional marketplace behavior through the
// FEATURE_FLAGS setting.
package featureflags

import (
	"fmt"
	"hash/fnv"
	"sort"
	"strconv"
	"strings"
)

// Flag names one toggle.
type Flag string

// Flags read by the marketplace.
const (
	// ConversationSystemMessages emits request_accepted system messages
	// when a recipient accepts a conversation.
	ConversationSystemMessages Flag = "conversation_system_messages"
	// ListingStatusMessages posts reserved/sold notices into listing threads.
	ListingStatusMessages Flag = "listing_status_messages"
)

// Known describes every flag the marketplace reads.
var Known = map[Flag]string{
	ConversationSystemMessages: "post request_accepted into threads when a request is accepted",
	ListingStatusMessages:      "post reserved/sold notices into listing threads",
}

// rollout is the share of players, 0 to 100, a flag is on for.
type rollout int

// Manager answers flag checks. A nil Manager reports every flag off.
type Manager struct {
	rules map[Flag]rollout
}

// Parse reads "name[=on|off|N%],...". A bare name means on.
func Parse(raw string) (*Manager, error) {
	m := &Manager{rules: make(map[Flag]rollout)}
	for _, entry := range strings.Split(raw, ",") {
		name, value, hasValue := strings.Cut(entry, "=")
		name = normalize(name)
		if name == "" {
			continue
		}
		if !hasValue {
			value = "on"
		}
		r, err := parseRollout(normalize(value))
		if err != nil {
			return nil, fmt.Errorf("flag %s: %w", name, err)
		}
		m.rules[Flag(name)] = r
	}
	return m, nil
}

// NewManager is Parse that skips malformed entries instead of failing.
// Config validation reports them at startup.
func NewManager(raw string) *Manager {
	m := &Manager{rules: make(map[Flag]rollout)}
	for _, entry := range strings.Split(raw, ",") {
		single, err := Parse(entry)
		if err != nil {
			continue
		}
		for name, r := range single.rules {
			m.rules[name] = r
		}
	}
	return m
}

func parseRollout(value string) (rollout, error) {
	switch value {
	case "on", "true", "1":
		return 100, nil
	case "off", "false", "0":
		return 0, nil
	}
	pct, ok := strings.CutSuffix(value, "%")
	if !ok {
		return 0, fmt.Errorf("unsupported value %q", value)
	}
	n, err := strconv.Atoi(pct)
	if err != nil || n < 0 || n > 100 {
		return 0, fmt.Errorf("rollout %q must be 0%% to 100%%", value)
	}
	return rollout(n), nil
}

// Enabled reports whether flag is on for playerID. Partial rollouts are
// deterministic per player and always off for player 0.
func (m *Manager) Enabled(flag Flag, playerID uint) bool {
	if m == nil {
		return false
	}
	r := m.rules[Flag(normalize(string(flag)))]
	switch {
	case r >= 100:
		return true
	case r <= 0, playerID == 0:
		return false
	}
	return bucket(flag, playerID) < int(r)
}

// State is the admin view of one configured flag.
type State struct {
	Name        Flag   `json:"name"`
	Description string `json:"description,omitempty"`
	Rollout     int    `json:"rollout_percent"`
	Enabled     bool   `json:"enabled"`
}

// Snapshot lists configured and known flags as seen by playerID, sorted by
// name.
func (m *Manager) Snapshot(playerID uint) []State {
	names := make(map[Flag]bool, len(Known))
	for name := range Known {
		names[name] = true
	}
	if m != nil {
		for name := range m.rules {
			names[name] = true
		}
	}

	out := make([]State, 0, len(names))
	for name := range names {
		s := State{Name: name, Description: Known[name], Enabled: m.Enabled(name, playerID)}
		if m != nil {
			s.Rollout = int(m.rules[name])
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func bucket(flag Flag, playerID uint) int {
	h := fnv.New32a()
	_, _ = fmt.Fprintf(h, "%s:%d", normalize(string(flag)), playerID)
	return int(h.Sum32() % 100)
}

package shared

import "strings"

// SystemSymbol identifies a star system, e.g. "X1-GZ7".
type SystemSymbol string

// WaypointSymbol identifies a waypoint and embeds its system symbol:
// "X1-GZ7-A1" belongs to system "X1-GZ7".
type WaypointSymbol string

// System returns the system a waypoint belongs to by stripping the final
// dash-separated segment.
func (w WaypointSymbol) System() SystemSymbol {
	s := string(w)
	idx := strings.LastIndex(s, "-")
	if idx < 0 {
		return SystemSymbol(s)
	}
	return SystemSymbol(s[:idx])
}

func (w WaypointSymbol) String() string { return string(w) }

func (s SystemSymbol) String() string { return string(s) }

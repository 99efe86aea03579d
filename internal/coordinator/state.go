package coordinator

// State is the lifecycle state of a named index.
type State int

const (
	// Absent means no storage exists for the name.
	Absent State = iota

	// Created means storage is allocated but no resource has been opened yet.
	Created

	// Active means at least one resource lookup has succeeded.
	Active

	// Unloading means removal has begun. New lookups and writers are refused
	// while already acquired handles finish.
	Unloading

	// Deleted means storage is gone. The name may be created again.
	Deleted
)

var stateNames = [...]string{
	Absent:    "absent",
	Created:   "created",
	Active:    "active",
	Unloading: "unloading",
	Deleted:   "deleted",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// exists reports whether the state has storage that can be looked up.
func (s State) exists() bool {
	return s == Created || s == Active
}

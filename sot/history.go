package sot

// ClassHistory remembers recently confirmed class IDs of the target.
// With flexible matching a class seen recently is as good as the locked one,
// which tolerates label flicker such as car <-> truck.
type ClassHistory struct {
	locked   int
	flexible bool
	classes  []int
	maxLen   int
}

// NewClassHistory creates history for the locked class
func NewClassHistory(locked int, maxLen int, flexible bool) *ClassHistory {
	history := &ClassHistory{
		locked:   locked,
		flexible: flexible,
		classes:  make([]int, 0, maxLen),
		maxLen:   maxLen,
	}
	history.Add(locked)
	return history
}

// Add records a confirmed class ID, dropping the oldest one when full
func (history *ClassHistory) Add(classID int) {
	history.classes = append(history.classes, classID)
	if len(history.classes) > history.maxLen {
		history.classes = history.classes[1:]
	}
}

// Compatible reports whether a candidate class may belong to the target
func (history *ClassHistory) Compatible(classID int) bool {
	if classID == history.locked {
		return true
	}
	if !history.flexible {
		return false
	}
	for _, seen := range history.classes {
		if seen == classID {
			return true
		}
	}
	return false
}

// Classes returns copy of the remembered class IDs, oldest first
func (history *ClassHistory) Classes() []int {
	return append([]int(nil), history.classes...)
}

// trackingHistory is a bounded log of confirmed detections.
// It is never consulted for matching decisions.
type trackingHistory struct {
	entries []HistoryEntry
	maxLen  int
}

func newTrackingHistory(maxLen int) *trackingHistory {
	return &trackingHistory{
		entries: make([]HistoryEntry, 0, maxLen),
		maxLen:  maxLen,
	}
}

func (history *trackingHistory) add(entry HistoryEntry) {
	history.entries = append(history.entries, entry)
	if len(history.entries) > history.maxLen {
		history.entries = history.entries[1:]
	}
}

func (history *trackingHistory) snapshot() []HistoryEntry {
	return append([]HistoryEntry(nil), history.entries...)
}

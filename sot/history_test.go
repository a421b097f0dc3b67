package sot

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassHistory(t *testing.T) {
	history := NewClassHistory(2, 3, true)
	assert.True(t, history.Compatible(2))
	assert.False(t, history.Compatible(7))

	history.Add(7)
	assert.True(t, history.Compatible(7))

	history.Add(2)
	history.Add(2)
	assert.Equal(t, []int{7, 2, 2}, history.Classes())

	history.Add(2)
	assert.False(t, history.Compatible(7))
	assert.True(t, history.Compatible(2))
}

func TestClassHistoryStrict(t *testing.T) {
	history := NewClassHistory(2, 3, false)
	history.Add(7)
	assert.False(t, history.Compatible(7))
	assert.True(t, history.Compatible(2))
}

func TestTrackingHistory(t *testing.T) {
	history := newTrackingHistory(2)
	history.add(HistoryEntry{Frame: 1})
	history.add(HistoryEntry{Frame: 2})
	history.add(HistoryEntry{Frame: 3})

	snapshot := history.snapshot()
	assert.Equal(t, []HistoryEntry{{Frame: 2}, {Frame: 3}}, snapshot)

	snapshot[0].Frame = 100
	assert.Equal(t, 2, history.snapshot()[0].Frame)
}

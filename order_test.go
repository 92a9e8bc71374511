package otrace

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSortSnapshotByTimestampThenTidThenSeq(t *testing.T) {
	events := []CleanEvent{
		{Ts: 5, TID: 2, Seq: 1, Name: "c"},
		{Ts: 1, TID: 1, Seq: 1, Name: "a"},
		{Ts: 1, TID: 1, Seq: 0, Name: "b"},
		{Ts: 1, TID: 0, Seq: 0, Name: "meta"},
	}
	sortSnapshot(events)
	names := make([]string, len(events))
	for i, e := range events {
		names[i] = e.Name
	}
	assert.Equal(t, []string{"meta", "b", "a", "c"}, names)
}

func TestSortSnapshotStableOnTies(t *testing.T) {
	events := []CleanEvent{
		{Ts: 1, TID: 1, Seq: 1, Name: "first"},
		{Ts: 1, TID: 1, Seq: 1, Name: "second"},
	}
	sortSnapshot(events)
	assert.Equal(t, "first", events[0].Name)
	assert.Equal(t, "second", events[1].Name)
}

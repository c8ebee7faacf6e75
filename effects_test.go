package idgov

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEventsTake(t *testing.T) {
	events := NewEvents([]Event{
		{Type: "a", Contents: []byte{1}},
		{Type: "b", Contents: []byte{2}},
		{Type: "a", Contents: []byte{3}},
	})

	ev, ok := events.Take(func(e Event) bool { return e.Type == "a" })
	require.True(t, ok)
	require.Equal(t, []byte{1}, ev.Contents)
	require.Equal(t, 2, events.Len())

	// A consumed event is never matched again.
	ev, ok = events.Take(func(e Event) bool { return e.Type == "a" })
	require.True(t, ok)
	require.Equal(t, []byte{3}, ev.Contents)

	_, ok = events.Take(func(e Event) bool { return e.Type == "a" })
	require.False(t, ok)
	require.Equal(t, []Event{{Type: "b", Contents: []byte{2}}}, events.All())
}

func TestEffectsHelpers(t *testing.T) {
	shared := MustParseObjectID("0x1")
	owned := MustParseObjectID("0x2")
	gone := MustParseObjectID("0x3")
	e := Effects{
		Created: []OwnedObjectRef{
			{Ref: ObjectRef{ID: shared}, Owner: SharedOwner(4)},
			{Ref: ObjectRef{ID: owned}, Owner: OwnedBy(Address(shared))},
		},
		Deleted: []ObjectRef{{ID: gone}},
	}
	require.Equal(t, []ObjectID{shared}, e.CreatedShared())
	require.True(t, e.IsDeleted(gone))
	require.False(t, e.IsDeleted(owned))
}

package identity

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBindings_Bind(t *testing.T) {
	b := NewBindings()

	assert.Equal(t, "", b.Bind("alice", "c1"))
	conn, ok := b.Connection("alice")
	assert.True(t, ok)
	assert.Equal(t, "c1", conn)

	who, ok := b.Identity("c1")
	assert.True(t, ok)
	assert.Equal(t, "alice", who)

	// rebinding the same pair is not a replacement
	assert.Equal(t, "", b.Bind("alice", "c1"))

	// a second connection supersedes the first
	assert.Equal(t, "c1", b.Bind("alice", "c2"))
	_, ok = b.Identity("c1")
	assert.False(t, ok)
	assert.Equal(t, 1, b.Connections())
}

func TestBindings_BindMovesConnection(t *testing.T) {
	b := NewBindings()
	b.Bind("alice", "c1")

	b.Bind("bob", "c1")

	_, ok := b.Connection("alice")
	assert.False(t, ok)
	who, _ := b.Identity("c1")
	assert.Equal(t, "bob", who)
}

func TestBindings_Unbind(t *testing.T) {
	b := NewBindings()
	b.Bind("alice", "c1")
	b.Bind("alice", "c2")

	// stale connection leaves the newer binding alone
	assert.False(t, b.Unbind("alice", "c1"))
	conn, ok := b.Connection("alice")
	assert.True(t, ok)
	assert.Equal(t, "c2", conn)

	assert.True(t, b.Unbind("alice", "c2"))
	assert.Equal(t, 0, b.Connections())
}

func TestBindings_Seats(t *testing.T) {
	b := NewBindings()
	b.SetSeat("alice", Assignment{SessionID: "ABC123", SeatID: "s1"})
	b.SetSeat("bob", Assignment{SessionID: "ABC123", SeatID: "s2"})
	b.SetSeat("carol", Assignment{SessionID: "XYZ789", SeatID: "s3"})

	a, ok := b.Seat("alice")
	assert.True(t, ok)
	assert.Equal(t, "s1", a.SeatID)

	b.ClearSeat("alice")
	_, ok = b.Seat("alice")
	assert.False(t, ok)

	b.SetSeat("alice", Assignment{SessionID: "ABC123", SeatID: "s1"})
	cleared := b.ClearSession("ABC123")
	sort.Strings(cleared)
	assert.Equal(t, []string{"alice", "bob"}, cleared)

	_, ok = b.Seat("carol")
	assert.True(t, ok)
}

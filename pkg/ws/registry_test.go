package ws

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	id string

	mu   sync.Mutex
	msgs [][]byte
	err  error
	pan  bool
}

func newFakeConn(id string) *fakeConn {
	return &fakeConn{id: id}
}

func (c *fakeConn) ID() string { return c.id }

func (c *fakeConn) Send(_ context.Context, data []byte) error {
	if c.pan {
		panic("boom")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.msgs = append(c.msgs, data)
	return nil
}

func (c *fakeConn) received() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.msgs))
	for i, m := range c.msgs {
		out[i] = string(m)
	}
	return out
}

func TestRegistryJoinLeave(t *testing.T) {
	r := NewRegistry()
	a, b := newFakeConn("a"), newFakeConn("b")

	assert.True(t, r.Join(a, "/blog/1"), "first join creates the room")
	assert.False(t, r.Join(b, "/blog/1"))
	assert.Equal(t, 2, r.MemberCount("/blog/1"))
	assert.Equal(t, 1, r.RoomCount())

	assert.False(t, r.Leave(a, "/blog/1"))
	assert.True(t, r.HasRoom("/blog/1"))
	assert.True(t, r.Leave(b, "/blog/1"), "last leave destroys the room")
	assert.False(t, r.HasRoom("/blog/1"))
	assert.Zero(t, r.RoomCount())
}

func TestRegistryLeaveNoop(t *testing.T) {
	r := NewRegistry()
	a, b := newFakeConn("a"), newFakeConn("b")

	assert.False(t, r.Leave(a, "/missing"))

	r.Join(a, "/x")
	assert.False(t, r.Leave(b, "/x"), "non-member leave")
	assert.Equal(t, 1, r.MemberCount("/x"))

	assert.True(t, r.Leave(a, "/x"))
	assert.False(t, r.Leave(a, "/x"), "second leave")
	assert.Empty(t, r.Rooms())
}

func TestRegistryMembersExcluding(t *testing.T) {
	r := NewRegistry()
	a, b, c := newFakeConn("a"), newFakeConn("b"), newFakeConn("c")
	r.Join(a, "/r")
	r.Join(b, "/r")
	r.Join(c, "/r")

	got := r.MembersExcluding("/r", b)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].ID())
	assert.Equal(t, "c", got[1].ID())

	assert.Len(t, r.MembersExcluding("/r", nil), 3)
	assert.Len(t, r.MembersExcluding("/r", newFakeConn("stranger")), 3)
	assert.Empty(t, r.MembersExcluding("/none", nil))
}

func TestRegistrySnapshotIsolation(t *testing.T) {
	r := NewRegistry()
	a, b := newFakeConn("a"), newFakeConn("b")
	r.Join(a, "/r")
	r.Join(b, "/r")

	snap := r.Members("/r")
	r.Leave(a, "/r")
	r.Join(newFakeConn("c"), "/r")

	require.Len(t, snap, 2)
	assert.Equal(t, "a", snap[0].ID())
	assert.Equal(t, "b", snap[1].ID())
}

func TestRegistrySameConnMultipleRooms(t *testing.T) {
	r := NewRegistry()
	a := newFakeConn("a")
	r.Join(a, "/a")
	r.Join(a, "/b")

	assert.Equal(t, []string{"/a", "/b"}, r.Rooms())
	assert.True(t, r.Leave(a, "/a"))
	assert.Equal(t, []string{"/b"}, r.Rooms())
}

func TestRegistryConcurrent(t *testing.T) {
	r := NewRegistry()
	const n = 64

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c := newFakeConn(fmt.Sprintf("c%d", i))
			room := fmt.Sprintf("/room/%d", i%4)
			r.Join(c, room)
			_ = r.MembersExcluding(room, c)
			r.Leave(c, room)
		}(i)
	}
	wg.Wait()

	assert.Zero(t, r.RoomCount(), "no empty rooms remain")
}

func TestRegistryCreatedDestroyedExactlyOnce(t *testing.T) {
	r := NewRegistry()
	const n = 100

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		created   int
		destroyed int
	)
	conns := make([]*fakeConn, n)
	for i := range conns {
		conns[i] = newFakeConn(fmt.Sprintf("c%d", i))
	}
	for _, c := range conns {
		wg.Add(1)
		go func(c *fakeConn) {
			defer wg.Done()
			if r.Join(c, "/hot") {
				mu.Lock()
				created++
				mu.Unlock()
			}
		}(c)
	}
	wg.Wait()
	for _, c := range conns {
		wg.Add(1)
		go func(c *fakeConn) {
			defer wg.Done()
			if r.Leave(c, "/hot") {
				mu.Lock()
				destroyed++
				mu.Unlock()
			}
		}(c)
	}
	wg.Wait()

	assert.Equal(t, 1, created)
	assert.Equal(t, 1, destroyed)
	assert.False(t, r.HasRoom("/hot"))
}

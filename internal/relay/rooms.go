// Package relay tracks room membership. Every user implicitly owns one room
// named after their identifier; membership is the set of connections that
// joined it.
package relay

import "sync"

// RoomIndex maps room identifiers to their member connections. Rooms exist
// implicitly: an entry appears on first join and is dropped the moment the
// last member leaves, so an empty room is indistinguishable from one that
// never existed.
//
// All mutation happens on the hub's event loop; the mutex exists so that
// shutdown and tests can take consistent snapshots from other goroutines.
type RoomIndex struct {
	mu    sync.RWMutex
	rooms map[string]map[*Client]struct{}
}

// NewRoomIndex creates an empty membership index.
func NewRoomIndex() *RoomIndex {
	return &RoomIndex{rooms: make(map[string]map[*Client]struct{})}
}

// Join adds the connection to the room's member set. Joining a room the
// connection is already a member of is a no-op.
func (ri *RoomIndex) Join(c *Client, roomID string) {
	if c == nil || roomID == "" {
		return
	}

	ri.mu.Lock()
	defer ri.mu.Unlock()

	members, ok := ri.rooms[roomID]
	if !ok {
		members = make(map[*Client]struct{})
		ri.rooms[roomID] = members
	}
	members[c] = struct{}{}
	c.joined[roomID] = struct{}{}
}

// Leave removes the connection from the room. Unknown rooms and non-members
// are no-ops; the room entry is dropped when its member set becomes empty.
func (ri *RoomIndex) Leave(c *Client, roomID string) {
	if c == nil {
		return
	}

	ri.mu.Lock()
	defer ri.mu.Unlock()

	ri.leaveLocked(c, roomID)
}

// LeaveAll removes the connection from every room it had joined. Called on
// disconnect.
func (ri *RoomIndex) LeaveAll(c *Client) {
	if c == nil {
		return
	}

	ri.mu.Lock()
	defer ri.mu.Unlock()

	for roomID := range c.joined {
		ri.leaveLocked(c, roomID)
	}
}

func (ri *RoomIndex) leaveLocked(c *Client, roomID string) {
	members, ok := ri.rooms[roomID]
	if !ok {
		return
	}
	delete(members, c)
	delete(c.joined, roomID)
	if len(members) == 0 {
		delete(ri.rooms, roomID)
	}
}

// Members returns a snapshot of the room's current member set, empty if the
// room has none.
func (ri *RoomIndex) Members(roomID string) []*Client {
	ri.mu.RLock()
	defer ri.mu.RUnlock()

	members := ri.rooms[roomID]
	snapshot := make([]*Client, 0, len(members))
	for c := range members {
		snapshot = append(snapshot, c)
	}
	return snapshot
}

// Contains reports whether the room currently has any members.
func (ri *RoomIndex) Contains(roomID string) bool {
	ri.mu.RLock()
	defer ri.mu.RUnlock()

	_, ok := ri.rooms[roomID]
	return ok
}

// RoomCount returns the number of rooms with at least one member.
func (ri *RoomIndex) RoomCount() int {
	ri.mu.RLock()
	defer ri.mu.RUnlock()

	return len(ri.rooms)
}

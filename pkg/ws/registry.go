package ws

import (
	"context"
	"sort"
	"sync"
)

// Conn 房间成员句柄
// Registry 只持有引用，连接生命周期由传输层负责
type Conn interface {
	// ID 连接唯一标识（连接存续期间不变）
	ID() string
	// Send 投递一条已编码的消息，必须非阻塞或有超时上限
	Send(ctx context.Context, data []byte) error
}

// Registry 房间注册表
// 房间在首个成员加入时创建，最后一个成员离开时删除，不存在空房间条目。
// 成员切片采用写时复制，已交出的快照不会再被修改。
type Registry struct {
	mu    sync.RWMutex
	rooms map[string][]Conn
}

// NewRegistry 创建房间注册表
func NewRegistry() *Registry {
	return &Registry{rooms: make(map[string][]Conn)}
}

// Join 加入房间，返回本次调用是否创建了房间
func (r *Registry) Join(conn Conn, room string) (created bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	members, ok := r.rooms[room]
	next := make([]Conn, len(members), len(members)+1)
	copy(next, members)
	r.rooms[room] = append(next, conn)
	return !ok
}

// Leave 离开房间，返回本次调用是否删除了房间
// 房间或连接不存在时为空操作
func (r *Registry) Leave(conn Conn, room string) (destroyed bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	members, ok := r.rooms[room]
	if !ok {
		return false
	}
	idx := -1
	for i, m := range members {
		if m == conn {
			idx = i
			break
		}
	}
	if idx < 0 {
		return false
	}
	if len(members) == 1 {
		delete(r.rooms, room)
		return true
	}

	next := make([]Conn, 0, len(members)-1)
	next = append(next, members[:idx]...)
	next = append(next, members[idx+1:]...)
	r.rooms[room] = next
	return false
}

// MembersExcluding 返回房间内除 excluded 以外的成员快照（按加入顺序）
// excluded 为 nil 时返回全部成员；房间不存在时返回空切片
func (r *Registry) MembersExcluding(room string, excluded Conn) []Conn {
	r.mu.RLock()
	members := r.rooms[room]
	r.mu.RUnlock()

	out := make([]Conn, 0, len(members))
	for _, m := range members {
		if excluded != nil && m == excluded {
			continue
		}
		out = append(out, m)
	}
	return out
}

// Members 返回房间全部成员快照
func (r *Registry) Members(room string) []Conn {
	return r.MembersExcluding(room, nil)
}

// HasRoom 房间是否存在
func (r *Registry) HasRoom(room string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.rooms[room]
	return ok
}

// MemberCount 房间成员数
func (r *Registry) MemberCount(room string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms[room])
}

// RoomCount 房间数量
func (r *Registry) RoomCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}

// Rooms 返回排序后的房间列表
func (r *Registry) Rooms() []string {
	r.mu.RLock()
	rooms := make([]string, 0, len(r.rooms))
	for room := range r.rooms {
		rooms = append(rooms, room)
	}
	r.mu.RUnlock()
	sort.Strings(rooms)
	return rooms
}

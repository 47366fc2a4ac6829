package monitor

import (
	"sync"
	"sync/atomic"

	"go-sysdash/internal/models"
)

// DefaultHistorySize 历史环默认容量
const DefaultHistorySize = 5

// Store 持有当前快照和一个有界的历史环。
// Current 只做一次原子读取；Publish 由唯一的写者（采集器）调用，
// 先把完整的快照放进环，再原子替换当前指针
type Store struct {
	current atomic.Pointer[models.Snapshot]
	updated atomic.Pointer[chan struct{}]

	mutex sync.RWMutex // 保护 ring/head/size
	ring  []*models.Snapshot
	head  int // 下一个写入位置
	size  int
	seq   uint64
}

// NewStore 创建快照存储，capacity <= 0 时使用 DefaultHistorySize
func NewStore(capacity int) *Store {
	if capacity <= 0 {
		capacity = DefaultHistorySize
	}
	s := &Store{
		ring: make([]*models.Snapshot, capacity),
	}
	ch := make(chan struct{})
	s.updated.Store(&ch)
	return s
}

// Capacity 历史环容量
func (s *Store) Capacity() int {
	return len(s.ring)
}

// Publish 发布一份新快照。比当前快照旧的快照会被拒绝，保证读者看到的快照单调不回退
func (s *Store) Publish(snap *models.Snapshot) bool {
	if snap == nil {
		return false
	}

	s.mutex.Lock()
	cur := s.current.Load()
	if cur != nil && snap.Timestamp.Before(cur.Timestamp) {
		s.mutex.Unlock()
		return false
	}

	s.seq++
	snap.Seq = s.seq

	s.ring[s.head] = snap
	s.head = (s.head + 1) % len(s.ring)
	if s.size < len(s.ring) {
		s.size++
	}
	s.current.Store(snap)

	next := make(chan struct{})
	prev := s.updated.Swap(&next)
	s.mutex.Unlock()

	close(*prev)
	return true
}

// Current 返回当前快照，尚未发布任何快照时返回 nil
func (s *Store) Current() *models.Snapshot {
	return s.current.Load()
}

// History 按从新到旧的顺序返回历史快照。每次调用返回新的切片
func (s *Store) History() []*models.Snapshot {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	out := make([]*models.Snapshot, 0, s.size)
	for i := 1; i <= s.size; i++ {
		idx := (s.head - i + len(s.ring)) % len(s.ring)
		out = append(out, s.ring[idx])
	}
	return out
}

// Len 历史环中的快照数量
func (s *Store) Len() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.size
}

// Updated 返回一个在下一次发布时关闭的通道
func (s *Store) Updated() <-chan struct{} {
	return *s.updated.Load()
}

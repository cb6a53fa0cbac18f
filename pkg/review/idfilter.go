package review

import (
	"encoding/binary"
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
)

const (
	minFilterCapacity = 10000
	filterFPRate      = 0.001
)

// idFilter 已知评测 id 的布隆过滤器
// Test 返回 false 时 id 一定不存在；删除不会从过滤器中移除，由存储兜底，定期 Rebuild 清理。
type idFilter struct {
	rebuildMu sync.Mutex

	mu         sync.RWMutex
	filter     *bloom.BloomFilter
	rebuilding bool
	pending    []uint // 重建期间新增的 id
}

func newIDFilter(capacity int) *idFilter {
	return &idFilter{filter: newBloom(capacity)}
}

func newBloom(capacity int) *bloom.BloomFilter {
	if capacity < minFilterCapacity {
		capacity = minFilterCapacity
	}
	return bloom.NewWithEstimates(uint(capacity), filterFPRate)
}

func idKey(id uint) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(id))
	return b[:]
}

func (f *idFilter) Add(id uint) {
	f.mu.Lock()
	f.filter.Add(idKey(id))
	if f.rebuilding {
		f.pending = append(f.pending, id)
	}
	f.mu.Unlock()
}

func (f *idFilter) Test(id uint) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.filter.Test(idKey(id))
}

// Rebuild 以 load 返回的 id 重建，容量取数量的两倍
// load 执行期间 Add 的 id 会并入新过滤器；load 失败时保留旧过滤器。
func (f *idFilter) Rebuild(load func() ([]uint, error)) (int, error) {
	f.rebuildMu.Lock()
	defer f.rebuildMu.Unlock()

	f.mu.Lock()
	f.rebuilding = true
	f.pending = nil
	f.mu.Unlock()

	ids, err := load()

	f.mu.Lock()
	defer f.mu.Unlock()
	f.rebuilding = false
	pending := f.pending
	f.pending = nil
	if err != nil {
		return 0, err
	}

	next := newBloom((len(ids) + len(pending)) * 2)
	for _, id := range ids {
		next.Add(idKey(id))
	}
	for _, id := range pending {
		next.Add(idKey(id))
	}
	f.filter = next
	return len(ids), nil
}

package state

import "container/list"

// SeenSet is a capacity-bounded LRU of PrimeFound numbers, so a rediscovered
// number is reported at most once while it stays within the retention window.
// Not thread-safe; only accessed from the single-threaded aggregator loop.
type SeenSet struct {
	capacity int
	cache    map[uint64]*list.Element
	order    *list.List

	evictions int64
}

type seenEntry struct {
	number uint64
}

func NewSeenSet(capacity int) *SeenSet {
	if capacity <= 0 {
		capacity = 1
	}
	return &SeenSet{
		capacity: capacity,
		cache:    make(map[uint64]*list.Element, capacity),
		order:    list.New(),
	}
}

// Observe records a number and reports whether this is its first sighting.
// A repeat sighting promotes the number to most-recently-seen.
func (s *SeenSet) Observe(n uint64) bool {
	if elem, exists := s.cache[n]; exists {
		s.order.MoveToFront(elem)
		return false
	}

	elem := s.order.PushFront(&seenEntry{number: n})
	s.cache[n] = elem

	if s.order.Len() > s.capacity {
		s.evictOldest()
	}
	return true
}

func (s *SeenSet) evictOldest() {
	elem := s.order.Back()
	if elem != nil {
		s.order.Remove(elem)
		entry := elem.Value.(*seenEntry)
		delete(s.cache, entry.number)
		s.evictions++
	}
}

// Size returns current number of entries
func (s *SeenSet) Size() int {
	return s.order.Len()
}

// Evictions returns total evictions (for metrics)
func (s *SeenSet) Evictions() int64 {
	return s.evictions
}

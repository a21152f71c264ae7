package messages

import "roomkit/domain"

// messageCache is the bounded recency cache mapping message identity
// to its latest known snapshot. Insertion order drives eviction: when
// the cache is full the oldest identity goes first. Not safe for
// concurrent use; the owning feature serializes access.
type messageCache struct {
	capacity int
	entries  map[string]domain.Message
	order    []string
}

func newMessageCache(capacity int) *messageCache {
	return &messageCache{
		capacity: capacity,
		entries:  make(map[string]domain.Message),
	}
}

func (c *messageCache) get(serial string) (domain.Message, bool) {
	m, ok := c.entries[serial]
	return m, ok
}

// put stores the latest snapshot of an identity, evicting the oldest
// identities when over capacity.
func (c *messageCache) put(m domain.Message) {
	if _, exists := c.entries[m.Serial]; !exists {
		c.order = append(c.order, m.Serial)
	}
	c.entries[m.Serial] = m
	for c.capacity > 0 && len(c.order) > c.capacity {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}
}

func (c *messageCache) len() int {
	return len(c.entries)
}

func (c *messageCache) clear() {
	c.entries = make(map[string]domain.Message)
	c.order = nil
}

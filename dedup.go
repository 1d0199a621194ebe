package meshchat

import (
	"sync"

	"github.com/outofforest/meshchat/wire"
)

// dedupCache stores the ids of all the flooded messages processed by the node.
// Entries are never evicted.
type dedupCache struct {
	mu   sync.Mutex
	seen map[wire.MessageID]struct{}
}

func newDedupCache() *dedupCache {
	return &dedupCache{
		seen: map[wire.MessageID]struct{}{},
	}
}

// Add marks the message as processed. It returns false if it was processed before.
func (c *dedupCache) Add(id wire.MessageID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.seen[id]; exists {
		return false
	}
	c.seen[id] = struct{}{}
	return true
}

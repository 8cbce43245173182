package services

import (
	"sync"

	"github.com/hashicorp/golang-lru/v2/simplelru"
)

// greetingCache is a fixed-capacity map evicting the least recently written
// key once full. Reads use Peek, so hits do not refresh an entry's position.
type greetingCache struct {
	mu  sync.Mutex
	lru *simplelru.LRU[string, string]
}

func newGreetingCache(capacity int) *greetingCache {
	if capacity < 1 {
		capacity = 1
	}
	// NewLRU only fails for a non-positive size.
	lru, _ := simplelru.NewLRU[string, string](capacity, nil)
	return &greetingCache{lru: lru}
}

func (c *greetingCache) Get(key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Peek(key)
}

// Put stores reply under key. Rewriting a key moves it to the newest slot.
func (c *greetingCache) Put(key, reply string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Add(key, reply)
}

func (c *greetingCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

package assoc

import (
	"container/list"
	"context"
	"database/sql"
	"sync"
)

// StmtCache is a thread-safe LRU cache of prepared statements keyed by query
// text. Relationship loads repeat a small set of query shapes, so preparing
// once and reusing pays off quickly.
//
// Eviction closes the least recently used statement once it is no longer in
// use; statements handed out while evicted close on release.
type StmtCache struct {
	mu       sync.Mutex
	capacity int
	items    map[string]*stmtEntry
	lru      *list.List
}

type stmtEntry struct {
	stmt    *sql.Stmt
	element *list.Element
	query   string
	inUse   int
	evicted bool
}

// NewStmtCache creates a statement cache holding at most capacity prepared
// statements. A capacity of 0 or less defaults to 100.
func NewStmtCache(capacity int) *StmtCache {
	if capacity <= 0 {
		capacity = 100
	}
	return &StmtCache{
		capacity: capacity,
		items:    make(map[string]*stmtEntry),
		lru:      list.New(),
	}
}

// Prepare returns a prepared statement for query, preparing it on db at
// first use. The release function MUST be called when the statement is no
// longer in use.
func (c *StmtCache) Prepare(ctx context.Context, db *sql.DB, query string) (*sql.Stmt, func(), error) {
	c.mu.Lock()
	if entry, ok := c.items[query]; ok {
		c.lru.MoveToFront(entry.element)
		entry.inUse++
		c.mu.Unlock()
		return entry.stmt, func() { c.release(entry) }, nil
	}
	c.mu.Unlock()

	// Prepare outside the lock; a concurrent miss on the same query just
	// prepares twice and the later Put wins.
	stmt, err := db.PrepareContext(ctx, query)
	if err != nil {
		return nil, nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if prior, ok := c.items[query]; ok {
		c.evict(prior)
	}
	if len(c.items) >= c.capacity {
		if back := c.lru.Back(); back != nil {
			c.evict(back.Value.(*stmtEntry))
		}
	}

	entry := &stmtEntry{stmt: stmt, query: query, inUse: 1}
	entry.element = c.lru.PushFront(entry)
	c.items[query] = entry

	return stmt, func() { c.release(entry) }, nil
}

// evict removes an entry, closing its statement immediately when idle.
// Callers hold the lock.
func (c *StmtCache) evict(entry *stmtEntry) {
	c.lru.Remove(entry.element)
	delete(c.items, entry.query)
	entry.evicted = true
	if entry.inUse == 0 && entry.stmt != nil {
		_ = entry.stmt.Close()
	}
}

func (c *StmtCache) release(entry *stmtEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry.inUse--
	if entry.evicted && entry.inUse == 0 && entry.stmt != nil {
		_ = entry.stmt.Close()
	}
}

// Len returns the current number of cached statements.
func (c *StmtCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Close closes every cached statement and empties the cache.
func (c *StmtCache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, entry := range c.items {
		entry.evicted = true
		if entry.inUse == 0 && entry.stmt != nil {
			_ = entry.stmt.Close()
		}
	}
	c.items = make(map[string]*stmtEntry)
	c.lru.Init()
	return nil
}

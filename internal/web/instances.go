package web

import (
	"sync"
	"time"

	"github.com/JonMunkholm/secretaria/internal/table"
	"github.com/JonMunkholm/secretaria/internal/views"
)

// defaultInstanceTTL applies when the configured TTL is not positive.
const defaultInstanceTTL = 30 * time.Minute

// instance is the table state of one view for one session. The engine is
// not safe for concurrent use; every access holds mu.
type instance struct {
	mu     sync.Mutex
	view   views.View
	engine *table.Engine

	// optionQuery is the text typed into each column's option search.
	optionQuery map[string]string
	// period narrows the activity list: contrato_id, mes, anio.
	period period

	lastUsed time.Time
}

type period struct {
	ContratoID int64
	Mes        int
	Anio       int
}

func (p period) set() bool {
	return p.ContratoID > 0 && p.Mes >= 1 && p.Mes <= 12 && p.Anio > 0
}

type instanceKey struct {
	session string
	view    string
}

// instances caches engines per (session, view) and forgets those unused
// for longer than ttl.
type instances struct {
	mu    sync.Mutex
	items map[instanceKey]*instance
	ttl   time.Duration
	now   func() time.Time
}

func newInstances(ttl time.Duration) *instances {
	if ttl <= 0 {
		ttl = defaultInstanceTTL
	}
	return &instances{
		items: make(map[instanceKey]*instance),
		ttl:   ttl,
		now:   time.Now,
	}
}

// get returns the live instance for key and marks it used.
func (c *instances) get(sessionID, view string) (*instance, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sweepLocked()

	inst, ok := c.items[instanceKey{sessionID, view}]
	if ok {
		inst.lastUsed = c.now()
	}
	return inst, ok
}

// put stores inst, replacing any previous instance for the key.
func (c *instances) put(sessionID string, inst *instance) {
	c.mu.Lock()
	defer c.mu.Unlock()
	inst.lastUsed = c.now()
	c.items[instanceKey{sessionID, inst.view.Key}] = inst
}

// drop forgets one instance.
func (c *instances) drop(sessionID, view string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, instanceKey{sessionID, view})
}

// dropSession forgets every instance of a session.
func (c *instances) dropSession(sessionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.items {
		if k.session == sessionID {
			delete(c.items, k)
		}
	}
}

func (c *instances) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

func (c *instances) sweepLocked() {
	cutoff := c.now().Add(-c.ttl)
	for k, inst := range c.items {
		if inst.lastUsed.Before(cutoff) {
			delete(c.items, k)
		}
	}
}

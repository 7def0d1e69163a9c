// Package session tracks the flight session currently being recorded.
package session

import (
	"sync"

	"github.com/simflight/quadext/internal/model"
)

// Context holds the current flight session state. It is shared between the
// simulation tick path and the background writers.
type Context struct {
	mu      sync.RWMutex
	session *model.FlightSession
	frame   uint
	active  bool
}

// NewContext creates a new Context with no active session.
func NewContext() *Context {
	return &Context{
		session: &model.FlightSession{},
	}
}

// Get returns the current session.
func (c *Context) Get() *model.FlightSession {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.session
}

// Set installs a new session and resets the frame counter.
func (c *Context) Set(s *model.FlightSession) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.session = s
	c.frame = 0
	c.active = true
}

// End marks the session inactive.
func (c *Context) End() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.active = false
}

// Active reports whether a session is being recorded.
func (c *Context) Active() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.active
}

// NextFrame increments and returns the control frame counter.
func (c *Context) NextFrame() uint {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frame++
	return c.frame
}

// Frame returns the current control frame counter.
func (c *Context) Frame() uint {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.frame
}

// RescueNet - Disaster Relief Location Sharing and Emergency Broadcast
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/rescuenet

package dispatcher

import "sync"

// ConnSessionMap records which session each live connection is publishing
// for, so that a dropped connection can be marked offline.
type ConnSessionMap struct {
	mu sync.Mutex
	m  map[uint64]string
}

// NewConnSessionMap returns an empty map.
func NewConnSessionMap() *ConnSessionMap {
	return &ConnSessionMap{m: make(map[uint64]string)}
}

// Set maps connID to sessionID, replacing any previous mapping.
func (c *ConnSessionMap) Set(connID uint64, sessionID string) {
	c.mu.Lock()
	c.m[connID] = sessionID
	c.mu.Unlock()
}

// lookup returns the session mapped to connID without removing it.
func (c *ConnSessionMap) lookup(connID uint64) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id, ok := c.m[connID]
	return id, ok
}

// Take removes and returns the mapping for connID. Only one caller can
// take a given mapping.
func (c *ConnSessionMap) Take(connID uint64) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id, ok := c.m[connID]
	if ok {
		delete(c.m, connID)
	}
	return id, ok
}

// RemoveIf removes the mapping only when connID is mapped to sessionID.
func (c *ConnSessionMap) RemoveIf(connID uint64, sessionID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if id, ok := c.m[connID]; !ok || id != sessionID {
		return false
	}
	delete(c.m, connID)
	return true
}

// Len returns the number of mapped connections.
func (c *ConnSessionMap) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.m)
}

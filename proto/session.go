// Copyright 2023 The CubeFS Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or
// implied. See the License for the specific language governing
// permissions and limitations under the License.

package proto

import (
	"strings"
	"sync"
)

// SessionState mirrors a client session's lifecycle.
type SessionState int

const (
	SessionOpening SessionState = iota
	SessionOpen
	SessionClosing
	SessionClosed
	SessionStale
)

// Capabilities is the parsed permission string a client presents at
// authorization time. A missing or malformed string falls back to the
// legacy permissive-fs/deny-tell defaults (spec.md §4.F).
type Capabilities struct {
	AllowFS   bool
	AllowTell bool
	Raw       string
}

// ParseCapabilities parses the client-presented capability string into a
// Capabilities value, falling back to the legacy defaults on any failure.
func ParseCapabilities(raw string) Capabilities {
	caps := Capabilities{AllowFS: true, AllowTell: false, Raw: raw}
	if raw == "" {
		return caps
	}

	parsed := Capabilities{Raw: raw}
	ok := false
	for _, field := range strings.Fields(raw) {
		switch field {
		case "allow-fs":
			parsed.AllowFS = true
			ok = true
		case "deny-fs":
			parsed.AllowFS = false
			ok = true
		case "allow-tell":
			parsed.AllowTell = true
			ok = true
		case "deny-tell":
			parsed.AllowTell = false
			ok = true
		}
	}
	if !ok {
		return caps
	}
	return parsed
}

// Connection is the minimal surface of a client/peer connection the
// controller needs: an opaque identity used for equality checks, and the
// ability to enqueue a message for later delivery. The real messenger
// connection type lives outside this spec's scope (spec.md §6).
type Connection interface {
	ID() string
	Send(msg interface{}) error
}

// Session is the per-client record of spec.md §3.
type Session struct {
	mu sync.Mutex

	ClientName string
	Conn       Connection
	Caps       Capabilities
	State      SessionState

	Leases       map[string]struct{}
	PreOpenQueue []interface{}

	AuthCaps      string
	ClientMeta    map[string]string
	RequestCount  uint64
	CompletedCount uint64
}

// NewSession constructs an opening session for clientName.
func NewSession(clientName string, conn Connection, caps Capabilities) *Session {
	return &Session{
		ClientName: clientName,
		Conn:       conn,
		Caps:       caps,
		State:      SessionOpening,
		Leases:     make(map[string]struct{}),
	}
}

// Attach replaces the session's connection and drains any pre-open queued
// messages onto it, implementing the accept-race resolution of spec.md §4.F.
func (s *Session) Attach(conn Connection) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Conn != nil && s.Conn.ID() == conn.ID() {
		return
	}
	s.Conn = conn
	for _, m := range s.PreOpenQueue {
		_ = conn.Send(m)
	}
	s.PreOpenQueue = nil
}

// Enqueue buffers a message for delivery once the session has an attached
// connection, used before the session has completed its accept race.
func (s *Session) Enqueue(msg interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.PreOpenQueue = append(s.PreOpenQueue, msg)
}

// Detach clears the session's connection pointer, used on reset handling.
func (s *Session) Detach() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Conn = nil
}

// Lock and Unlock expose the session's mutex to callers (the admin "session
// ls" dump) that need a consistent read across several fields.
func (s *Session) Lock()   { s.mu.Lock() }
func (s *Session) Unlock() { s.mu.Unlock() }

func (s *Session) ConnID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Conn == nil {
		return ""
	}
	return s.Conn.ID()
}

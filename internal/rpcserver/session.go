// Copyright (c) 2025-2026 The parity developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package rpcserver

import (
	"sync"
	"time"

	"github.com/decred/dcrd/crypto/rand"
)

// TransportKind identifies the transport a session was created on.  The
// transport bounds the maximum capability set a session may be granted.
type TransportKind string

const (
	// TransportHTTP is the plain request/response HTTP transport.  It
	// does not support push notifications.
	TransportHTTP TransportKind = "http"

	// TransportWebsocket is the duplex websocket transport.
	TransportWebsocket TransportKind = "websocket"

	// TransportIPC is the duplex local-socket transport.  Connections on
	// it are considered trusted.
	TransportIPC TransportKind = "ipc"
)

// Capability tags enforced per method.  Sessions carry the subset of tags
// they were granted at creation and may only invoke methods whose tag is in
// that subset.
const (
	capWeb3     = "web3"
	capNet      = "net"
	capChain    = "chain"
	capSigner   = "signer"
	capAccounts = "accounts"
	capPubSub   = "pubsub"
	capConfirm  = "confirm"
	capAdmin    = "admin"
)

// allCapabilities lists every known capability tag.
var allCapabilities = []string{
	capWeb3, capNet, capChain, capSigner, capAccounts, capPubSub,
	capConfirm, capAdmin,
}

// notificationSink is implemented by duplex transport clients that can have
// asynchronous notification frames pushed to them.
type notificationSink interface {
	// QueueNotification queues the marshalled notification for delivery
	// to the client.  ErrClientQuit is returned once the client has
	// begun shutting down.
	QueueNotification(marshalledJSON []byte) error

	// Disconnect forcibly disconnects the client.
	Disconnect()
}

// Session represents one logical client connection along with its granted
// capability set.  A session is owned by the transport adapter that created
// it and is referenced by id everywhere else.
type Session struct {
	id        uint64
	transport TransportKind
	origin    string
	caps      map[string]struct{}
	createdAt time.Time

	// sink is the duplex client notifications are pushed through.  It is
	// set once by the owning adapter before the session serves requests
	// and is nil for HTTP sessions.
	sink notificationSink

	mtx    sync.Mutex
	closed bool
}

// ID returns the process-unique session identifier.
func (s *Session) ID() uint64 {
	return s.id
}

// Transport returns the kind of transport the session was created on.
func (s *Session) Transport() TransportKind {
	return s.transport
}

// Origin returns the peer descriptor the session was created with, such as
// the remote address or the HTTP origin host.
func (s *Session) Origin() string {
	return s.origin
}

// HasCapability returns whether the session was granted the capability tag.
// The granted set is immutable after creation, so no locking is required.
func (s *Session) HasCapability(tag string) bool {
	_, ok := s.caps[tag]
	return ok
}

// Trusted returns whether handler error detail may be returned to the
// session verbatim.  Only local-socket sessions and sessions granted the
// admin capability are trusted.
func (s *Session) Trusted() bool {
	return s.transport == TransportIPC || s.HasCapability(capAdmin)
}

// Closed returns whether the session has been terminated.
func (s *Session) Closed() bool {
	s.mtx.Lock()
	closed := s.closed
	s.mtx.Unlock()
	return closed
}

// markClosed flags the session as terminated and reports whether this call
// performed the transition.
func (s *Session) markClosed() bool {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	if s.closed {
		return false
	}
	s.closed = true
	return true
}

// intersectCapabilities returns the intersection of the transport's maximum
// allowed capability set and the requested tags.
func intersectCapabilities(max map[string]struct{}, requested []string) map[string]struct{} {
	granted := make(map[string]struct{}, len(requested))
	for _, tag := range requested {
		if _, ok := max[tag]; ok {
			granted[tag] = struct{}{}
		}
	}
	return granted
}

// capabilitySet converts a list of tags to a set.
func capabilitySet(tags ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		set[tag] = struct{}{}
	}
	return set
}

// sessionRegistry tracks one record per connected client for the lifetime of
// its connection.  All methods are safe for concurrent access.
type sessionRegistry struct {
	mtx      sync.RWMutex
	sessions map[uint64]*Session
}

// newSessionRegistry returns a session registry ready for use.
func newSessionRegistry() *sessionRegistry {
	return &sessionRegistry{
		sessions: make(map[uint64]*Session),
	}
}

// create registers a new session for the given transport with the granted
// capability set computed by the caller.
func (r *sessionRegistry) create(kind TransportKind, origin string, granted map[string]struct{}) *Session {
	session := &Session{
		id:        rand.Uint64(),
		transport: kind,
		origin:    origin,
		caps:      granted,
		createdAt: time.Now(),
	}

	r.mtx.Lock()
	// Session ids are drawn from a uniform 64-bit space, so a collision
	// with a live session is not expected.  Redraw if it happens anyway.
	for {
		if _, exists := r.sessions[session.id]; !exists {
			break
		}
		session.id = rand.Uint64()
	}
	r.sessions[session.id] = session
	r.mtx.Unlock()
	return session
}

// lookup returns the live session with the given id.
func (r *sessionRegistry) lookup(id uint64) (*Session, bool) {
	r.mtx.RLock()
	session, ok := r.sessions[id]
	r.mtx.RUnlock()
	return session, ok
}

// remove drops the session record and reports whether this call transitioned
// the session to closed.  Repeat calls for the same id are no-ops.
func (r *sessionRegistry) remove(id uint64) (*Session, bool) {
	r.mtx.Lock()
	session, ok := r.sessions[id]
	if ok {
		delete(r.sessions, id)
	}
	r.mtx.Unlock()
	if !ok {
		return nil, false
	}
	return session, session.markClosed()
}

// count returns the number of live sessions.
func (r *sessionRegistry) count() int {
	r.mtx.RLock()
	n := len(r.sessions)
	r.mtx.RUnlock()
	return n
}

// Copyright (c) 2025-2026 The parity developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package rpcserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/decred/dcrd/crypto/rand"
	"github.com/decred/dcrd/dcrjson/v4"

	"github.com/XertroV/parity/rpc/jsonrpc/types"
)

// subDeliverBuffer is the number of undelivered events buffered per
// subscription before the overflow policy for its kind applies.
const subDeliverBuffer = 64

// Notification types passed through the subscription manager's queue.
type (
	// ntfnBlockConnected carries a newly connected block along with the
	// logs its transactions produced.
	ntfnBlockConnected struct {
		block *types.Block
		logs  []types.Log
	}

	// ntfnNewTx carries the hash of a transaction accepted into the
	// pending pool.
	ntfnNewTx struct {
		txHash string
	}

	// ntfnSyncState carries a sync progress change.  A nil status means
	// the node became fully synced.
	ntfnSyncState struct {
		status *types.SyncStatus
	}
)

// Registration messages passed through the subscription manager's queue.
type (
	subscribeMsg struct {
		session *Session
		kind    string
		filter  *types.LogFilterArgs
		reply   chan string
	}

	unsubscribeMsg struct {
		sessionID uint64
		subID     string
		reply     chan bool
	}

	sessionGoneMsg struct {
		sessionID uint64
		reply     chan struct{}
	}
)

// subscription is a single registered event feed for one duplex session.
// Events flow from the manager through the bounded deliver channel to the
// pump goroutine, which marshals and pushes them to the client.
type subscription struct {
	id        string
	sessionID uint64
	kind      string
	filter    *types.LogFilterArgs
	sink      notificationSink

	deliver chan json.RawMessage
	quit    chan struct{}
}

// lossy returns whether the subscription kind tolerates dropping stale
// events in favor of newer ones.  Feeds where every event matters terminate
// instead when their consumer falls behind.
func (s *subscription) lossy() bool {
	return s.kind == types.SubscriptionNewHeads ||
		s.kind == types.SubscriptionSyncing
}

// pump delivers queued events to the client until the subscription is
// cancelled or the client goes away.
func (s *subscription) pump(wg *sync.WaitGroup) {
	defer wg.Done()
	for {
		select {
		case payload := <-s.deliver:
			// Cancellation races with queued events.  Nothing may be
			// pushed to the client once the subscription is removed.
			select {
			case <-s.quit:
				return
			default:
			}
			marshalled, err := marshalSubscriptionNtfn(s.id, s.kind,
				payload)
			if err != nil {
				log.Errorf("Failed to marshal %s notification: %v",
					s.kind, err)
				continue
			}
			if err := s.sink.QueueNotification(marshalled); err != nil {
				return
			}
		case <-s.quit:
			return
		}
	}
}

// marshalSubscriptionNtfn marshals an eth_subscription notification frame.
func marshalSubscriptionNtfn(subID, kind string, payload json.RawMessage) ([]byte, error) {
	ntfn := types.NewSubscriptionNtfn(subID, kind, payload)
	return dcrjson.MarshalCmd("2.0", nil, ntfn)
}

// subManager routes chain and pool events to the subscriptions that match
// them.  Events enter through a queue that is processed as fast as possible
// so producers are never blocked by slow consumers; per-subscription
// backpressure is absorbed by the bounded deliver channels according to each
// kind's overflow policy.
type subManager struct {
	queueNotification chan interface{}
	notificationMsgs  chan interface{}
	wg                sync.WaitGroup
	quit              chan struct{}

	// State below is owned exclusively by notificationHandler.
	subs      map[string]*subscription
	bySession map[uint64]map[string]*subscription
}

// newSubManager returns a new subscription manager ready for use.  Run must
// be called before events or registrations are accepted.
func newSubManager() *subManager {
	return &subManager{
		queueNotification: make(chan interface{}),
		notificationMsgs:  make(chan interface{}),
		quit:              make(chan struct{}),
		subs:              make(map[string]*subscription),
		bySession:         make(map[uint64]map[string]*subscription),
	}
}

// queueHandler manages a queue of empty interfaces, reading from in and
// sending the oldest unsent to out.  This handler stops when either of the
// in or quit channels are closed, and closes out before returning, without
// waiting to send any variables still remaining in the queue.
func (m *subManager) queueHandler() {
	defer m.wg.Done()

	var q []interface{}
	var dequeue chan<- interface{}
	skipQueue := m.notificationMsgs
	var next interface{}
out:
	for {
		select {
		case n, ok := <-m.queueNotification:
			if !ok {
				// Sender closed input channel.
				break out
			}

			// Either send to out immediately if skipQueue is
			// non-nil (queue is empty) and reader is ready,
			// or append to the queue and send later.
			select {
			case skipQueue <- n:
			default:
				q = append(q, n)
				dequeue = m.notificationMsgs
				skipQueue = nil
				next = q[0]
			}

		case dequeue <- next:
			copy(q, q[1:])
			q[len(q)-1] = nil // avoid leak
			q = q[:len(q)-1]
			if len(q) == 0 {
				dequeue = nil
				skipQueue = m.notificationMsgs
			} else {
				next = q[0]
			}

		case <-m.quit:
			break out
		}
	}
	close(m.notificationMsgs)
}

// notificationHandler reads notifications and registration messages from the
// queue handler and processes one at a time.  It owns all subscription state.
func (m *subManager) notificationHandler() {
	defer m.wg.Done()

	for n := range m.notificationMsgs {
		switch n := n.(type) {
		case *ntfnBlockConnected:
			m.handleBlockConnected(n)

		case *ntfnNewTx:
			m.handleNewTx(n)

		case *ntfnSyncState:
			m.handleSyncState(n)

		case *subscribeMsg:
			n.reply <- m.handleSubscribe(n)

		case *unsubscribeMsg:
			n.reply <- m.handleUnsubscribe(n)

		case *sessionGoneMsg:
			m.handleSessionGone(n.sessionID)
			close(n.reply)

		default:
			log.Warnf("Unhandled notification type: %T", n)
		}
	}

	// Drain any subscriptions still registered on shutdown.
	for _, sub := range m.subs {
		close(sub.quit)
	}
	m.subs = nil
	m.bySession = nil
}

// handleSubscribe registers a new subscription for the session and returns
// its identifier.
func (m *subManager) handleSubscribe(msg *subscribeMsg) string {
	sub := &subscription{
		id:        fmt.Sprintf("0x%016x", rand.Uint64()),
		sessionID: msg.session.ID(),
		kind:      msg.kind,
		filter:    msg.filter,
		sink:      msg.session.sink,
		deliver:   make(chan json.RawMessage, subDeliverBuffer),
		quit:      make(chan struct{}),
	}
	m.subs[sub.id] = sub
	sessionSubs, ok := m.bySession[sub.sessionID]
	if !ok {
		sessionSubs = make(map[string]*subscription)
		m.bySession[sub.sessionID] = sessionSubs
	}
	sessionSubs[sub.id] = sub

	m.wg.Add(1)
	go sub.pump(&m.wg)

	log.Debugf("New %s subscription %s for session %d", sub.kind, sub.id,
		sub.sessionID)
	return sub.id
}

// handleUnsubscribe cancels the subscription with the given id when it exists
// and belongs to the requesting session.
func (m *subManager) handleUnsubscribe(msg *unsubscribeMsg) bool {
	sub, ok := m.subs[msg.subID]
	if !ok || sub.sessionID != msg.sessionID {
		return false
	}
	m.removeSubscription(sub)
	return true
}

// handleSessionGone cancels every subscription held by a terminated session.
func (m *subManager) handleSessionGone(sessionID uint64) {
	for _, sub := range m.bySession[sessionID] {
		m.removeSubscription(sub)
	}
}

// removeSubscription drops the subscription from all indexes and stops its
// pump goroutine.
func (m *subManager) removeSubscription(sub *subscription) {
	delete(m.subs, sub.id)
	if sessionSubs, ok := m.bySession[sub.sessionID]; ok {
		delete(sessionSubs, sub.id)
		if len(sessionSubs) == 0 {
			delete(m.bySession, sub.sessionID)
		}
	}
	close(sub.quit)
	log.Debugf("Removed %s subscription %s for session %d", sub.kind,
		sub.id, sub.sessionID)
}

// deliver applies the overflow policy for the subscription kind while
// enqueueing the payload.  Lossy kinds shed their oldest undelivered event;
// lossless kinds are terminated with a final frame telling the client events
// were dropped.
func (m *subManager) deliver(sub *subscription, payload json.RawMessage) {
	select {
	case sub.deliver <- payload:
		return
	default:
	}

	if sub.lossy() {
		// Shed the oldest queued event to make room.  The pump may have
		// consumed one concurrently, so the second send can still fail
		// harmlessly.
		select {
		case <-sub.deliver:
		default:
		}
		select {
		case sub.deliver <- payload:
		default:
		}
		return
	}

	log.Warnf("Terminating %s subscription %s: session %d not keeping up",
		sub.kind, sub.id, sub.sessionID)
	dropped, err := json.Marshal(&types.DroppedPayload{
		Dropped: true,
		Reason:  "notification queue overflow",
	})
	if err == nil {
		var marshalled []byte
		marshalled, err = marshalSubscriptionNtfn(sub.id, sub.kind, dropped)
		if err == nil {
			// Best effort.  The client may already be gone.
			_ = sub.sink.QueueNotification(marshalled)
		}
	}
	if err != nil {
		log.Errorf("Failed to marshal dropped notification: %v", err)
	}
	m.removeSubscription(sub)
}

// handleBlockConnected fans a connected block out to newHeads subscriptions
// and its logs out to matching logs subscriptions.
func (m *subManager) handleBlockConnected(n *ntfnBlockConnected) {
	var headPayload json.RawMessage
	for _, sub := range m.subs {
		switch sub.kind {
		case types.SubscriptionNewHeads:
			if headPayload == nil {
				var err error
				headPayload, err = json.Marshal(n.block)
				if err != nil {
					log.Errorf("Failed to marshal block header: %v", err)
					return
				}
			}
			m.deliver(sub, headPayload)

		case types.SubscriptionLogs:
			for i := range n.logs {
				l := &n.logs[i]
				if !logMatchesFilter(l, sub.filter) {
					continue
				}
				payload, err := json.Marshal(l)
				if err != nil {
					log.Errorf("Failed to marshal log entry: %v", err)
					continue
				}
				m.deliver(sub, payload)
			}
		}
	}
}

// handleNewTx fans a pending transaction hash out to pending transaction
// subscriptions.
func (m *subManager) handleNewTx(n *ntfnNewTx) {
	var payload json.RawMessage
	for _, sub := range m.subs {
		if sub.kind != types.SubscriptionPendingTxs {
			continue
		}
		if payload == nil {
			var err error
			payload, err = json.Marshal(n.txHash)
			if err != nil {
				log.Errorf("Failed to marshal transaction hash: %v", err)
				return
			}
		}
		m.deliver(sub, payload)
	}
}

// handleSyncState fans a sync progress change out to syncing subscriptions.
func (m *subManager) handleSyncState(n *ntfnSyncState) {
	var payload json.RawMessage
	var err error
	if n.status != nil {
		payload, err = json.Marshal(n.status)
	} else {
		payload, err = json.Marshal(false)
	}
	if err != nil {
		log.Errorf("Failed to marshal sync status: %v", err)
		return
	}
	for _, sub := range m.subs {
		if sub.kind == types.SubscriptionSyncing {
			m.deliver(sub, payload)
		}
	}
}

// logMatchesFilter returns whether the log entry passes the address and
// positional topic constraints of the filter.  A nil filter matches all logs
// and an empty topic string acts as a wildcard for its position.
func logMatchesFilter(l *types.Log, filter *types.LogFilterArgs) bool {
	if filter == nil {
		return true
	}
	if len(filter.Addresses) > 0 {
		matched := false
		for _, addr := range filter.Addresses {
			if strings.EqualFold(addr, l.Address) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	for i, want := range filter.Topics {
		if want == "" {
			continue
		}
		if i >= len(l.Topics) || !strings.EqualFold(want, l.Topics[i]) {
			return false
		}
	}
	return true
}

// queueEvent enqueues an event unless the manager has shut down.
func (m *subManager) queueEvent(n interface{}) {
	select {
	case m.queueNotification <- n:
	case <-m.quit:
	}
}

// NotifyBlockConnected passes a newly connected block and the logs its
// transactions produced to the manager for fan-out.
func (m *subManager) NotifyBlockConnected(block *types.Block, logs []types.Log) {
	m.queueEvent(&ntfnBlockConnected{block: block, logs: logs})
}

// NotifyNewTransaction passes the hash of a transaction accepted into the
// pending pool to the manager for fan-out.
func (m *subManager) NotifyNewTransaction(txHash string) {
	m.queueEvent(&ntfnNewTx{txHash: txHash})
}

// NotifySyncState passes a sync progress change to the manager for fan-out.
// A nil status means the node became fully synced.
func (m *subManager) NotifySyncState(status *types.SyncStatus) {
	m.queueEvent(&ntfnSyncState{status: status})
}

// Subscribe registers a new subscription of the given kind for the session
// and returns its identifier.
func (m *subManager) Subscribe(session *Session, kind string, filter *types.LogFilterArgs) (string, error) {
	switch kind {
	case types.SubscriptionNewHeads, types.SubscriptionLogs,
		types.SubscriptionPendingTxs, types.SubscriptionSyncing:
	default:
		return "", dcrjson.NewRPCError(dcrjson.ErrRPCInvalidParams.Code,
			fmt.Sprintf("unknown subscription kind %q", kind))
	}

	reply := make(chan string, 1)
	select {
	case m.queueNotification <- &subscribeMsg{
		session: session,
		kind:    kind,
		filter:  filter,
		reply:   reply,
	}:
	case <-m.quit:
		return "", ErrRPCNoNotificationManager
	}
	select {
	case id := <-reply:
		return id, nil
	case <-m.quit:
		return "", ErrRPCNoNotificationManager
	}
}

// Unsubscribe cancels the session's subscription with the given id and
// reports whether such a subscription existed.
func (m *subManager) Unsubscribe(session *Session, subID string) bool {
	reply := make(chan bool, 1)
	select {
	case m.queueNotification <- &unsubscribeMsg{
		sessionID: session.ID(),
		subID:     subID,
		reply:     reply,
	}:
	case <-m.quit:
		return false
	}
	select {
	case ok := <-reply:
		return ok
	case <-m.quit:
		return false
	}
}

// RemoveSession cancels every subscription held by the terminated session.
// It does not return until the removal has been processed, so no subscription
// owned by the session survives the call and no further frames are queued for
// it afterwards.
func (m *subManager) RemoveSession(sessionID uint64) {
	reply := make(chan struct{})
	select {
	case m.queueNotification <- &sessionGoneMsg{
		sessionID: sessionID,
		reply:     reply,
	}:
	case <-m.quit:
		return
	}
	select {
	case <-reply:
	case <-m.quit:
	}
}

// Run starts the manager's handler goroutines and blocks until the provided
// context is cancelled and they have shut down.
func (m *subManager) Run(ctx context.Context) {
	m.wg.Add(2)
	go m.queueHandler()
	go m.notificationHandler()

	<-ctx.Done()
	close(m.quit)
	m.wg.Wait()
}

// ErrRPCNoNotificationManager is returned from subscription registration when
// the manager has shut down.
var ErrRPCNoNotificationManager = dcrjson.NewRPCError(dcrjson.ErrRPCInternal.Code,
	"the notification manager is shut down")

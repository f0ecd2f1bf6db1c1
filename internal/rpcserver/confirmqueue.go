// Copyright (c) 2025-2026 The parity developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package rpcserver

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/decred/dcrd/container/lru"
	"github.com/decred/dcrd/dcrjson/v4"
	"github.com/syndtr/goleveldb/leveldb"

	"github.com/XertroV/parity/rpc/jsonrpc/types"
)

const (
	// confirmReaperInterval is how often the reaper scans the queue for
	// entries past their TTL.
	confirmReaperInterval = time.Second

	// resolvedCacheLimit is the maximum number of resolved confirmations
	// kept in memory in front of the durable archive.
	resolvedCacheLimit = 512
)

// confirmKeyPrefix prefixes archive keys for resolved confirmation records.
// The remainder of the key is the request id encoded as big endian.
var confirmKeyPrefix = []byte("confirm-")

// confirmLastIDKey is the archive key the most recently assigned request id
// is stored under so restarts never reissue an id.
var confirmLastIDKey = []byte("confirm-lastid")

// confirmExecFunc executes the side effect of a confirmed request.  The
// modified transaction arguments replace the original ones when non-nil.
// It is invoked at most once per queued request.
type confirmExecFunc func(ctx context.Context, modified *types.TransactionArgs) (interface{}, error)

// pendingConfirmation is a queued request awaiting resolution by a
// confirming actor.  The status field transitions out of StatusPending
// exactly once, guarded by the entry mutex.
type pendingConfirmation struct {
	id        uint64
	sessionID uint64
	method    types.Method
	params    json.RawMessage
	createdAt time.Time
	ttl       time.Duration
	exec      confirmExecFunc

	mtx    sync.Mutex
	status string
}

// transition moves the entry from StatusPending to the given status and
// reports whether this call won the transition.  The previous status is
// returned for losing callers.
func (p *pendingConfirmation) transition(to string) (string, bool) {
	p.mtx.Lock()
	defer p.mtx.Unlock()
	if p.status != types.StatusPending {
		return p.status, false
	}
	p.status = to
	return types.StatusPending, true
}

// resolvedConfirmation is the archived record of a confirmation that left
// the pending state.  It is what signer_checkRequest reports after the fact.
type resolvedConfirmation struct {
	ID     uint64          `json:"id"`
	Method string          `json:"method"`
	Status string          `json:"status"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// confirmQueue holds requests that a handler decided cannot complete
// synchronously until a confirming actor resolves them.  Confirmed requests
// execute their side effect exactly once; resolved and expired requests are
// archived durably so their outcome remains queryable by request id, even
// when the originating session is long gone.
//
// All methods are safe for concurrent access.
type confirmQueue struct {
	archive  *leveldb.DB // may be nil
	resolved *lru.Map[uint64, *resolvedConfirmation]

	mtx     sync.Mutex
	nextID  uint64
	entries map[uint64]*pendingConfirmation
	order   []uint64
}

// newConfirmQueue returns a confirmation queue backed by the optional
// archive database.  When an archive is provided, request id assignment
// resumes after the last id it recorded.
func newConfirmQueue(archive *leveldb.DB) *confirmQueue {
	q := &confirmQueue{
		archive:  archive,
		resolved: lru.NewMap[uint64, *resolvedConfirmation](resolvedCacheLimit),
		entries:  make(map[uint64]*pendingConfirmation),
	}
	if archive != nil {
		if raw, err := archive.Get(confirmLastIDKey, nil); err == nil && len(raw) == 8 {
			q.nextID = binary.BigEndian.Uint64(raw)
		}
	}
	return q
}

// enqueue inserts a new pending confirmation and returns its durable request
// id.  The exec callback runs when a confirming actor approves the request.
func (q *confirmQueue) enqueue(sessionID uint64, method types.Method, params json.RawMessage, ttl time.Duration, exec confirmExecFunc) uint64 {
	q.mtx.Lock()
	q.nextID++
	id := q.nextID
	entry := &pendingConfirmation{
		id:        id,
		sessionID: sessionID,
		method:    method,
		params:    params,
		createdAt: time.Now(),
		ttl:       ttl,
		status:    types.StatusPending,
		exec:      exec,
	}
	q.entries[id] = entry
	q.order = append(q.order, id)

	// The last issued id is persisted under the queue mutex so concurrent
	// enqueues cannot record a stale value and reissue an id after restart.
	if q.archive != nil {
		var raw [8]byte
		binary.BigEndian.PutUint64(raw[:], id)
		if err := q.archive.Put(confirmLastIDKey, raw[:], nil); err != nil {
			log.Errorf("Failed to persist confirmation request id %d: %v",
				id, err)
		}
	}
	q.mtx.Unlock()

	log.Debugf("Queued %s request %d from session %d for confirmation",
		method, id, sessionID)
	return id
}

// listPending returns the queued requests still awaiting resolution in
// insertion order.
func (q *confirmQueue) listPending() []types.ConfirmationRequest {
	q.mtx.Lock()
	defer q.mtx.Unlock()

	reqs := make([]types.ConfirmationRequest, 0, len(q.order))
	for _, id := range q.order {
		entry, ok := q.entries[id]
		if !ok {
			continue
		}
		entry.mtx.Lock()
		status := entry.status
		entry.mtx.Unlock()
		if status != types.StatusPending {
			continue
		}
		reqs = append(reqs, types.ConfirmationRequest{
			ID:        entry.id,
			Method:    string(entry.method),
			Params:    entry.params,
			Status:    status,
			CreatedAt: entry.createdAt.Unix(),
			TTL:       int64(entry.ttl / time.Second),
		})
	}
	return reqs
}

// lookup returns the in-memory entry for the id.
func (q *confirmQueue) lookup(id uint64) (*pendingConfirmation, bool) {
	q.mtx.Lock()
	entry, ok := q.entries[id]
	q.mtx.Unlock()
	return entry, ok
}

// confirm resolves the pending request as approved and executes its side
// effect, with the modified transaction arguments replacing the original
// ones when provided.  Exactly one concurrent confirm or reject for a given
// id wins; losers receive an AlreadyResolved error, or an Expired error when
// the reaper got there first.
func (q *confirmQueue) confirm(ctx context.Context, id uint64, modified *types.TransactionArgs) (interface{}, error) {
	entry, ok := q.lookup(id)
	if !ok {
		return nil, q.resolvedError(id, true)
	}

	prev, won := entry.transition(types.StatusConfirmed)
	if !won {
		return nil, losingError(prev, true)
	}

	// This call owns the entry now.  Run the side effect, then archive
	// the outcome and drop the entry from the pending set.
	result, err := entry.exec(ctx, modified)
	record := &resolvedConfirmation{
		ID:     id,
		Method: string(entry.method),
		Status: types.StatusConfirmed,
	}
	if err != nil {
		record.Error = err.Error()
	} else if raw, mErr := json.Marshal(result); mErr == nil {
		record.Result = raw
	}
	q.retire(entry, record)

	if err != nil {
		log.Warnf("Confirmed request %d failed: %v", id, err)
		return nil, err
	}
	log.Infof("Request %d (%s) confirmed and executed", id, entry.method)
	return result, nil
}

// reject resolves the pending request as denied with no side effect.
func (q *confirmQueue) reject(id uint64) error {
	entry, ok := q.lookup(id)
	if !ok {
		return q.resolvedError(id, false)
	}

	prev, won := entry.transition(types.StatusRejected)
	if !won {
		return losingError(prev, false)
	}

	q.retire(entry, &resolvedConfirmation{
		ID:     id,
		Method: string(entry.method),
		Status: types.StatusRejected,
	})
	log.Infof("Request %d (%s) rejected", id, entry.method)
	return nil
}

// check reports the current status of the request with the given id, along
// with its execution result when it has been confirmed.
func (q *confirmQueue) check(id uint64) (*types.CheckRequestResult, error) {
	if entry, ok := q.lookup(id); ok {
		entry.mtx.Lock()
		status := entry.status
		entry.mtx.Unlock()
		return &types.CheckRequestResult{Status: status}, nil
	}

	record, ok := q.lookupResolved(id)
	if !ok {
		return nil, dcrjson.NewRPCError(types.ErrRPCRequestNotFound,
			"no signing request found for the given id")
	}
	res := &types.CheckRequestResult{
		Status: record.Status,
		Result: record.Result,
	}
	if record.Error != "" {
		errStr := record.Error
		res.Error = &errStr
	}
	return res, nil
}

// retire archives the resolved record and removes the entry from the
// pending set.
func (q *confirmQueue) retire(entry *pendingConfirmation, record *resolvedConfirmation) {
	q.resolved.Put(entry.id, record)
	if q.archive != nil {
		raw, err := json.Marshal(record)
		if err == nil {
			err = q.archive.Put(confirmKey(entry.id), raw, nil)
		}
		if err != nil {
			log.Errorf("Failed to archive confirmation %d: %v",
				entry.id, err)
		}
	}

	q.mtx.Lock()
	delete(q.entries, entry.id)
	for i, id := range q.order {
		if id == entry.id {
			q.order = append(q.order[:i], q.order[i+1:]...)
			break
		}
	}
	q.mtx.Unlock()
}

// lookupResolved returns the archived record for the id, consulting the
// in-memory cache before the durable archive.
func (q *confirmQueue) lookupResolved(id uint64) (*resolvedConfirmation, bool) {
	if record, ok := q.resolved.Get(id); ok {
		return record, true
	}
	if q.archive == nil {
		return nil, false
	}
	raw, err := q.archive.Get(confirmKey(id), nil)
	if err != nil {
		if !errors.Is(err, leveldb.ErrNotFound) {
			log.Errorf("Failed to read confirmation archive for %d: %v",
				id, err)
		}
		return nil, false
	}
	var record resolvedConfirmation
	if err := json.Unmarshal(raw, &record); err != nil {
		log.Errorf("Corrupt confirmation archive record for %d: %v", id, err)
		return nil, false
	}
	q.resolved.Put(id, &record)
	return &record, true
}

// resolvedError produces the error for an id that is no longer pending,
// distinguishing expired entries on the confirm path per the taxonomy.
func (q *confirmQueue) resolvedError(id uint64, confirming bool) error {
	record, ok := q.lookupResolved(id)
	if !ok {
		return dcrjson.NewRPCError(types.ErrRPCRequestNotFound,
			"no signing request found for the given id")
	}
	return losingError(record.Status, confirming)
}

// losingError maps the status a losing confirm/reject observed to the error
// reported to the losing actor.
func losingError(status string, confirming bool) error {
	if status == types.StatusExpired && confirming {
		return dcrjson.NewRPCError(types.ErrRPCExpired,
			"signing request expired before it was resolved")
	}
	return dcrjson.NewRPCError(types.ErrRPCAlreadyResolved,
		"signing request already resolved")
}

// Run drives the reaper until the context is cancelled.  The reaper expires
// pending entries past their TTL with no side effect; expiry is terminal for
// the request and is never retried.
func (q *confirmQueue) Run(ctx context.Context) {
	ticker := time.NewTicker(confirmReaperInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			q.reapExpired(time.Now())
		case <-ctx.Done():
			return
		}
	}
}

// reapExpired transitions every pending entry whose TTL elapsed before now
// to the expired state.
func (q *confirmQueue) reapExpired(now time.Time) {
	q.mtx.Lock()
	var stale []*pendingConfirmation
	for _, entry := range q.entries {
		if now.Sub(entry.createdAt) >= entry.ttl {
			stale = append(stale, entry)
		}
	}
	q.mtx.Unlock()

	for _, entry := range stale {
		if _, won := entry.transition(types.StatusExpired); !won {
			continue
		}
		q.retire(entry, &resolvedConfirmation{
			ID:     entry.id,
			Method: string(entry.method),
			Status: types.StatusExpired,
		})
		log.Infof("Request %d (%s) expired after %v", entry.id,
			entry.method, entry.ttl)
	}
}

// confirmKey returns the archive key for a resolved confirmation record.
func confirmKey(id uint64) []byte {
	key := make([]byte, len(confirmKeyPrefix)+8)
	copy(key, confirmKeyPrefix)
	binary.BigEndian.PutUint64(key[len(confirmKeyPrefix):], id)
	return key
}

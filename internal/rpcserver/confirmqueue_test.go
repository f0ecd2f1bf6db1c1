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
	"testing"
	"time"

	"github.com/decred/dcrd/dcrjson/v4"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/storage"

	"github.com/XertroV/parity/rpc/jsonrpc/types"
)

// queueEntry inserts a pending confirmation whose side effect records the
// arguments it ran with and returns the provided result.
func queueEntry(q *confirmQueue, ttl time.Duration, result interface{}, execErr error) (uint64, *int, **types.TransactionArgs) {
	var execCount int
	var gotModified *types.TransactionArgs
	var mtx sync.Mutex
	id := q.enqueue(1, "eth_sendTransaction", json.RawMessage(`{}`), ttl,
		func(_ context.Context, modified *types.TransactionArgs) (interface{}, error) {
			mtx.Lock()
			execCount++
			gotModified = modified
			mtx.Unlock()
			return result, execErr
		})
	return id, &execCount, &gotModified
}

// assertRPCErrCode fails the test unless the error is an RPC error carrying
// the wanted code.
func assertRPCErrCode(t *testing.T, err error, want dcrjson.RPCErrorCode) {
	t.Helper()
	var rpcErr *dcrjson.RPCError
	if !errors.As(err, &rpcErr) {
		t.Fatalf("expected an RPC error, got %v", err)
	}
	if rpcErr.Code != want {
		t.Fatalf("mismatched error code -- got %v, want %v", rpcErr.Code, want)
	}
}

// TestConfirmQueueConfirm ensures a confirmed entry executes its side effect
// exactly once and archives the outcome.
func TestConfirmQueueConfirm(t *testing.T) {
	t.Parallel()

	q := newConfirmQueue(nil)
	id, execCount, gotModified := queueEntry(q, time.Minute, "0xabcd", nil)

	modified := &types.TransactionArgs{From: "0x01"}
	result, err := q.confirm(context.Background(), id, modified)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "0xabcd" {
		t.Fatalf("mismatched result -- got %v, want %q", result, "0xabcd")
	}
	if *execCount != 1 {
		t.Fatalf("side effect ran %d times, want 1", *execCount)
	}
	if *gotModified != modified {
		t.Fatal("modified arguments were not passed to the side effect")
	}

	// The entry left the pending set and its record is queryable.
	if pending := q.listPending(); len(pending) != 0 {
		t.Fatalf("confirmed entry still pending: %v", pending)
	}
	check, err := q.check(id)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if check.Status != types.StatusConfirmed {
		t.Fatalf("mismatched status -- got %q, want %q", check.Status,
			types.StatusConfirmed)
	}
	if string(check.Result) != `"0xabcd"` {
		t.Fatalf("mismatched archived result -- got %s", check.Result)
	}

	// Late resolution attempts lose.
	_, err = q.confirm(context.Background(), id, nil)
	assertRPCErrCode(t, err, types.ErrRPCAlreadyResolved)
	err = q.reject(id)
	assertRPCErrCode(t, err, types.ErrRPCAlreadyResolved)
}

// TestConfirmQueueConfirmFailure ensures a confirmed entry whose side effect
// fails archives the failure and never retries.
func TestConfirmQueueConfirmFailure(t *testing.T) {
	t.Parallel()

	q := newConfirmQueue(nil)
	execErr := errors.New("pool rejected transaction")
	id, execCount, _ := queueEntry(q, time.Minute, nil, execErr)

	_, err := q.confirm(context.Background(), id, nil)
	if !errors.Is(err, execErr) {
		t.Fatalf("mismatched error -- got %v, want %v", err, execErr)
	}
	if *execCount != 1 {
		t.Fatalf("side effect ran %d times, want 1", *execCount)
	}

	check, err := q.check(id)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if check.Status != types.StatusConfirmed {
		t.Fatalf("mismatched status -- got %q", check.Status)
	}
	if check.Error == nil || *check.Error != execErr.Error() {
		t.Fatalf("mismatched archived error -- got %v", check.Error)
	}
}

// TestConfirmQueueReject ensures a rejected entry never executes its side
// effect.
func TestConfirmQueueReject(t *testing.T) {
	t.Parallel()

	q := newConfirmQueue(nil)
	id, execCount, _ := queueEntry(q, time.Minute, "0xabcd", nil)

	if err := q.reject(id); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if *execCount != 0 {
		t.Fatalf("side effect ran %d times, want 0", *execCount)
	}

	check, err := q.check(id)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if check.Status != types.StatusRejected {
		t.Fatalf("mismatched status -- got %q, want %q", check.Status,
			types.StatusRejected)
	}

	_, err = q.confirm(context.Background(), id, nil)
	assertRPCErrCode(t, err, types.ErrRPCAlreadyResolved)
}

// TestConfirmQueueExactlyOnce ensures exactly one of many concurrent confirm
// and reject attempts wins and the side effect runs at most once.
func TestConfirmQueueExactlyOnce(t *testing.T) {
	t.Parallel()

	q := newConfirmQueue(nil)
	id, execCount, _ := queueEntry(q, time.Minute, "0xabcd", nil)

	const attempts = 32
	var wins, losses int32
	var mtx sync.Mutex
	var wg sync.WaitGroup
	wg.Add(attempts)
	for i := 0; i < attempts; i++ {
		go func(i int) {
			defer wg.Done()
			var err error
			if i%2 == 0 {
				_, err = q.confirm(context.Background(), id, nil)
			} else {
				err = q.reject(id)
			}
			mtx.Lock()
			if err == nil {
				wins++
			} else {
				losses++
			}
			mtx.Unlock()
		}(i)
	}
	wg.Wait()

	if wins != 1 {
		t.Fatalf("mismatched winner count -- got %d, want 1", wins)
	}
	if losses != attempts-1 {
		t.Fatalf("mismatched loser count -- got %d, want %d", losses,
			attempts-1)
	}
	if *execCount > 1 {
		t.Fatalf("side effect ran %d times, want at most 1", *execCount)
	}
}

// TestConfirmQueueExpiry ensures the reaper expires stale entries without
// running their side effect and that a late confirm reports the expiry.
func TestConfirmQueueExpiry(t *testing.T) {
	t.Parallel()

	q := newConfirmQueue(nil)
	staleID, staleExec, _ := queueEntry(q, time.Minute, "0xabcd", nil)
	freshID, _, _ := queueEntry(q, time.Hour, "0xabcd", nil)

	q.reapExpired(time.Now().Add(30 * time.Minute))

	if *staleExec != 0 {
		t.Fatalf("expired side effect ran %d times, want 0", *staleExec)
	}
	pending := q.listPending()
	if len(pending) != 1 || pending[0].ID != freshID {
		t.Fatalf("mismatched pending entries after reap: %v", pending)
	}

	// Expiry is terminal and distinguished on the confirm path.
	_, err := q.confirm(context.Background(), staleID, nil)
	assertRPCErrCode(t, err, types.ErrRPCExpired)
	err = q.reject(staleID)
	assertRPCErrCode(t, err, types.ErrRPCAlreadyResolved)

	check, err := q.check(staleID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if check.Status != types.StatusExpired {
		t.Fatalf("mismatched status -- got %q, want %q", check.Status,
			types.StatusExpired)
	}
}

// TestConfirmQueueUnknownID ensures operations on ids that were never issued
// report the dedicated not found error.
func TestConfirmQueueUnknownID(t *testing.T) {
	t.Parallel()

	q := newConfirmQueue(nil)

	_, err := q.confirm(context.Background(), 99, nil)
	assertRPCErrCode(t, err, types.ErrRPCRequestNotFound)
	err = q.reject(99)
	assertRPCErrCode(t, err, types.ErrRPCRequestNotFound)
	_, err = q.check(99)
	assertRPCErrCode(t, err, types.ErrRPCRequestNotFound)
}

// TestConfirmQueueListOrder ensures pending entries list in insertion order
// with resolved entries filtered out.
func TestConfirmQueueListOrder(t *testing.T) {
	t.Parallel()

	q := newConfirmQueue(nil)
	first, _, _ := queueEntry(q, time.Minute, nil, nil)
	second, _, _ := queueEntry(q, time.Minute, nil, nil)
	third, _, _ := queueEntry(q, time.Minute, nil, nil)

	if err := q.reject(second); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	pending := q.listPending()
	if len(pending) != 2 {
		t.Fatalf("mismatched pending count -- got %d, want 2", len(pending))
	}
	if pending[0].ID != first || pending[1].ID != third {
		t.Fatalf("pending entries out of order: %v, %v", pending[0].ID,
			pending[1].ID)
	}
	for _, req := range pending {
		if req.Status != types.StatusPending {
			t.Fatalf("listed entry %d has status %q", req.ID, req.Status)
		}
		if req.Method != "eth_sendTransaction" {
			t.Fatalf("listed entry %d has method %q", req.ID, req.Method)
		}
	}
}

// TestConfirmQueueDurableIDs ensures the last assigned request id is archived
// in step with assignment so a restarted queue never reissues an id, even
// when enqueues race.
func TestConfirmQueueDurableIDs(t *testing.T) {
	t.Parallel()

	db, err := leveldb.Open(storage.NewMemStorage(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer db.Close()

	q := newConfirmQueue(db)
	const numWorkers = 16
	var wg sync.WaitGroup
	wg.Add(numWorkers)
	for i := 0; i < numWorkers; i++ {
		go func() {
			defer wg.Done()
			queueEntry(q, time.Minute, nil, nil)
		}()
	}
	wg.Wait()

	raw, err := db.Get(confirmLastIDKey, nil)
	if err != nil || len(raw) != 8 {
		t.Fatalf("malformed archived id: %v (%x)", err, raw)
	}
	if got := binary.BigEndian.Uint64(raw); got != numWorkers {
		t.Fatalf("mismatched archived id -- got %d, want %d", got, numWorkers)
	}

	// A queue restarted from the same archive resumes numbering after the
	// highest issued id.
	restarted := newConfirmQueue(db)
	id, _, _ := queueEntry(restarted, time.Minute, nil, nil)
	if id != numWorkers+1 {
		t.Fatalf("mismatched resumed id -- got %d, want %d", id, numWorkers+1)
	}
}

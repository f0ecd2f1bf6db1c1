// Copyright (c) 2025-2026 The parity developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package rpcserver

import (
	"bufio"
	"context"
	"errors"
	"net"
	"sync"
)

// serveIPC accepts connections on the local socket listener until the
// provided context is cancelled.  Each connection is granted the full
// capability set since reaching the socket already requires local filesystem
// access.  It blocks and must be run as a goroutine.
func (s *Server) serveIPC(ctx context.Context, listener net.Listener) {
	log.Infof("RPC server listening on %s", listener.Addr())
	for {
		conn, err := listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
			default:
				var netErr net.Error
				if errors.As(err, &netErr) && netErr.Timeout() {
					continue
				}
				log.Errorf("IPC accept error: %v", err)
			}
			log.Tracef("RPC listener done for %s", listener.Addr())
			return
		}

		s.wg.Add(1)
		go func(conn net.Conn) {
			s.handleIPCConn(ctx, conn)
			s.wg.Done()
		}(conn)
	}
}

// handleIPCConn services a single local socket connection and blocks until
// it closes.
func (s *Server) handleIPCConn(ctx context.Context, conn net.Conn) {
	remoteAddr := conn.LocalAddr().String()
	log.Infof("New IPC client on %s", remoteAddr)

	granted := s.grantCapabilities(TransportIPC, true)
	sess := s.sessions.create(TransportIPC, remoteAddr, granted)
	client := newIPCClient(s, conn, remoteAddr, sess)
	sess.sink = client
	defer s.terminateSession(sess.ID())

	client.Start(ctx)
	client.WaitForShutdown()
	log.Infof("Disconnected IPC client on %s", remoteAddr)
}

// ipcClient provides an abstraction for handling a local socket client.  The
// wire format is one JSON-RPC request or response per line.  Inbound messages
// are read via the inHandler goroutine and serviced concurrently up to the
// configured limit, while all outbound messages, both responses and async
// notifications, are serialized through the outHandler goroutine.
type ipcClient struct {
	server  *Server
	conn    net.Conn
	addr    string
	session *Session

	serviceRequestSem semaphore

	disconnected bool
	sendChan     chan []byte
	quit         chan struct{}
	wg           sync.WaitGroup
	mtx          sync.Mutex
}

// newIPCClient returns a new local socket client for the given connection and
// the session created for it.
func newIPCClient(server *Server, conn net.Conn, remoteAddr string, sess *Session) *ipcClient {
	maxConcurrentReqs := server.cfg.RPCMaxConcurrentReqs
	if maxConcurrentReqs <= 0 {
		maxConcurrentReqs = 1
	}
	return &ipcClient{
		server:            server,
		conn:              conn,
		addr:              remoteAddr,
		session:           sess,
		serviceRequestSem: makeSemaphore(maxConcurrentReqs),
		sendChan:          make(chan []byte, websocketSendBufferSize),
		quit:              make(chan struct{}),
	}
}

// inHandler handles all incoming messages for the local socket connection.
// It must be run as a goroutine.
func (c *ipcClient) inHandler(ctx context.Context) {
	scanner := bufio.NewScanner(c.conn)
	scanner.Buffer(make([]byte, 0, 64*1024), rpcReadLimit)
out:
	for scanner.Scan() {
		select {
		case <-c.quit:
			break out
		default:
		}

		msg := make([]byte, len(scanner.Bytes()))
		copy(msg, scanner.Bytes())
		if len(msg) == 0 {
			continue
		}

		c.serviceRequestSem.acquire()
		go func(msg []byte) {
			defer c.serviceRequestSem.release()
			resp := c.server.processRequestBody(ctx, msg, c.session)
			if resp == nil {
				return
			}
			c.sendMessage(resp)
		}(msg)
	}
	if err := scanner.Err(); err != nil && !c.Disconnected() {
		log.Errorf("IPC receive error from %s: %v", c.addr, err)
	}

	// Ensure the connection is closed.
	c.Disconnect()
	c.wg.Done()
	log.Tracef("IPC client input handler done for %s", c.addr)
}

// outHandler handles all outgoing messages for the local socket connection.
// It must be run as a goroutine.
func (c *ipcClient) outHandler() {
out:
	for {
		select {
		case msg := <-c.sendChan:
			if _, err := c.conn.Write(append(msg, '\n')); err != nil {
				c.Disconnect()
				break out
			}

		case <-c.quit:
			break out
		}
	}

	// Drain the send channel before exiting so nothing is left waiting
	// around to send.
cleanup:
	for {
		select {
		case <-c.sendChan:
		default:
			break cleanup
		}
	}
	c.wg.Done()
	log.Tracef("IPC client output handler done for %s", c.addr)
}

// sendMessage queues the passed json for delivery to the client.  It blocks
// when the send channel is full so request handling applies backpressure to
// slow local consumers.
func (c *ipcClient) sendMessage(marshalledJSON []byte) {
	if c.Disconnected() {
		return
	}
	select {
	case c.sendChan <- marshalledJSON:
	case <-c.quit:
	}
}

// QueueNotification queues the passed notification to be sent to the client.
//
// If the client is in the process of shutting down, this function returns
// ErrClientQuit.
func (c *ipcClient) QueueNotification(marshalledJSON []byte) error {
	if c.Disconnected() {
		return ErrClientQuit
	}
	select {
	case c.sendChan <- marshalledJSON:
	case <-c.quit:
		return ErrClientQuit
	}
	return nil
}

// Disconnected returns whether or not the client is disconnected.
func (c *ipcClient) Disconnected() bool {
	c.mtx.Lock()
	isDisconnected := c.disconnected
	c.mtx.Unlock()

	return isDisconnected
}

// Disconnect disconnects the client.
func (c *ipcClient) Disconnect() {
	c.mtx.Lock()
	defer c.mtx.Unlock()

	// Nothing to do if already disconnected.
	if c.disconnected {
		return
	}

	log.Tracef("Disconnecting IPC client %s", c.addr)
	close(c.quit)
	c.conn.Close()
	c.disconnected = true
}

// Start begins processing input and output messages.
func (c *ipcClient) Start(ctx context.Context) {
	log.Tracef("Starting IPC client %s", c.addr)

	c.wg.Add(2)
	go c.inHandler(ctx)
	go c.outHandler()

	// Disconnect the client once the passed context is done to ensure the
	// input handler is not left blocked on a read from a client that will
	// never send more data.
	go func() {
		<-ctx.Done()
		c.Disconnect()
	}()
}

// WaitForShutdown blocks until the client goroutines are stopped and the
// connection is closed.
func (c *ipcClient) WaitForShutdown() {
	c.wg.Wait()
}

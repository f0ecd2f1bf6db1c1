// Copyright (c) 2025-2026 The parity developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package rpcserver

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// websocketSendBufferSize is the number of elements the send channel
	// can queue before blocking.  Note that this only applies to requests
	// handled directly in the websocket client input handler or the async
	// handler since notifications have their own queuing mechanism
	// independent of the send channel buffer.
	websocketSendBufferSize = 50

	// websocketReadLimitUnauthenticated is the maximum number of bytes
	// allowed for a message read from an unauthenticated websocket client.
	websocketReadLimitUnauthenticated = 4 << 10 // 4 KiB

	// websocketReadLimitAuthenticated is the maximum number of bytes
	// allowed for a message read from an authenticated websocket client.
	websocketReadLimitAuthenticated = 1 << 23 // 8 MiB

	// websocketPongTimeout is the maximum amount of time to wait for a pong
	// control message to be written to a websocket client.
	websocketPongTimeout = time.Second * 3
)

// timeZeroVal is simply the zero value for a time.Time and is used to avoid
// creating multiple instances.
var timeZeroVal time.Time

// ErrClientQuit describes an error where a client send is not processed due
// to the client having already been disconnected or dropped.
var ErrClientQuit = errors.New("client quit")

// semaphore implements a closeable counting semaphore.
type semaphore struct {
	c chan struct{}
}

func makeSemaphore(n int) semaphore {
	return semaphore{c: make(chan struct{}, n)}
}

func (s semaphore) acquire() { s.c <- struct{}{} }
func (s semaphore) release() { <-s.c }

// WebsocketHandler handles a new websocket client by creating a new wsClient,
// starting it, and blocking until the connection closes.  Since it blocks, it
// must be run in a separate goroutine.  It should be invoked from the
// websocket server handler which runs each new connection in a new goroutine
// thereby satisfying the requirement.
func (s *Server) WebsocketHandler(ctx context.Context, conn *websocket.Conn, remoteAddr string, authenticated bool, isAdmin bool) {
	// Clear the read deadline that was set before the websocket hijacked
	// the connection.
	conn.SetReadDeadline(timeZeroVal)

	// Sessions on duplex transports require authentication at the
	// handshake since there is no per-request Authorization header.
	if !authenticated {
		log.Warnf("Disconnecting unauthenticated websocket client %s",
			remoteAddr)
		conn.Close()
		return
	}

	// Limit max number of websocket clients.
	log.Infof("New websocket client %s", remoteAddr)
	if int(s.numWsClients.Load())+1 > s.cfg.RPCMaxWebsockets {
		log.Infof("Max websocket clients exceeded [%d] - "+
			"disconnecting client %s", s.cfg.RPCMaxWebsockets,
			remoteAddr)
		conn.Close()
		return
	}
	s.numWsClients.Add(1)
	defer s.numWsClients.Add(-1)

	// Create a new websocket client to handle the new websocket connection
	// and wait for it to shutdown.  Once it has shutdown (and hence
	// disconnected), remove its session and any subscriptions it holds.
	granted := s.grantCapabilities(TransportWebsocket, isAdmin)
	sess := s.sessions.create(TransportWebsocket, remoteAddr, granted)
	client := newWebsocketClient(s, conn, remoteAddr, sess)
	sess.sink = client
	defer s.terminateSession(sess.ID())

	client.Start(ctx)
	client.WaitForShutdown()
	log.Infof("Disconnected websocket client %s", remoteAddr)
}

// wsResponse houses a message to send to a connected websocket client as
// well as a channel to reply on when the message is sent.
type wsResponse struct {
	msg      []byte
	doneChan chan bool
}

// wsClient provides an abstraction for handling a websocket client.  The
// overall data flow is split into 3 main goroutines.  Inbound messages are
// read via the inHandler goroutine and dispatched through the server's
// request processing path.  There are two outbound message types - one for
// responding to client requests and another for async notifications.
// Responses to client requests use SendMessage which employs a buffered
// channel thereby limiting the number of outstanding requests that can be
// made.  Notifications are sent via QueueNotification which implements a
// queue via notificationQueue to ensure sending notifications from other
// subsystems can't block.  Ultimately, all messages are sent via the
// outHandler.
type wsClient struct {
	// server is the RPC server that is servicing the client.
	server *Server

	// conn is the underlying websocket connection.
	conn *websocket.Conn

	// disconnected indicated whether or not the websocket client is
	// disconnected.
	disconnected bool

	// addr is the remote address of the client.
	addr string

	// session is the registry record the client serves requests for.
	session *Session

	// serviceRequestSem limits the number of concurrent requests being
	// serviced by this client.
	serviceRequestSem semaphore

	ntfnChan chan []byte
	sendChan chan wsResponse
	quit     chan struct{}
	wg       sync.WaitGroup
	mtx      sync.Mutex
}

// newWebsocketClient returns a new websocket client given the notification
// manager, websocket connection, remote address, and the session created for
// the connection.
func newWebsocketClient(server *Server, conn *websocket.Conn, remoteAddr string, sess *Session) *wsClient {
	maxConcurrentReqs := server.cfg.RPCMaxConcurrentReqs
	if maxConcurrentReqs <= 0 {
		maxConcurrentReqs = 1
	}
	return &wsClient{
		server:            server,
		conn:              conn,
		addr:              remoteAddr,
		session:           sess,
		serviceRequestSem: makeSemaphore(maxConcurrentReqs),
		ntfnChan:          make(chan []byte, 1), // nonblocking sync
		sendChan:          make(chan wsResponse, websocketSendBufferSize),
		quit:              make(chan struct{}),
	}
}

// inHandler handles all incoming messages for the websocket connection.  It
// must be run as a goroutine.
func (c *wsClient) inHandler(ctx context.Context) {
out:
	for {
		// Break out of the loop once the quit channel has been closed.
		// Use a non-blocking select here so we fall through otherwise.
		select {
		case <-c.quit:
			break out
		default:
		}

		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			// Log the error if it's not due to disconnecting.
			if !errors.Is(err, io.EOF) {
				var closeErr *websocket.CloseError
				if !errors.As(err, &closeErr) {
					log.Errorf("Websocket receive error from %s: %v",
						c.addr, err)
				}
			}
			break out
		}

		c.serviceRequestSem.acquire()
		go func(msg []byte) {
			defer c.serviceRequestSem.release()
			resp := c.server.processRequestBody(ctx, msg, c.session)
			if resp == nil {
				return
			}
			c.SendMessage(resp, nil)
		}(msg)
	}

	// Ensure the connection is closed.
	c.Disconnect()
	c.wg.Done()
	log.Tracef("Websocket client input handler done for %s", c.addr)
}

// notificationQueueHandler handles the queuing of outgoing notifications for
// the websocket client.  This runs as a muxer for various sources of input to
// ensure that queuing up notifications to be sent will not block.  Otherwise,
// slow clients could bog down the other systems (such as the chain engine
// event handlers) which are queuing the data.  The data is passed on to
// outHandler to actually be written.  It must be run as a goroutine.
func (c *wsClient) notificationQueueHandler() {
	ntfnSentChan := make(chan bool, 1) // nonblocking sync

	// pendingNtfns is used as a queue for notifications that are ready to
	// be sent once there are no outstanding notifications currently being
	// sent.
	var pendingNtfns []([]byte)
	waiting := false
out:
	for {
		select {
		// This channel is notified when a message is being queued to
		// be sent across the network socket.  It will either send the
		// message immediately if a send is not already in progress, or
		// queue the message to be sent once the other pending messages
		// are sent.
		case msg := <-c.ntfnChan:
			if !waiting {
				c.SendMessage(msg, ntfnSentChan)
			} else {
				pendingNtfns = append(pendingNtfns, msg)
			}
			waiting = true

		// This channel is notified when a notification has been sent
		// across the network socket.
		case <-ntfnSentChan:
			// No longer waiting if there are no more messages in
			// the pending messages queue.
			if len(pendingNtfns) == 0 {
				waiting = false
				continue
			}

			// Notify the outHandler about the next item to
			// asynchronously send.
			msg := pendingNtfns[0]
			copy(pendingNtfns, pendingNtfns[1:])
			pendingNtfns[len(pendingNtfns)-1] = nil
			pendingNtfns = pendingNtfns[:len(pendingNtfns)-1]
			c.SendMessage(msg, ntfnSentChan)

		case <-c.quit:
			break out
		}
	}

	// Drain any wait channels before exiting so nothing is left waiting
	// around to send.
cleanup:
	for {
		select {
		case <-c.ntfnChan:
		case <-ntfnSentChan:
		default:
			break cleanup
		}
	}
	c.wg.Done()
	log.Tracef("Websocket client notification queue handler done for %s",
		c.addr)
}

// outHandler handles all outgoing messages for the websocket connection.  It
// must be run as a goroutine.  It uses a buffered channel to serialize output
// messages while allowing the sender to continue running asynchronously.  It
// must be run as a goroutine.
func (c *wsClient) outHandler() {
out:
	for {
		// Send any messages ready for send until the quit channel is
		// closed.
		select {
		case r := <-c.sendChan:
			err := c.conn.WriteMessage(websocket.TextMessage, r.msg)
			if err != nil {
				c.Disconnect()
				break out
			}
			if r.doneChan != nil {
				r.doneChan <- true
			}

		case <-c.quit:
			break out
		}
	}

	// Drain any wait channels before exiting so nothing is left waiting
	// around to send.
cleanup:
	for {
		select {
		case r := <-c.sendChan:
			if r.doneChan != nil {
				r.doneChan <- false
			}
		default:
			break cleanup
		}
	}
	c.wg.Done()
	log.Tracef("Websocket client output handler done for %s", c.addr)
}

// SendMessage sends the passed json to the websocket client.  It is backed
// by a buffered channel, so it will not block until the send channel is full.
// Note however that QueueNotification must be used for sending async
// notifications instead of the this function.  This approach allows a limit
// to the number of outstanding requests a client can make without preventing
// or blocking on async notifications.
func (c *wsClient) SendMessage(marshalledJSON []byte, doneChan chan bool) {
	// Don't send the message if disconnected.
	if c.Disconnected() {
		if doneChan != nil {
			doneChan <- false
		}
		return
	}

	select {
	case c.sendChan <- wsResponse{msg: marshalledJSON, doneChan: doneChan}:
	case <-c.quit:
		if doneChan != nil {
			doneChan <- false
		}
	}
}

// QueueNotification queues the passed notification to be sent to the
// websocket client.  This function, as the name implies, is only intended for
// notifications since it has additional logic to prevent other subsystems,
// such as the chain engine event handlers, from blocking even when the send
// channel is full.
//
// If the client is in the process of shutting down, this function returns
// ErrClientQuit.  This is intended to be checked by long-running notification
// handlers to stop processing if there is no more work needed to be done.
func (c *wsClient) QueueNotification(marshalledJSON []byte) error {
	// Don't queue the message if disconnected.
	if c.Disconnected() {
		return ErrClientQuit
	}

	select {
	case c.ntfnChan <- marshalledJSON:
	case <-c.quit:
		return ErrClientQuit
	}
	return nil
}

// Disconnected returns whether or not the websocket client is disconnected.
func (c *wsClient) Disconnected() bool {
	c.mtx.Lock()
	isDisconnected := c.disconnected
	c.mtx.Unlock()

	return isDisconnected
}

// Disconnect disconnects the websocket client.
func (c *wsClient) Disconnect() {
	c.mtx.Lock()
	defer c.mtx.Unlock()

	// Nothing to do if already disconnected.
	if c.disconnected {
		return
	}

	log.Tracef("Disconnecting websocket client %s", c.addr)
	close(c.quit)
	c.conn.Close()
	c.disconnected = true
}

// Start begins processing input and output messages.
func (c *wsClient) Start(ctx context.Context) {
	log.Tracef("Starting websocket client %s", c.addr)

	// Start processing input and output.
	c.wg.Add(3)
	go c.inHandler(ctx)
	go c.notificationQueueHandler()
	go c.outHandler()

	// Disconnect the client once the passed context is done to ensure the
	// input handler is not left blocked on a read from a client that will
	// never send more data.
	go func() {
		<-ctx.Done()
		c.Disconnect()
	}()
}

// WaitForShutdown blocks until the websocket client goroutines are stopped
// and the connection is closed.
func (c *wsClient) WaitForShutdown() {
	c.wg.Wait()
}

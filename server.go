package main

import (
	"fmt"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

const (
	// Size of the per-read buffer.
	recvBufferSize = 4096

	// A client buffering more inbound bytes than this without a newline is
	// treated as abusive and cut off.
	maxClientBufferSize = 8192

	// How long the accept loop waits when the client registry is full.
	capacityWait = 100 * time.Millisecond

	// How long one accept attempt waits before giving the loop a chance to
	// notice shutdown.
	acceptWait = 20 * time.Millisecond

	// Session loop pacing.
	sessionWait = 10 * time.Millisecond

	// Read deadline per session iteration. A timeout means nothing to read
	// right now.
	readWait = 10 * time.Millisecond

	// Write deadline when draining a client's outbound queue. A client that
	// cannot take a write within this is disconnected.
	writeWait = 30 * time.Second
)

// Server holds the state for a server: the registries, the router, the
// session pool, and the listening socket.
type Server struct {
	config Config
	logger zerolog.Logger

	clients  *ClientManager
	channels *ChannelManager
	router   *Router
	pool     *Pool

	listener      net.Listener
	metricsServer *http.Server

	running atomic.Bool

	// Next client id. Only the accept loop touches it.
	nextID uint64
}

// ServerStats is a snapshot of server counters.
type ServerStats struct {
	ClientCount      int
	TotalConnections uint64
	ReceivedBytes    uint64
	SentBytes        uint64
	ActiveTasks      int
	QueuedTasks      int
}

// NewServer creates a Server from a configuration. The configuration must
// validate.
func NewServer(cfg Config, logger zerolog.Logger) (*Server, error) {
	if err := cfg.validate(); err != nil {
		return nil, errors.Wrap(err, "configuration problem")
	}

	pool, err := NewPool(cfg.PoolSize, logger)
	if err != nil {
		return nil, err
	}

	s := &Server{
		config:   cfg,
		logger:   logger,
		clients:  NewClientManager(cfg.MaxUsers),
		channels: NewChannelManager(cfg.MaxChannels),
		pool:     pool,
	}

	s.router = NewRouter(s.clients, s.channels)
	s.router.SetMOTD(cfg.MOTD)

	// Removing a client cascades to its channel memberships. The registry
	// invokes this outside its own lock.
	s.clients.SetOnClientRemoved(func(c *Client) {
		s.channels.RemoveClientFromAllChannels(c)
	})

	return s, nil
}

// Start opens the listening socket and runs the accept loop. It blocks
// until Stop.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", fmt.Sprintf("%s:%d", s.config.ListenHost,
		s.config.Port))
	if err != nil {
		return errors.Wrap(err, "unable to listen")
	}

	return s.Serve(ln)
}

// Serve runs the accept loop on an already open listener. It blocks until
// Stop. Tests use this with a listener on an ephemeral port.
func (s *Server) Serve(ln net.Listener) error {
	s.listener = ln
	s.running.Store(true)

	s.startMetrics()

	s.logger.Info().
		Str("addr", ln.Addr().String()).
		Str("server_name", s.config.ServerName).
		Int("max_users", s.config.MaxUsers).
		Int("max_channels", s.config.MaxChannels).
		Msg("server started")

	for s.running.Load() {
		if !s.clients.CanAcceptNewConnection() {
			time.Sleep(capacityWait)
			continue
		}

		// Bound the accept wait so the loop can notice shutdown and freed
		// capacity.
		if tcpListener, ok := ln.(*net.TCPListener); ok {
			_ = tcpListener.SetDeadline(time.Now().Add(acceptWait))
		}

		conn, err := ln.Accept()
		if err != nil {
			if isTimeout(err) {
				continue
			}
			if !s.running.Load() {
				break
			}
			s.logger.Warn().Err(err).Msg("failed to accept connection")
			time.Sleep(acceptWait)
			continue
		}

		client := NewClient(s.nextID, conn)
		s.nextID++

		if !s.clients.AddClient(client) {
			// Capacity filled up since the check above.
			_ = conn.Close()
			continue
		}
		s.clients.IncrementTotalConnections()

		if !s.pool.Enqueue(func() { s.handleClient(client) }) {
			// Pool is stopping or its queue is full. Unregister closes the
			// socket.
			s.clients.RemoveClient(client)
		}
	}

	s.logger.Info().Msg("accept loop finished")
	return nil
}

// Stop shuts the server down: close the listener, remove every client,
// stop the pool. Removing clients closes their sockets, which ends their
// session loops. Safe to call more than once.
func (s *Server) Stop() {
	if !s.running.CompareAndSwap(true, false) {
		return
	}

	s.logger.Info().Msg("server shutdown initiated")

	if s.listener != nil {
		_ = s.listener.Close()
	}

	for _, client := range s.clients.AllClients() {
		s.clients.RemoveClient(client)
	}

	s.pool.Stop()
	s.stopMetrics()
}

// handleClient drives one client's session: read bytes, split lines, hand
// them to the router, drain the outbound queue. It runs as a pool task and
// owns the connection until the session ends.
func (s *Server) handleClient(client *Client) {
	s.logger.Info().Str("client", client.String()).Msg("new client connection")

	s.router.SendServerMessage(client, "Welcome to "+s.config.ServerName+"!")
	s.router.SendServerMessage(client,
		"Type /help for a list of available commands.")

	buf := make([]byte, recvBufferSize)

	for s.running.Load() && s.clients.ClientExists(client) {
		if err := client.Conn.SetReadDeadline(time.Now().Add(readWait)); err != nil {
			break
		}

		n, err := client.Conn.Read(buf)
		if n > 0 {
			client.appendToBuffer(buf[:n])
			if client.bufferLen() > maxClientBufferSize {
				s.logger.Warn().Str("client", client.String()).
					Msg("inbound buffer overflow, dropping client")
				break
			}

			for {
				line, ok := client.nextLine()
				if !ok {
					break
				}
				if line != "" {
					s.router.HandleMessage(client, line)
				}
			}
		}

		if err != nil && !isTimeout(err) {
			// Peer closed or the transport failed.
			break
		}

		if !s.processClientOutput(client) {
			return
		}

		time.Sleep(sessionWait)
	}

	if s.clients.ClientExists(client) {
		s.clients.RemoveClient(client)
	}

	s.logger.Info().Str("client", client.String()).Msg("session finished")
}

// processClientOutput writes the client's queued outbound lines to its
// socket. It reports false if the client was removed because of a write
// failure.
func (s *Server) processClientOutput(client *Client) bool {
	for {
		message, ok := client.PeekMessage()
		if !ok {
			return true
		}

		if err := client.Conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
			s.clients.RemoveClient(client)
			return false
		}

		if _, err := client.Conn.Write([]byte(message)); err != nil {
			if isTimeout(err) {
				slowClientsDisconnected.Inc()
				s.logger.Warn().Str("client", client.String()).
					Msg("write timed out, dropping slow client")
			}
			s.clients.RemoveClient(client)
			return false
		}

		client.PopMessage()
	}
}

// Stats retrieves a snapshot of server counters.
func (s *Server) Stats() ServerStats {
	return ServerStats{
		ClientCount:      s.clients.ClientCount(),
		TotalConnections: s.clients.TotalConnections(),
		ReceivedBytes:    s.router.ReceivedBytes(),
		SentBytes:        s.router.SentBytes(),
		ActiveTasks:      s.pool.ActiveTasks(),
		QueuedTasks:      s.pool.QueuedTasks(),
	}
}

// isTimeout reports whether an I/O error is a deadline expiry rather than
// a real failure.
func isTimeout(err error) bool {
	netErr, ok := err.(net.Error)
	return ok && netErr.Timeout()
}

package ipc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/bnema/wlbar/internal/logger"
	"github.com/bnema/wlbar/internal/wire"
)

// subscriberBuffer bounds the invalidations queued for one slow subscriber
const subscriberBuffer = 256

// SocketServer handles incoming IPC connections
type SocketServer struct {
	mu         sync.Mutex
	listener   net.Listener
	socketPath string
	handler    MessageHandler
	maxPayload int
	wg         sync.WaitGroup
	cancel     context.CancelFunc
	running    bool
}

// NewSocketServer creates a new socket server listening on socketPath
func NewSocketServer(socketPath string, handler MessageHandler) *SocketServer {
	return &SocketServer{
		socketPath: socketPath,
		handler:    handler,
		maxPayload: wire.DefaultMaxPayload,
	}
}

// Path returns the socket path
func (s *SocketServer) Path() string {
	return s.socketPath
}

// Start starts the socket server
func (s *SocketServer) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}

	// refuse to steal the socket of a running daemon
	if conn, err := net.Dial("unix", s.socketPath); err == nil {
		_ = conn.Close()
		return fmt.Errorf("socket %s is already in use", s.socketPath)
	}

	if err := os.RemoveAll(s.socketPath); err != nil {
		return fmt.Errorf("failed to remove existing socket: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.socketPath), 0o755); err != nil {
		return fmt.Errorf("failed to create socket directory: %w", err)
	}

	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("failed to create socket listener: %w", err)
	}

	// Set socket permissions (user only)
	if err := os.Chmod(s.socketPath, 0o600); err != nil {
		_ = listener.Close()
		return fmt.Errorf("failed to set socket permissions: %w", err)
	}

	s.listener = listener
	s.running = true

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	s.wg.Add(1)
	go s.acceptConnections(ctx)

	logger.Infof("IPC socket server started at %s", s.socketPath)
	return nil
}

// Stop stops the socket server and waits for open connections to finish
func (s *SocketServer) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}

	s.running = false
	if s.cancel != nil {
		s.cancel()
	}
	if s.listener != nil {
		_ = s.listener.Close()
	}

	s.wg.Wait()

	_ = os.RemoveAll(s.socketPath)
	logger.Info("IPC socket server stopped")
}

// Serve starts the server and blocks until ctx is done
func (s *SocketServer) Serve(ctx context.Context) error {
	if err := s.Start(); err != nil {
		return err
	}
	<-ctx.Done()
	s.Stop()
	return nil
}

// acceptConnections accepts and handles incoming connections
func (s *SocketServer) acceptConnections(ctx context.Context) {
	defer s.wg.Done()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return
			}
			logger.Errorf("Failed to accept connection: %v", err)
			continue
		}

		s.wg.Add(1)
		go s.handleConnection(ctx, conn)
	}
}

// handleConnection handles a single client connection
func (s *SocketServer) handleConnection(ctx context.Context, conn net.Conn) {
	defer s.wg.Done()

	// unblock the read below on shutdown
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()
	defer conn.Close()

	logger.Debug("New IPC connection established")

	for {
		msg, err := s.readMessage(conn)
		if err != nil {
			logger.Debugf("Connection closed or read error: %v", err)
			return
		}

		req, err := ParseRequest(msg)
		if err != nil {
			if err := s.writeMessage(conn, NewErrorMessage(err.Error())); err != nil {
				return
			}
			continue
		}

		if req.Op == OpSubscribe {
			s.streamInvalidations(ctx, conn)
			return
		}

		if err := s.writeMessage(conn, s.handleMessage(ctx, req)); err != nil {
			logger.Errorf("Failed to send response: %v", err)
			return
		}
	}
}

// handleMessage processes a single request and returns a response
func (s *SocketServer) handleMessage(ctx context.Context, req Request) *structpb.Struct {
	var data any
	switch req.Op {
	case OpWindows:
		data = s.handler.Windows()
	case OpWorkspaces:
		data = s.handler.Workspaces()
	case OpStatus:
		data = s.handler.Status()
	case OpCommand:
		if err := s.handler.Command(ctx, req.Action, req.Target, req.Arg); err != nil {
			return NewErrorMessage(err.Error())
		}
	case OpPin:
		if err := s.handler.Pin(req.Name, req.Pinned); err != nil {
			return NewErrorMessage(err.Error())
		}
	default:
		return NewErrorMessage(fmt.Sprintf("Unknown operation: %s", req.Op))
	}

	reply, err := NewReply(data)
	if err != nil {
		return NewErrorMessage(err.Error())
	}
	return reply
}

// streamInvalidations acknowledges a subscription then pushes one message per
// invalidation until the client goes away. A subscriber that falls behind
// gets a single resync marker in place of the dropped events.
func (s *SocketServer) streamInvalidations(ctx context.Context, conn net.Conn) {
	queue := make(chan Invalidation, subscriberBuffer)
	var lagged sync.Once
	var lagMu sync.Mutex
	dropped := false

	cancel := s.handler.Subscribe(func(inv Invalidation) {
		select {
		case queue <- inv:
		default:
			lagMu.Lock()
			dropped = true
			lagMu.Unlock()
			lagged.Do(func() { logger.Debug("IPC subscriber is lagging, dropping events") })
		}
	})
	defer cancel()

	ack, _ := NewReply(nil)
	if err := s.writeMessage(conn, ack); err != nil {
		return
	}

	// the client never sends after subscribing, so a read returns only on hangup
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		_, _ = conn.Read(make([]byte, 1))
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-gone:
			return
		case inv := <-queue:
			lagMu.Lock()
			resync := dropped
			dropped = false
			lagMu.Unlock()
			if resync {
				inv = Invalidation{Kind: KindResync}
			}

			msg, err := NewInvalidationMessage(inv)
			if err != nil {
				logger.Warnf("Failed to encode invalidation: %v", err)
				continue
			}
			if err := s.writeMessage(conn, msg); err != nil {
				logger.Debugf("Subscriber went away: %v", err)
				return
			}
		}
	}
}

// readMessage reads a protobuf message from the connection
func (s *SocketServer) readMessage(conn net.Conn) (*structpb.Struct, error) {
	data, err := wire.ReadPrefixed(conn, s.maxPayload)
	if err != nil {
		return nil, err
	}
	return Unmarshal(data)
}

// writeMessage writes a protobuf message to the connection
func (s *SocketServer) writeMessage(conn net.Conn, msg *structpb.Struct) error {
	data, err := Marshal(msg)
	if err != nil {
		return err
	}
	return wire.WritePrefixed(conn, data)
}

package ipc

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/bnema/wlbar/internal/logger"
	"github.com/bnema/wlbar/internal/wire"
)

// Client handles IPC communication with a running wlbar daemon
type Client struct {
	dialer *wire.Dialer
}

// NewClient creates a new IPC client for socketPath
func NewClient(socketPath string) *Client {
	d := wire.NewDialer(socketPath)
	d.RequestTimeout = 5 * time.Second
	return &Client{dialer: d}
}

// NewClientWithTimeout creates a new IPC client with custom timeout
func NewClientWithTimeout(socketPath string, timeout time.Duration) *Client {
	c := NewClient(socketPath)
	c.dialer.RequestTimeout = timeout
	return c
}

// IsRunning checks if a daemon is answering on the socket
func (c *Client) IsRunning(ctx context.Context) bool {
	_, err := c.Status(ctx)
	return err == nil
}

// Status queries the daemon status
func (c *Client) Status(ctx context.Context) (Status, error) {
	var st Status
	err := c.call(ctx, Request{Op: OpStatus}, &st)
	return st, err
}

// Windows lists the window tree
func (c *Client) Windows(ctx context.Context) ([]WindowInfo, error) {
	var windows []WindowInfo
	err := c.call(ctx, Request{Op: OpWindows}, &windows)
	return windows, err
}

// Workspaces lists the workspace registry
func (c *Client) Workspaces(ctx context.Context) ([]WorkspaceInfo, error) {
	var list []WorkspaceInfo
	err := c.call(ctx, Request{Op: OpWorkspaces}, &list)
	return list, err
}

// Command sends a window or workspace action. For switch the target is the
// workspace; for move arg names the destination workspace.
func (c *Client) Command(ctx context.Context, action, target, arg string) error {
	return c.call(ctx, Request{Op: OpCommand, Action: action, Target: target, Arg: arg}, nil)
}

// Pin pins or unpins a workspace name in the running daemon
func (c *Client) Pin(ctx context.Context, name string, pinned bool) error {
	return c.call(ctx, Request{Op: OpPin, Name: name, Pinned: pinned}, nil)
}

// Subscribe delivers invalidations to fn until ctx is done or the daemon
// goes away. It returns nil on a local cancel.
func (c *Client) Subscribe(ctx context.Context, fn func(Invalidation)) error {
	conn, err := c.dialer.Open(ctx)
	if err != nil {
		return err
	}

	msg, err := NewRequest(Request{Op: OpSubscribe})
	if err != nil {
		_ = conn.Close()
		return err
	}
	data, err := Marshal(msg)
	if err != nil {
		_ = conn.Close()
		return err
	}
	if err := wire.WritePrefixed(conn, data); err != nil {
		_ = conn.Close()
		return err
	}

	ack, err := wire.ReadPrefixed(conn, c.dialer.MaxPayload)
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("failed to read subscribe reply: %w", err)
	}
	reply, err := Unmarshal(ack)
	if err != nil {
		_ = conn.Close()
		return err
	}
	if err := ParseReply(reply, nil); err != nil {
		_ = conn.Close()
		return err
	}

	stream := wire.NewStream(conn, wire.PrefixedDecoder(c.dialer.MaxPayload))
	return stream.Run(ctx, func(data []byte) {
		push, err := Unmarshal(data)
		if err != nil {
			logger.Debugf("Dropping bad push: %v", err)
			return
		}
		inv, err := ParseInvalidation(push)
		if err != nil {
			logger.Debugf("Dropping bad push: %v", err)
			return
		}
		fn(inv)
	})
}

func (c *Client) call(ctx context.Context, req Request, out any) error {
	msg, err := NewRequest(req)
	if err != nil {
		return err
	}
	reply, err := c.send(ctx, msg)
	if err != nil {
		return err
	}
	return ParseReply(reply, out)
}

// send writes one message and reads the reply
func (c *Client) send(ctx context.Context, msg *structpb.Struct) (*structpb.Struct, error) {
	data, err := Marshal(msg)
	if err != nil {
		return nil, err
	}
	raw, err := c.dialer.Prefixed(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("failed to reach daemon: %w", err)
	}
	return Unmarshal(raw)
}

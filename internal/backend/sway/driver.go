// Package sway drives sway (and i3-compatible compositors) over the i3-ipc
// binary protocol.
package sway

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"sync/atomic"

	"github.com/charmbracelet/log"

	"github.com/bnema/wlbar/internal/backend"
	"github.com/bnema/wlbar/internal/handle"
	"github.com/bnema/wlbar/internal/logger"
	"github.com/bnema/wlbar/internal/wire"
)

// requester performs one i3-ipc request/response cycle
type requester interface {
	Request(ctx context.Context, msgType uint32, payload []byte) ([]byte, error)
}

type socketRequester struct {
	dialer *wire.Dialer
}

func (s socketRequester) Request(ctx context.Context, msgType uint32, payload []byte) ([]byte, error) {
	reply, err := s.dialer.Framed(ctx, msgType, payload)
	if err != nil {
		return nil, err
	}
	if reply.Type != msgType {
		return nil, fmt.Errorf("reply type %d does not match request %d", reply.Type, msgType)
	}
	return reply.Payload, nil
}

// Driver is the sway backend
type Driver struct {
	opts   backend.Options
	path   string
	dialer *wire.Dialer
	req    requester
	env    *backend.Env
	log    *log.Logger

	stream *wire.Stream[wire.Frame]
	alive  atomic.Bool
}

// New creates a sway driver. The socket is located on Probe.
func New(opts backend.Options) *Driver {
	return &Driver{
		opts: opts,
		log:  logger.With("backend", "sway"),
	}
}

// socketPath returns $SWAYSOCK, falling back to $I3SOCK
func socketPath() string {
	if p := os.Getenv("SWAYSOCK"); p != "" {
		return p
	}
	return os.Getenv("I3SOCK")
}

func (d *Driver) Kind() handle.Kind {
	return handle.KindSway
}

func (d *Driver) Probe(ctx context.Context) error {
	path := socketPath()
	if path == "" {
		return backend.ErrNotPresent
	}
	dialer := d.opts.Dialer(path)
	if err := dialer.Probe(ctx); err != nil {
		return fmt.Errorf("%w: %w", backend.ErrNotPresent, err)
	}

	d.path = path
	d.dialer = dialer
	if d.req == nil {
		d.req = socketRequester{dialer: dialer}
	}
	return nil
}

func (d *Driver) Activate(ctx context.Context, env *backend.Env) error {
	if d.req == nil {
		return fmt.Errorf("sway: activate before probe")
	}
	d.env = env
	env.Controls.Bind(handle.KindSway, d, d)

	if err := d.syncWorkspaces(ctx); err != nil {
		return fmt.Errorf("failed to enumerate workspaces: %w", err)
	}
	if err := d.syncWindows(ctx); err != nil {
		return fmt.Errorf("failed to enumerate windows: %w", err)
	}

	conn, err := d.subscribe(ctx)
	if err != nil {
		return err
	}
	d.stream = wire.NewStream(conn, wire.FrameDecoder(d.opts.MaxMessageSize))
	d.alive.Store(true)
	return nil
}

// subscribe opens the persistent event connection
func (d *Driver) subscribe(ctx context.Context) (net.Conn, error) {
	conn, err := d.dialer.Open(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open event socket: %w", err)
	}

	payload, err := json.Marshal(subscribedEvents)
	if err != nil {
		conn.Close()
		return nil, err
	}
	if err := wire.EncodeFrame(conn, wire.Frame{Type: msgSubscribe, Payload: payload}); err != nil {
		conn.Close()
		return nil, err
	}

	reply, err := wire.DecodeFrame(conn, d.opts.MaxMessageSize)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to read subscribe reply: %w", err)
	}
	var result commandResult
	if err := json.Unmarshal(reply.Payload, &result); err != nil || !result.Success {
		conn.Close()
		return nil, fmt.Errorf("subscribe rejected: %s", reply.Payload)
	}
	return conn, nil
}

func (d *Driver) Run(ctx context.Context) error {
	if d.stream == nil {
		return fmt.Errorf("sway: run before activate")
	}
	defer d.alive.Store(false)

	err := d.stream.Run(ctx, func(f wire.Frame) {
		d.handleFrame(ctx, f)
	})
	if err != nil {
		d.log.Warn("Event stream ended, state is frozen", "err", err)
	}
	return nil
}

func (d *Driver) Alive() bool {
	return d.alive.Load()
}

func (d *Driver) Close() error {
	if d.stream != nil {
		d.stream.Close()
	}
	return nil
}

// query sends a request and decodes the JSON reply into out
func (d *Driver) query(ctx context.Context, msgType uint32, payload []byte, out any) error {
	reply, err := d.req.Request(ctx, msgType, payload)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(reply, out); err != nil {
		return fmt.Errorf("malformed reply to request %d: %w", msgType, err)
	}
	return nil
}

func (d *Driver) tree(ctx context.Context) (*node, error) {
	var root node
	if err := d.query(ctx, msgGetTree, nil, &root); err != nil {
		return nil, err
	}
	return &root, nil
}

// syncWorkspaces reconciles the registry with GET_WORKSPACES
func (d *Driver) syncWorkspaces(ctx context.Context) error {
	var list []workspaceReply
	if err := d.query(ctx, msgGetWorkspaces, nil, &list); err != nil {
		return err
	}

	reg := d.env.Workspaces
	seen := make([]handle.ID, 0, len(list))
	focused := handle.Nil
	for _, ws := range list {
		if ws.Name == scratchpad {
			continue
		}
		id := workspaceID(ws.ID)
		seen = append(seen, id)

		if _, ok := reg.NewOrUpdate(id, ws.Name, urgency(ws.Urgent)); !ok {
			continue
		}
		reg.SetOutput(id, ws.Output)
		if ws.Visible {
			reg.SetActive(ws.Output, id)
		}
		if ws.Focused {
			focused = id
		}
	}
	reg.Reconcile(seen)
	if !focused.IsNil() {
		reg.SetFocus(focused)
	}
	return nil
}

// syncWindows appends every view in the layout tree
func (d *Driver) syncWindows(ctx context.Context) error {
	root, err := d.tree(ctx)
	if err != nil {
		return err
	}

	focused := handle.Nil
	walk(root, func(v view) {
		w := toWindow(v)
		d.env.Tree.Append(w)
		if v.node.Focused {
			focused = w.ID
		}
	})
	if !focused.IsNil() {
		d.env.Tree.SetFocus(focused)
	}
	return nil
}

// Package backend defines the compositor-agnostic control surface and the
// contract every compositor driver implements.
package backend

import (
	"context"
	"errors"
	"time"

	"github.com/bnema/wlbar/internal/handle"
	"github.com/bnema/wlbar/internal/placement"
	"github.com/bnema/wlbar/internal/wintree"
	"github.com/bnema/wlbar/internal/wire"
	"github.com/bnema/wlbar/internal/workspace"
)

var (
	// ErrNotPresent means the compositor a driver speaks to is not running.
	// It is the normal outcome of a probe, not a failure.
	ErrNotPresent = errors.New("backend not present")
	// ErrUnsupported is returned by queries a backend cannot answer
	ErrUnsupported = errors.New("operation not supported by backend")
	// ErrNoBackend is returned when no driver could be activated
	ErrNoBackend = errors.New("no compositor backend available")
)

// WindowController issues window commands to the compositor. Commands are
// fire-and-forget: the resulting state arrives later as events.
type WindowController interface {
	Minimize(ctx context.Context, id handle.ID) error
	Unminimize(ctx context.Context, id handle.ID) error
	Maximize(ctx context.Context, id handle.ID) error
	Unmaximize(ctx context.Context, id handle.ID) error
	CloseWindow(ctx context.Context, id handle.ID) error
	Focus(ctx context.Context, id handle.ID) error
	MoveToWorkspace(ctx context.Context, id, ws handle.ID) error
}

// WorkspaceController issues workspace commands and geometry queries.
// SetWorkspace receives the whole entry so a dormant pinned workspace can be
// materialized by name.
type WorkspaceController interface {
	SetWorkspace(ctx context.Context, ws workspace.Workspace) error
	Geometry(ctx context.Context, ws, window handle.ID) (placement.Geometry, error)
}

// Options carries the transport limits shared by socket drivers
type Options struct {
	ProbeTimeout   time.Duration
	RequestTimeout time.Duration
	MaxMessageSize int
}

// DefaultOptions returns the default transport limits
func DefaultOptions() Options {
	return Options{
		ProbeTimeout:   wire.DefaultProbeTimeout,
		RequestTimeout: wire.DefaultRequestTimeout,
		MaxMessageSize: wire.DefaultMaxPayload,
	}
}

// Dialer returns a wire.Dialer for path configured with these limits
func (o Options) Dialer(path string) *wire.Dialer {
	d := wire.NewDialer(path)
	if o.ProbeTimeout > 0 {
		d.ProbeTimeout = o.ProbeTimeout
	}
	if o.RequestTimeout > 0 {
		d.RequestTimeout = o.RequestTimeout
	}
	if o.MaxMessageSize > 0 {
		d.MaxPayload = o.MaxMessageSize
	}
	return d
}

// Env is everything a driver needs once activated: the registries it feeds,
// the control tables it binds, and the placement engine.
type Env struct {
	Tree       *wintree.Tree
	Workspaces *workspace.Registry
	Controls   *Controls
	Placer     *placement.Engine
}

// NewEnv builds an Env with fresh registries
func NewEnv(pinned []string, placer placement.Config) *Env {
	tree := wintree.New()
	return &Env{
		Tree:       tree,
		Workspaces: workspace.NewRegistry(pinned...),
		Controls:   NewControls(),
		Placer:     placement.NewEngine(placer, tree),
	}
}

// fresh returns an Env with empty registries and unbound controls, keeping
// the pinned names and placement parameters of e
func (e *Env) fresh() *Env {
	var pinned []string
	if e.Workspaces != nil {
		pinned = e.Workspaces.Pinned()
	}
	cfg := placement.DefaultConfig()
	if e.Placer != nil {
		cfg = e.Placer.Config()
	}
	return NewEnv(pinned, cfg)
}

// Driver speaks one compositor's control protocol
type Driver interface {
	Kind() handle.Kind

	// Probe checks for the compositor without side effects. It returns
	// ErrNotPresent when the discovery variable or socket is absent.
	Probe(ctx context.Context) error

	// Activate binds the control tables, enumerates the current windows and
	// workspaces into env, and opens the event subscription.
	Activate(ctx context.Context, env *Env) error

	// Run dispatches subscription events until ctx is done or the
	// compositor goes away. State freezes at its last value afterwards.
	Run(ctx context.Context) error

	// Alive reports whether the subscription is still delivering events
	Alive() bool

	Close() error
}

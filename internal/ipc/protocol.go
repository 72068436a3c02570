package ipc

import (
	"encoding/json"
	"errors"
	"fmt"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// Operations understood by the control socket
const (
	OpWindows    = "windows"
	OpWorkspaces = "workspaces"
	OpStatus     = "status"
	OpCommand    = "command"
	OpPin        = "pin"
	OpSubscribe  = "subscribe"
)

// Window command actions carried by OpCommand
const (
	ActionFocus      = "focus"
	ActionMinimize   = "minimize"
	ActionUnminimize = "unminimize"
	ActionMaximize   = "maximize"
	ActionUnmaximize = "unmaximize"
	ActionClose      = "close"
	ActionMove       = "move"
	ActionSwitch     = "switch"
)

// Actions lists every command action in display order
var Actions = []string{
	ActionFocus, ActionMinimize, ActionUnminimize, ActionMaximize,
	ActionUnmaximize, ActionClose, ActionMove, ActionSwitch,
}

var (
	// ErrServer wraps an error reported by the daemon
	ErrServer = errors.New("server error")
	// ErrBadMessage is returned for messages missing required fields
	ErrBadMessage = errors.New("malformed message")
)

// Request is the decoded form of a client message
type Request struct {
	Op     string `json:"op"`
	Action string `json:"action,omitempty"`
	Target string `json:"target,omitempty"`
	Arg    string `json:"arg,omitempty"`
	Name   string `json:"name,omitempty"`
	Pinned bool   `json:"pinned,omitempty"`
}

// WindowInfo is the wire form of a window snapshot
type WindowInfo struct {
	ID        string   `json:"id" yaml:"id"`
	Title     string   `json:"title" yaml:"title"`
	AppID     string   `json:"app_id" yaml:"app_id"`
	PID       int      `json:"pid" yaml:"pid"`
	Workspace string   `json:"workspace" yaml:"workspace"`
	Outputs   []string `json:"outputs" yaml:"outputs"`
	State     []string `json:"state" yaml:"state"`
	Floating  bool     `json:"floating" yaml:"floating"`
	Focused   bool     `json:"focused" yaml:"focused"`
}

// WorkspaceInfo is the wire form of a workspace snapshot
type WorkspaceInfo struct {
	ID      string   `json:"id" yaml:"id"`
	Name    string   `json:"name" yaml:"name"`
	Output  string   `json:"output" yaml:"output"`
	State   []string `json:"state" yaml:"state"`
	Pinned  bool     `json:"pinned" yaml:"pinned"`
	Dormant bool     `json:"dormant" yaml:"dormant"`
	Focused bool     `json:"focused" yaml:"focused"`
}

// Status describes the running daemon
type Status struct {
	Backend          string   `json:"backend" yaml:"backend"`
	Alive            bool     `json:"alive" yaml:"alive"`
	Windows          int      `json:"windows" yaml:"windows"`
	Workspaces       int      `json:"workspaces" yaml:"workspaces"`
	FocusedWindow    string   `json:"focused_window" yaml:"focused_window"`
	FocusedWorkspace string   `json:"focused_workspace" yaml:"focused_workspace"`
	Pinned           []string `json:"pinned" yaml:"pinned"`
}

// Invalidation is pushed to subscribers for every registry commit. A
// "resync" kind means events were dropped and the client should re-list.
type Invalidation struct {
	Kind   string `json:"kind"`
	Change string `json:"change,omitempty"`
	ID     string `json:"id,omitempty"`
}

// Invalidation kinds
const (
	KindWindow    = "window"
	KindWorkspace = "workspace"
	KindResync    = "resync"
)

// NewRequest creates a request message
func NewRequest(req Request) (*structpb.Struct, error) {
	if req.Op == "" {
		return nil, fmt.Errorf("%w: empty op", ErrBadMessage)
	}
	return toStruct(req)
}

// ParseRequest decodes a client message
func ParseRequest(msg *structpb.Struct) (Request, error) {
	var req Request
	if err := fromStruct(msg, &req); err != nil {
		return Request{}, err
	}
	if req.Op == "" {
		return Request{}, fmt.Errorf("%w: missing op", ErrBadMessage)
	}
	return req, nil
}

// NewReply wraps data in a successful reply. data may be nil.
func NewReply(data any) (*structpb.Struct, error) {
	reply := map[string]any{"ok": true}
	if data != nil {
		reply["data"] = data
	}
	return toStruct(reply)
}

// NewErrorMessage creates an error reply
func NewErrorMessage(errMsg string) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"ok":    structpb.NewBoolValue(false),
		"error": structpb.NewStringValue(errMsg),
	}}
}

// NewInvalidationMessage creates a push message for subscribers
func NewInvalidationMessage(inv Invalidation) (*structpb.Struct, error) {
	return toStruct(map[string]any{"event": inv})
}

// ParseReply checks the ok flag and decodes data into out, which may be nil
func ParseReply(msg *structpb.Struct, out any) error {
	fields := msg.GetFields()
	if !fields["ok"].GetBoolValue() {
		errMsg := fields["error"].GetStringValue()
		if errMsg == "" {
			errMsg = "unknown error"
		}
		return fmt.Errorf("%w: %s", ErrServer, errMsg)
	}
	if out == nil {
		return nil
	}
	data, ok := fields["data"]
	if !ok {
		return fmt.Errorf("%w: reply has no data", ErrBadMessage)
	}
	return fromValue(data, out)
}

// ParseInvalidation decodes a subscriber push
func ParseInvalidation(msg *structpb.Struct) (Invalidation, error) {
	var inv Invalidation
	ev, ok := msg.GetFields()["event"]
	if !ok {
		return inv, fmt.Errorf("%w: push has no event", ErrBadMessage)
	}
	err := fromValue(ev, &inv)
	return inv, err
}

// Marshal encodes a message for the socket
func Marshal(msg *structpb.Struct) ([]byte, error) {
	data, err := proto.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal message: %w", err)
	}
	return data, nil
}

// Unmarshal decodes a socket message
func Unmarshal(data []byte) (*structpb.Struct, error) {
	var msg structpb.Struct
	if err := proto.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal message: %w", err)
	}
	return &msg, nil
}

// toStruct goes through JSON so tagged Go structs map onto Struct fields
func toStruct(v any) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode message: %w", err)
	}
	var msg structpb.Struct
	if err := protojson.Unmarshal(raw, &msg); err != nil {
		return nil, fmt.Errorf("failed to encode message: %w", err)
	}
	return &msg, nil
}

func fromStruct(msg *structpb.Struct, out any) error {
	raw, err := protojson.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to decode message: %w", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: %w", ErrBadMessage, err)
	}
	return nil
}

func fromValue(v *structpb.Value, out any) error {
	raw, err := protojson.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to decode message: %w", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: %w", ErrBadMessage, err)
	}
	return nil
}

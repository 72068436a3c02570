package protocols

import (
	"github.com/bnema/wlturbo/wl"
)

// OutputInterface is the core output global
const OutputInterface = "wl_output"

// OutputNameSince is the wl_output version that added the name event
const OutputNameSince = 4

// Output tracks the connector name of a wl_output
type Output struct {
	wl.BaseProxy
	nameHandler func(string)
}

// NewOutput creates an output proxy
func NewOutput(ctx *wl.Context) *Output {
	output := &Output{}
	output.SetContext(ctx)
	return output
}

func (o *Output) SetNameHandler(handler func(string)) {
	o.nameHandler = handler
}

// Release destroys the output object (version 3 and later)
func (o *Output) Release() error {
	// Opcode 0: release
	const opcode = 0
	err := o.Context().SendRequest(o, opcode)
	o.Context().Unregister(o)
	return err
}

// Dispatch handles incoming events. Only the name is of interest.
func (o *Output) Dispatch(event *wl.Event) {
	if event.Opcode == 4 { // name
		name := event.String()
		if o.nameHandler != nil {
			o.nameHandler(name)
		}
	}
}

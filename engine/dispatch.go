package engine

import (
	"fmt"

	"kvstore/configbag"
	"kvstore/status"
)

// Dispatch maps an engine name plus a configuration bag to a concrete
// opened engine (spec §4.4), and destroys engines on close. The zero
// value is ready to use; dispatch carries no state of its own beyond
// the compile-time set of engine constructors.
type Dispatch struct{}

// Open takes ownership of bag: on return (success or failure) bag has
// been destroyed, running any object disposers exactly once.
func (d Dispatch) Open(name string, bag *configbag.Bag) (Engine, status.Status) {
	status.Begin()
	defer bag.Destroy()

	switch name {
	case "sorted", "":
		eng, st := OpenSorted(bag)
		if !st.Ok() {
			return nil, st
		}
		return eng, status.OK
	case "blackhole":
		return NewBlackhole(), status.OK
	default:
		return nil, status.Fail(status.WrongEngineName, fmt.Sprintf("unknown engine name %q", name))
	}
}

// Close destroys engine, releasing the pool handle but leaving durable
// state intact (spec §4.4).
func (d Dispatch) Close(e Engine) status.Status {
	status.Begin()
	if err := e.Close(); err != nil {
		return status.Fail(status.Failed, err.Error())
	}
	return status.OK
}

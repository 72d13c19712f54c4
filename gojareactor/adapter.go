// Copyright 2026 Joseph Cumines
//
// gojareactor: Goja adapter for the reactor event loop library
//
// Package gojareactor binds the [github.com/joeycumines/go-reactor] loop to
// the Goja JavaScript runtime.
//
// # Binding the Adapter
//
//	loop, err := reactor.New()
//	// ...
//	runtime := goja.New()
//	adapter, err := gojareactor.New(loop, runtime)
//	// ...
//	if err := adapter.Bind(); err != nil {
//	    log.Fatal(err)
//	}
//
//	// JavaScript code now has access to timer APIs
//	runtime.RunString(`
//	    setTimeout(() => { /* ... */ }, 100);
//	`)
//
//	// Run the loop to process callbacks
//	loop.Run(context.Background())
//
// # Available JavaScript Globals
//
// After binding, the following globals are available in JavaScript:
//
//   - setTimeout(callback, delay?) → timer ID : schedule one-time callback
//   - clearTimeout(id) → undefined : cancel scheduled timeout
//   - setInterval(callback, delay?) → timer ID : schedule repeating callback
//   - clearInterval(id) → undefined : cancel scheduled interval
//   - EventLoop : native loop object, see below
//
// The EventLoop object exposes the raw loop operations:
//
//   - EventLoop.createTimer(callback, delay, oneshot) → timer ID
//   - EventLoop.deleteTimer(id) → boolean (found)
//   - EventLoop.listenFd(fd, events) : watch a descriptor; events 0 stops
//   - EventLoop.requestExit() : stop the loop
//
// Descriptor readiness is dispatched to EventLoop.fdPollHandler, if a
// function has been assigned to it, as fdPollHandler(fd, revents) with
// EventLoop as the receiver.
//
// # Thread Safety
//
// The Goja runtime is not thread-safe. After [Adapter.Bind], JavaScript
// callbacks execute on the loop goroutine; the runtime must only be accessed
// from that goroutine (typically from within callbacks, or before the loop
// is started).
package gojareactor

import (
	"fmt"

	"github.com/dop251/goja"
	"github.com/joeycumines/go-reactor"
)

// eventLoopGlobal is the name of the native loop object in the JS global
// scope.
const eventLoopGlobal = "EventLoop"

// pollHandlerProp is the EventLoop property consulted for readiness
// dispatch. It is read at dispatch time, so scripts may assign it whenever
// they like.
const pollHandlerProp = "fdPollHandler"

// Adapter bridges a Goja runtime to a reactor.Loop, exposing the loop's
// timer and descriptor operations as JavaScript globals.
type Adapter struct {
	loop      *reactor.Loop
	runtime   *goja.Runtime
	eventLoop *goja.Object
}

// New creates a new Goja adapter for the given loop and runtime.
func New(loop *reactor.Loop, runtime *goja.Runtime) (*Adapter, error) {
	if loop == nil {
		return nil, fmt.Errorf("gojareactor: loop cannot be nil")
	}
	if runtime == nil {
		return nil, fmt.Errorf("gojareactor: runtime cannot be nil")
	}
	return &Adapter{
		loop:    loop,
		runtime: runtime,
	}, nil
}

// Loop returns the reactor loop.
func (a *Adapter) Loop() *reactor.Loop {
	return a.loop
}

// Runtime returns the Goja runtime.
func (a *Adapter) Runtime() *goja.Runtime {
	return a.runtime
}

// Bind creates the timer globals and the EventLoop native object in the
// Goja global scope, and installs the readiness dispatcher on the loop.
//
// This must be called before executing JavaScript code that uses the timer
// or descriptor APIs, and before the loop is started.
func (a *Adapter) Bind() error {
	if err := a.runtime.Set("setTimeout", a.setTimeout); err != nil {
		return err
	}
	if err := a.runtime.Set("clearTimeout", a.clearTimer); err != nil {
		return err
	}
	if err := a.runtime.Set("setInterval", a.setInterval); err != nil {
		return err
	}
	if err := a.runtime.Set("clearInterval", a.clearTimer); err != nil {
		return err
	}

	obj := a.runtime.NewObject()
	if err := obj.Set("createTimer", a.createTimer); err != nil {
		return err
	}
	if err := obj.Set("deleteTimer", a.deleteTimer); err != nil {
		return err
	}
	if err := obj.Set("listenFd", a.listenFd); err != nil {
		return err
	}
	if err := obj.Set("requestExit", a.requestExit); err != nil {
		return err
	}
	if err := a.runtime.Set(eventLoopGlobal, obj); err != nil {
		return err
	}
	a.eventLoop = obj

	a.loop.HandleReadiness(a.dispatchReadiness)
	return nil
}

// schedule wraps the common argument handling of the timer-creating
// bindings.
func (a *Adapter) schedule(call goja.FunctionCall, name string, oneshot bool) goja.Value {
	fn, ok := goja.AssertFunction(call.Argument(0))
	if !ok {
		panic(a.runtime.NewTypeError("%s requires a function as first argument", name))
	}

	delayMs := call.Argument(1).ToInteger()

	id, err := a.loop.CreateTimer(func() error {
		_, err := fn(goja.Undefined())
		return err
	}, delayMs, oneshot)
	if err != nil {
		panic(a.runtime.NewGoError(err))
	}

	return a.runtime.ToValue(int64(id))
}

// setTimeout binding for Goja
func (a *Adapter) setTimeout(call goja.FunctionCall) goja.Value {
	return a.schedule(call, "setTimeout", true)
}

// setInterval binding for Goja
func (a *Adapter) setInterval(call goja.FunctionCall) goja.Value {
	return a.schedule(call, "setInterval", false)
}

// clearTimer backs both clearTimeout and clearInterval. An unknown id is
// silently ignored, matching browser behavior.
func (a *Adapter) clearTimer(call goja.FunctionCall) goja.Value {
	a.loop.DeleteTimer(reactor.TimerID(call.Argument(0).ToInteger()))
	return goja.Undefined()
}

// createTimer binding for the EventLoop object: (callback, delay, oneshot).
func (a *Adapter) createTimer(call goja.FunctionCall) goja.Value {
	fn, ok := goja.AssertFunction(call.Argument(0))
	if !ok {
		panic(a.runtime.NewTypeError("createTimer requires a function as first argument"))
	}
	delayMs := call.Argument(1).ToInteger()
	oneshot := call.Argument(2).ToBoolean()

	id, err := a.loop.CreateTimer(func() error {
		_, err := fn(goja.Undefined())
		return err
	}, delayMs, oneshot)
	if err != nil {
		panic(a.runtime.NewGoError(err))
	}
	return a.runtime.ToValue(int64(id))
}

// deleteTimer binding for the EventLoop object.
func (a *Adapter) deleteTimer(call goja.FunctionCall) goja.Value {
	found := a.loop.DeleteTimer(reactor.TimerID(call.Argument(0).ToInteger()))
	return a.runtime.ToValue(found)
}

// listenFd binding for the EventLoop object: (fd, events). A zero events
// mask stops watching the descriptor.
func (a *Adapter) listenFd(call goja.FunctionCall) goja.Value {
	fd := int(call.Argument(0).ToInteger())
	events := reactor.Events(call.Argument(1).ToInteger())
	if err := a.loop.WatchFD(fd, events); err != nil {
		panic(a.runtime.NewGoError(err))
	}
	return goja.Undefined()
}

// requestExit binding for the EventLoop object.
func (a *Adapter) requestExit(call goja.FunctionCall) goja.Value {
	a.loop.RequestExit()
	return goja.Undefined()
}

// dispatchReadiness forwards descriptor readiness to the script's
// EventLoop.fdPollHandler, invoked as a method of EventLoop with
// (fd, revents). Dispatch is a no-op until the script assigns a function.
func (a *Adapter) dispatchReadiness(fd int, events reactor.Events) error {
	handler, ok := goja.AssertFunction(a.eventLoop.Get(pollHandlerProp))
	if !ok {
		return nil
	}
	_, err := handler(a.eventLoop, a.runtime.ToValue(fd), a.runtime.ToValue(uint16(events)))
	return err
}

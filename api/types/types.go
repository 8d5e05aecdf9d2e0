/*
 * Copyright 2025 The LinkGo Authors.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package types defines the contracts shared by every LinkGo package:
// the Operation descriptor, the two-phase Link contract, the shared Runtime
// handed to links during initialization, and the client configuration.
package types

import (
	"sync"

	"github.com/linkgo/linkgo/stream"
)

// 流向 操作流入、流出链路方向
// flow direction type
const (
	In  = "IN"
	Out = "OUT"
)

// 脚本类型
// script types understood by selector factories
const (
	Js        = "Js"
	AllScript = "All"
	// ScriptFuncSeparator separates the script type from the function name in Udf keys.
	ScriptFuncSeparator = "#"
)

// Script wraps a user-defined function registered through Config.RegisterUdf.
type Script struct {
	// Type of the script, e.g. Js
	Type string
	// Content is the script source or a native Go function.
	Content interface{}
}

// Configuration 链路组件配置类型
// Configuration is the raw key/value configuration of a link component,
// decoded into the component's typed config struct during construction.
type Configuration map[string]interface{}

// Forward delegates an operation to the next link in the chain.
type Forward func(op *Operation) *stream.Stream

// Handler is the initialized, per-operation phase of a Link.
// A handler either produces the operation's result stream itself (terminal
// link) or calls next to delegate, optionally composing behavior around the
// delegated stream. Handlers must never return nil.
type Handler func(op *Operation, next Forward) *stream.Stream

// Link 两阶段链路单元：先绑定运行时，再处理操作。
// Link is the two-phase unit of call-handling behavior. Init binds the link
// to the shared Runtime exactly once and returns the per-operation Handler.
// Initialization must not perform I/O; connection setup belongs to the first
// handled operation.
//
// Routers implement Link themselves, so a router can be an element of
// another chain.
type Link interface {
	Init(rt *Runtime) (Handler, error)
}

// LinkFunc adapts a plain function to the Link interface.
type LinkFunc func(rt *Runtime) (Handler, error)

func (f LinkFunc) Init(rt *Runtime) (Handler, error) {
	return f(rt)
}

// Runtime is the shared runtime object passed to every link's Init phase.
// It is owned by the enclosing client; links only reference it.
type Runtime struct {
	Config Config

	mu      sync.Mutex
	closers []func()
}

// NewRuntime creates a Runtime around the given configuration.
func NewRuntime(config Config) *Runtime {
	return &Runtime{Config: config}
}

// OnClose registers a hook invoked when the enclosing client shuts down.
// Links holding connections (websocket, mqtt) register their close here.
func (rt *Runtime) OnClose(fn func()) {
	if fn == nil {
		return
	}
	rt.mu.Lock()
	rt.closers = append(rt.closers, fn)
	rt.mu.Unlock()
}

// Close runs all registered close hooks in reverse registration order.
func (rt *Runtime) Close() {
	rt.mu.Lock()
	closers := rt.closers
	rt.closers = nil
	rt.mu.Unlock()
	for i := len(closers) - 1; i >= 0; i-- {
		closers[i]()
	}
}

// Pool is the interface for a goroutine pool. If not configured, tasks are
// started with a plain `go` statement.
type Pool interface {
	// Submit schedules the task for execution.
	Submit(task func()) error
	// Release shuts the pool down.
	Release()
}

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

// Package chain normalizes, initializes and executes ordered link lists.
//
// A chain is executed strictly sequentially: link i either produces the
// operation's result stream itself, or calls its forward continuation to
// delegate to link i+1. The executor binds those continuations; ordering,
// termination and cancellation semantics come from the stream package.
package chain

import (
	"errors"

	"github.com/linkgo/linkgo/api/types"
	"github.com/linkgo/linkgo/stream"
)

// Normalize resolves a "single link or list of links" configuration value
// into an ordered link list. A lone Link becomes a one-element list, a list
// passes through order-preserving, nil and unknown shapes become nil.
func Normalize(v interface{}) []types.Link {
	switch l := v.(type) {
	case nil:
		return nil
	case []types.Link:
		return l
	case types.LinkFunc:
		return []types.Link{l}
	case types.Link:
		return []types.Link{l}
	case func(rt *types.Runtime) (types.Handler, error):
		return []types.Link{types.LinkFunc(l)}
	default:
		return nil
	}
}

// Init runs the initialization phase of every link in order against the
// shared runtime. The first failing link aborts initialization; this is a
// construction-time failure, not a per-operation one.
func Init(rt *types.Runtime, links []types.Link) ([]types.Handler, error) {
	handlers := make([]types.Handler, 0, len(links))
	for _, link := range links {
		if link == nil {
			continue
		}
		handler, err := link.Init(rt)
		if err != nil {
			return nil, err
		}
		if handler == nil {
			return nil, errors.New("link initialization returned no handler")
		}
		handlers = append(handlers, handler)
	}
	return handlers, nil
}

// Execute runs op through the initialized handlers and returns the resulting
// stream. Element 0 receives a forward continuation bound to element 1, and
// so on; forwarding past the last element terminates the call with a
// ClientError, which is only reachable when the chain is malformed.
//
// Execute never fails synchronously: every failure surfaces as a terminal
// error event on the returned stream.
func Execute(op *types.Operation, handlers []types.Handler) *stream.Stream {
	var call func(index int, current *types.Operation) *stream.Stream
	call = func(index int, current *types.Operation) *stream.Stream {
		if index >= len(handlers) {
			return stream.Error(types.NewClientError("no further link in chain"))
		}
		next := func(forwarded *types.Operation) *stream.Stream {
			return call(index+1, forwarded)
		}
		return handlers[index](current, next)
	}
	return call(0, op)
}

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

// Package linkgo provides a lightweight, composable client-side RPC link
// chain: every call flows through an ordered chain of links, and each link
// either produces the result itself or forwards the call further down.
//
// # Usage
//
// Wire a client once with the chain that fits your topology, then issue
// typed calls against dotted procedure paths:
//
//	wsLink := links.NewWebSocketLink(links.WebSocketConfig{URL: "ws://127.0.0.1:9090/rpc"})
//	split, err := router.Switch(router.SwitchConfig{
//		Selector: router.TypeSelector(),
//		Cases: map[string]interface{}{
//			"query":        router.Endpoint(router.EndpointConfig{
//				RouterToEndpoint: map[string]string{"users": "http://users.internal/rpc"},
//				DefaultEndpoint:  "http://core.internal/rpc",
//			}),
//			"mutation":     links.NewHTTPBatchLink(links.HTTPBatchConfig{URL: "http://core.internal/rpc"}),
//			"subscription": wsLink,
//		},
//	})
//	if err != nil {
//		panic(err)
//	}
//	client, err := linkgo.NewClient([]types.Link{
//		links.NewLoggerLink(links.LoggerConfig{}),
//		split,
//	})
//
//	result, err := client.Query(context.Background(), "users.getAll", nil)
//
// Routers implement the same Link contract as every other link, so a switch
// router can sit inside an endpoint chain and the other way round.
package linkgo

import (
	"context"
	"errors"
	"sync"

	"github.com/linkgo/linkgo/api/types"
	"github.com/linkgo/linkgo/chain"
	"github.com/linkgo/linkgo/stream"
	"github.com/linkgo/linkgo/utils/pool"
)

// WithDefaultPool configures the shared worker pool for asynchronous transport
// work instead of raw goroutines. The pool is released on Client.Close.
func WithDefaultPool() types.Option {
	return func(c *types.Config) error {
		wp := &pool.WorkerPool{MaxWorkersCount: 100_000}
		wp.Start()
		c.Pool = wp
		return nil
	}
}

// Client executes operations through one initialized link chain.
type Client struct {
	rt       *types.Runtime
	handlers []types.Handler
}

// NewClient builds the root chain from link (a Link or []Link) and
// initializes it with a runtime created from the given options.
// Initialization happens exactly once, here; a failing link fails client
// construction.
func NewClient(link interface{}, opts ...types.Option) (*Client, error) {
	config := types.NewConfig(opts...)
	rt := types.NewRuntime(config)
	if config.Pool != nil {
		rt.OnClose(config.Pool.Release)
	}
	handlers, err := chain.Init(rt, chain.Normalize(link))
	if err != nil {
		return nil, err
	}
	if len(handlers) == 0 {
		return nil, errors.New("at least one link is required")
	}
	return &Client{rt: rt, handlers: handlers}, nil
}

// Runtime exposes the client's runtime, mainly for tests and advanced wiring.
func (c *Client) Runtime() *types.Runtime {
	return c.rt
}

// Execute runs one already-built operation through the chain and returns its
// result stream. Most callers want Query, Mutate or Subscribe instead.
func (c *Client) Execute(op *types.Operation) *stream.Stream {
	return chain.Execute(op, c.handlers)
}

// Query performs a query call and blocks until it settles. The first emitted
// value is the result; a cancelled ctx unsubscribes and returns ctx.Err().
func (c *Client) Query(ctx context.Context, path string, input interface{}) (interface{}, error) {
	return c.call(ctx, types.Query, path, input)
}

// Mutate performs a mutation call and blocks until it settles.
func (c *Client) Mutate(ctx context.Context, path string, input interface{}) (interface{}, error) {
	return c.call(ctx, types.Mutation, path, input)
}

func (c *Client) call(ctx context.Context, opType types.OpType, path string, input interface{}) (interface{}, error) {
	op := types.NewOperation(opType, path, input, types.WithContext(ctx))

	type outcome struct {
		value interface{}
		err   error
	}
	done := make(chan outcome, 1)
	var first interface{}
	var got bool

	subscription := c.Execute(op).Subscribe(stream.ObserverFuncs{
		Next: func(value interface{}) {
			if !got {
				got = true
				first = value
			}
		},
		Error: func(err error) {
			done <- outcome{err: err}
		},
		Complete: func() {
			done <- outcome{value: first}
		},
	})

	select {
	case result := <-done:
		return result.value, result.err
	case <-ctx.Done():
		subscription.Unsubscribe()
		return nil, ctx.Err()
	}
}

// Subscribe starts a subscription call and delivers its events to ob. The
// subscription ends when the server completes it, when ob receives an error,
// when ctx is cancelled, or when the returned subscription is unsubscribed.
func (c *Client) Subscribe(ctx context.Context, path string, input interface{}, ob stream.Observer) stream.Subscription {
	op := types.NewOperation(types.Subscription, path, input, types.WithContext(ctx))

	settled := make(chan struct{})
	var once sync.Once
	settle := func() {
		once.Do(func() {
			close(settled)
		})
	}

	inner := c.Execute(op).Subscribe(stream.ObserverFuncs{
		Next: ob.OnNext,
		Error: func(err error) {
			ob.OnError(err)
			settle()
		},
		Complete: func() {
			ob.OnComplete()
			settle()
		},
	})

	go func() {
		select {
		case <-ctx.Done():
			inner.Unsubscribe()
		case <-settled:
		}
	}()

	return &clientSubscription{inner: inner, settle: settle}
}

// Close shuts the client down: transport links release their connections.
func (c *Client) Close() {
	c.rt.Close()
}

type clientSubscription struct {
	inner  stream.Subscription
	settle func()
}

func (s *clientSubscription) Unsubscribe() {
	s.inner.Unsubscribe()
	s.settle()
}

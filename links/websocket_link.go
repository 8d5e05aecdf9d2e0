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

package links

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/linkgo/linkgo/api/types"
	"github.com/linkgo/linkgo/stream"
	"github.com/linkgo/linkgo/utils/maps"
)

func init() {
	_ = Registry.Add("websocket", func(configuration types.Configuration) (types.Link, error) {
		var config WebSocketConfig
		if err := maps.Map2StructWeakly(configuration, &config); err != nil {
			return nil, err
		}
		return NewWebSocketLink(config), nil
	})
}

// WebSocketConfig WebSocket传输链路配置
type WebSocketConfig struct {
	// URL ws:// 或 wss:// 端点地址
	URL string
	// Headers 握手请求头
	Headers map[string]string
	// HandshakeTimeoutMs 握手超时，单位毫秒，默认10000
	HandshakeTimeoutMs int
}

// stopMethod asks the server to end a running subscription.
const stopMethod = "stop"

// wsRequest is one client frame.
type wsRequest struct {
	Id       string         `json:"id"`
	Method   string         `json:"method"`
	Path     string         `json:"path,omitempty"`
	Input    interface{}    `json:"input,omitempty"`
	Metadata types.Metadata `json:"metadata,omitempty"`
}

// wsResponse is one server frame. Done marks the terminal frame of an
// operation; subscriptions receive many frames before it.
type wsResponse struct {
	Id     string          `json:"id"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *wireError      `json:"error,omitempty"`
	Done   bool            `json:"done,omitempty"`
}

// NewWebSocketLink 创建WebSocket传输链路
// NewWebSocketLink creates a terminal transport link over one shared
// websocket connection. The connection is dialed lazily on the first
// operation; a single reader goroutine dispatches server frames to the
// in-flight calls by operation id. Queries and mutations settle on their
// first terminal frame, subscriptions emit until the server reports done or
// the caller unsubscribes, which sends a stop frame upstream.
func NewWebSocketLink(config WebSocketConfig) types.Link {
	return types.LinkFunc(func(rt *types.Runtime) (types.Handler, error) {
		c := &wsClient{
			config:  config,
			pending: make(map[string]*wsCall),
		}
		rt.OnClose(c.close)

		return func(op *types.Operation, _ types.Forward) *stream.Stream {
			return stream.New(func(sub *stream.Subscriber) stream.Teardown {
				call := &wsCall{op: op, sub: sub}
				if err := c.start(call); err != nil {
					sub.Error(err)
					return nil
				}
				return func() {
					c.finish(call, true)
				}
			})
		}, nil
	})
}

type wsCall struct {
	op  *types.Operation
	sub *stream.Subscriber
}

// wsClient owns the shared connection. conn and pending are guarded by mu;
// writes are serialized by writeMu because gorilla connections allow only one
// concurrent writer.
type wsClient struct {
	config WebSocketConfig

	mu      sync.Mutex
	conn    *websocket.Conn
	pending map[string]*wsCall

	writeMu sync.Mutex
}

func (c *wsClient) handshakeTimeout() time.Duration {
	if c.config.HandshakeTimeoutMs <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.config.HandshakeTimeoutMs) * time.Millisecond
}

// start registers the call and writes its request frame, dialing first when
// no connection is up.
func (c *wsClient) start(call *wsCall) error {
	conn, err := c.ensureConnected()
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.pending[call.op.Id] = call
	c.mu.Unlock()

	err = c.write(conn, wsRequest{
		Id:       call.op.Id,
		Method:   string(call.op.Type),
		Path:     call.op.Path,
		Input:    call.op.Input,
		Metadata: call.op.Metadata,
	})
	if err != nil {
		c.finish(call, false)
		return err
	}
	return nil
}

// finish removes the call from the pending table. For a still-open
// subscription it also asks the server to stop producing.
func (c *wsClient) finish(call *wsCall, sendStop bool) {
	c.mu.Lock()
	_, registered := c.pending[call.op.Id]
	delete(c.pending, call.op.Id)
	conn := c.conn
	c.mu.Unlock()

	if sendStop && registered && conn != nil && call.op.Type == types.Subscription {
		_ = c.write(conn, wsRequest{Id: call.op.Id, Method: stopMethod})
	}
}

func (c *wsClient) ensureConnected() (*websocket.Conn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		return c.conn, nil
	}

	dialer := websocket.Dialer{HandshakeTimeout: c.handshakeTimeout()}
	header := http.Header{}
	for k, v := range c.config.Headers {
		header.Set(k, v)
	}
	conn, _, err := dialer.Dial(c.config.URL, header)
	if err != nil {
		return nil, err
	}
	c.conn = conn
	go c.readLoop(conn)
	return conn, nil
}

func (c *wsClient) write(conn *websocket.Conn, frame wsRequest) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return conn.WriteJSON(frame)
}

// readLoop dispatches server frames to pending calls until the connection
// breaks, then fails every in-flight call so the next operation redials.
func (c *wsClient) readLoop(conn *websocket.Conn) {
	for {
		var frame wsResponse
		if err := conn.ReadJSON(&frame); err != nil {
			c.dropConnection(conn, err)
			return
		}

		c.mu.Lock()
		call := c.pending[frame.Id]
		if call != nil && frame.Done {
			delete(c.pending, frame.Id)
		}
		c.mu.Unlock()
		if call == nil {
			continue
		}

		if frame.Error != nil {
			call.sub.Error(&types.ClientError{Message: frame.Error.Message})
			continue
		}
		if len(frame.Result) > 0 {
			var value interface{}
			if err := json.Unmarshal(frame.Result, &value); err != nil {
				call.sub.Error(err)
				continue
			}
			call.sub.Next(value)
		}
		if frame.Done {
			call.sub.Complete()
		}
	}
}

func (c *wsClient) dropConnection(conn *websocket.Conn, err error) {
	c.mu.Lock()
	if c.conn == conn {
		c.conn = nil
	}
	inflight := make([]*wsCall, 0, len(c.pending))
	for id, call := range c.pending {
		inflight = append(inflight, call)
		delete(c.pending, id)
	}
	c.mu.Unlock()

	_ = conn.Close()
	for _, call := range inflight {
		call.sub.Error(err)
	}
}

func (c *wsClient) close() {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()
	if conn != nil {
		_ = conn.Close()
	}
}

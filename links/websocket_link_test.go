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
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/linkgo/linkgo/api/types"
	"github.com/linkgo/linkgo/stream"
	"github.com/linkgo/linkgo/test/assert"
)

// newWsServer serves the websocket wire protocol: queries and mutations get
// one terminal frame echoing the path, subscriptions stream the frames 1..3
// and then complete. A stop frame records itself on stops.
func newWsServer(t *testing.T, stops chan<- string) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		var writeMu sync.Mutex
		send := func(frame wsResponse) {
			writeMu.Lock()
			defer writeMu.Unlock()
			_ = conn.WriteJSON(frame)
		}
		for {
			var req wsRequest
			if err := conn.ReadJSON(&req); err != nil {
				return
			}
			switch req.Method {
			case "stop":
				if stops != nil {
					stops <- req.Id
				}
			case "subscription":
				go func(req wsRequest) {
					for i := 1; i <= 3; i++ {
						send(wsResponse{Id: req.Id, Result: []byte(`{"tick":` + string(rune('0'+i)) + `}`)})
					}
					send(wsResponse{Id: req.Id, Done: true})
				}(req)
			default:
				if strings.HasPrefix(req.Path, "boom.") {
					send(wsResponse{Id: req.Id, Error: &wireError{Message: "ws boom"}, Done: true})
				} else {
					send(wsResponse{Id: req.Id, Result: []byte(`"` + req.Path + `"`), Done: true})
				}
			}
		}
	}))
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func TestWebSocketLinkQuery(t *testing.T) {
	server := newWsServer(t, nil)
	defer server.Close()

	handler, rt := initHandler(t, NewWebSocketLink(WebSocketConfig{URL: wsURL(server)}))
	defer rt.Close()

	result := execute(t, handler, types.NewOperation(types.Query, "users.getAll", nil))
	assert.Nil(t, result.err)
	assert.True(t, result.completed)
	assert.Equal(t, []interface{}{"users.getAll"}, result.values)
}

// Several operations multiplex over the one shared connection.
func TestWebSocketLinkMultiplexing(t *testing.T) {
	server := newWsServer(t, nil)
	defer server.Close()

	handler, rt := initHandler(t, NewWebSocketLink(WebSocketConfig{URL: wsURL(server)}))
	defer rt.Close()

	first := execute(t, handler, types.NewOperation(types.Query, "users.getAll", nil))
	second := execute(t, handler, types.NewOperation(types.Mutation, "users.create", nil))
	assert.Equal(t, []interface{}{"users.getAll"}, first.values)
	assert.Equal(t, []interface{}{"users.create"}, second.values)
}

func TestWebSocketLinkSubscriptionStream(t *testing.T) {
	server := newWsServer(t, nil)
	defer server.Close()

	handler, rt := initHandler(t, NewWebSocketLink(WebSocketConfig{URL: wsURL(server)}))
	defer rt.Close()

	result := execute(t, handler, types.NewOperation(types.Subscription, "posts.onNew", nil))
	assert.Nil(t, result.err)
	assert.True(t, result.completed)
	assert.Equal(t, 3, len(result.values))
}

// Unsubscribing a live subscription sends a stop frame for its id.
func TestWebSocketLinkUnsubscribeSendsStop(t *testing.T) {
	stops := make(chan string, 1)
	server := newWsServer(t, stops)
	defer server.Close()

	handler, rt := initHandler(t, NewWebSocketLink(WebSocketConfig{URL: wsURL(server)}))
	defer rt.Close()

	op := types.NewOperation(types.Subscription, "posts.onNew", nil)
	got := make(chan struct{})
	var once sync.Once
	subscription := handler(op, nil).Subscribe(stream.ObserverFuncs{
		Next: func(interface{}) { once.Do(func() { close(got) }) },
	})
	select {
	case <-got:
	case <-time.After(5 * time.Second):
		t.Fatal("subscription produced no event")
	}
	subscription.Unsubscribe()

	select {
	case id := <-stops:
		assert.Equal(t, op.Id, id)
	case <-time.After(5 * time.Second):
		t.Fatal("no stop frame received")
	}
}

func TestWebSocketLinkErrorFrame(t *testing.T) {
	server := newWsServer(t, nil)
	defer server.Close()

	handler, rt := initHandler(t, NewWebSocketLink(WebSocketConfig{URL: wsURL(server)}))
	defer rt.Close()

	result := execute(t, handler, types.NewOperation(types.Query, "boom.now", nil))
	assert.NotNil(t, result.err)
	assert.Equal(t, "ws boom", result.err.Error())
}

func TestWebSocketLinkDialFailure(t *testing.T) {
	handler, rt := initHandler(t, NewWebSocketLink(WebSocketConfig{
		URL:                "ws://127.0.0.1:1/rpc",
		HandshakeTimeoutMs: 500,
	}))
	defer rt.Close()

	result := execute(t, handler, types.NewOperation(types.Query, "users.getAll", nil))
	assert.NotNil(t, result.err)
}

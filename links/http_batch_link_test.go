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
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/julienschmidt/httprouter"

	"github.com/linkgo/linkgo/api/types"
	"github.com/linkgo/linkgo/stream"
	"github.com/linkgo/linkgo/test/assert"
)

// initHandler initializes a link against a fresh runtime.
func initHandler(t *testing.T, link types.Link) (types.Handler, *types.Runtime) {
	t.Helper()
	rt := types.NewRuntime(types.NewConfig())
	handler, err := link.Init(rt)
	assert.Nil(t, err)
	return handler, rt
}

// callResult is the settled outcome of one operation.
type callResult struct {
	values    []interface{}
	err       error
	completed bool
}

// execute runs op through handler and waits for the terminal event.
func execute(t *testing.T, handler types.Handler, op *types.Operation) callResult {
	t.Helper()
	done := make(chan callResult, 1)
	var result callResult
	handler(op, nil).Subscribe(stream.ObserverFuncs{
		Next: func(v interface{}) { result.values = append(result.values, v) },
		Error: func(e error) {
			result.err = e
			done <- result
		},
		Complete: func() {
			result.completed = true
			done <- result
		},
	})
	select {
	case r := <-done:
		return r
	case <-time.After(5 * time.Second):
		t.Fatal("operation did not settle")
		return callResult{}
	}
}

// newBatchServer serves the batch wire protocol: each request is a JSON array
// of operations, each response entry echoes the operation path as its result.
// Paths under "boom" produce an error entry, paths under "missing" no entry.
func newBatchServer(t *testing.T, requests *int32) *httptest.Server {
	t.Helper()
	mux := httprouter.New()
	mux.POST("/rpc", func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		atomic.AddInt32(requests, 1)
		var items []batchItem
		if err := json.NewDecoder(r.Body).Decode(&items); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		var results []map[string]interface{}
		for _, item := range items {
			op := types.NewOperation(item.Type, item.Path, item.Input, types.WithId(item.Id))
			switch op.RouterName() {
			case "boom":
				results = append(results, map[string]interface{}{
					"id":    item.Id,
					"error": map[string]interface{}{"message": "server exploded"},
				})
			case "missing":
				// drop the entry
			default:
				results = append(results, map[string]interface{}{
					"id":     item.Id,
					"result": map[string]interface{}{"path": item.Path},
				})
			}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(results)
	})
	return httptest.NewServer(mux)
}

func TestHTTPBatchLinkSingleCall(t *testing.T) {
	var requests int32
	server := newBatchServer(t, &requests)
	defer server.Close()

	handler, rt := initHandler(t, NewHTTPBatchLink(HTTPBatchConfig{URL: server.URL + "/rpc"}))
	defer rt.Close()

	result := execute(t, handler, types.NewOperation(types.Query, "users.getAll", nil))
	assert.Nil(t, result.err)
	assert.True(t, result.completed)
	assert.Equal(t, []interface{}{map[string]interface{}{"path": "users.getAll"}}, result.values)
}

// Operations inside one batch window travel in a single HTTP request and are
// demultiplexed back by id.
func TestHTTPBatchLinkBatchesWindow(t *testing.T) {
	var requests int32
	server := newBatchServer(t, &requests)
	defer server.Close()

	handler, rt := initHandler(t, NewHTTPBatchLink(HTTPBatchConfig{
		URL:           server.URL + "/rpc",
		BatchWindowMs: 50,
	}))
	defer rt.Close()

	type settled struct {
		values []interface{}
		err    error
	}
	outcomes := make(chan settled, 2)
	subscribe := func(path string) {
		var values []interface{}
		handler(types.NewOperation(types.Query, path, nil), nil).Subscribe(stream.ObserverFuncs{
			Next:     func(v interface{}) { values = append(values, v) },
			Error:    func(e error) { outcomes <- settled{err: e} },
			Complete: func() { outcomes <- settled{values: values} },
		})
	}
	subscribe("users.getAll")
	subscribe("posts.list")

	for i := 0; i < 2; i++ {
		select {
		case outcome := <-outcomes:
			assert.Nil(t, outcome.err)
			assert.Equal(t, 1, len(outcome.values))
		case <-time.After(5 * time.Second):
			t.Fatal("batched operations did not settle")
		}
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&requests))
}

// A full batch flushes immediately without waiting out the window.
func TestHTTPBatchLinkMaxBatchSize(t *testing.T) {
	var requests int32
	server := newBatchServer(t, &requests)
	defer server.Close()

	handler, rt := initHandler(t, NewHTTPBatchLink(HTTPBatchConfig{
		URL:           server.URL + "/rpc",
		BatchWindowMs: 60_000,
		MaxBatchSize:  2,
	}))
	defer rt.Close()

	done := make(chan struct{}, 2)
	subscribe := func(path string) {
		handler(types.NewOperation(types.Query, path, nil), nil).Subscribe(stream.ObserverFuncs{
			Complete: func() { done <- struct{}{} },
			Error:    func(error) { done <- struct{}{} },
		})
	}
	subscribe("users.getAll")
	subscribe("posts.list")

	for i := 0; i < 2; i++ {
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatal("full batch was not flushed")
		}
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&requests))
}

func TestHTTPBatchLinkErrorEntry(t *testing.T) {
	var requests int32
	server := newBatchServer(t, &requests)
	defer server.Close()

	handler, rt := initHandler(t, NewHTTPBatchLink(HTTPBatchConfig{URL: server.URL + "/rpc"}))
	defer rt.Close()

	result := execute(t, handler, types.NewOperation(types.Query, "boom.now", nil))
	assert.NotNil(t, result.err)
	assert.Equal(t, "server exploded", result.err.Error())
	assert.False(t, result.completed)
}

func TestHTTPBatchLinkMissingResponse(t *testing.T) {
	var requests int32
	server := newBatchServer(t, &requests)
	defer server.Close()

	handler, rt := initHandler(t, NewHTTPBatchLink(HTTPBatchConfig{URL: server.URL + "/rpc"}))
	defer rt.Close()

	op := types.NewOperation(types.Query, "missing.entry", nil)
	result := execute(t, handler, op)
	assert.NotNil(t, result.err)
	assert.Equal(t, `no response for operation "`+op.Id+`"`, result.err.Error())
}

func TestHTTPBatchLinkNon200(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer server.Close()

	handler, rt := initHandler(t, NewHTTPBatchLink(HTTPBatchConfig{URL: server.URL}))
	defer rt.Close()

	result := execute(t, handler, types.NewOperation(types.Query, "users.getAll", nil))
	assert.NotNil(t, result.err)
	assert.Equal(t, "http batch request failed. status=502 Bad Gateway", result.err.Error())
}

func TestHTTPBatchLinkRejectsSubscriptions(t *testing.T) {
	handler, rt := initHandler(t, NewHTTPBatchLink(HTTPBatchConfig{URL: "http://unused.invalid/rpc"}))
	defer rt.Close()

	result := execute(t, handler, types.NewOperation(types.Subscription, "posts.onNew", nil))
	assert.NotNil(t, result.err)
	assert.Equal(t,
		"subscriptions are not supported by the httpBatch link, use the websocket link",
		result.err.Error())
}

func TestHTTPBatchLinkHeaders(t *testing.T) {
	var gotStatic, gotDynamic string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotStatic = r.Header.Get("X-Static")
		gotDynamic = r.Header.Get("X-Dynamic")
		w.Header().Set("Content-Type", "application/json")
		var items []batchItem
		_ = json.NewDecoder(r.Body).Decode(&items)
		var results []map[string]interface{}
		for _, item := range items {
			results = append(results, map[string]interface{}{"id": item.Id, "result": true})
		}
		_ = json.NewEncoder(w).Encode(results)
	}))
	defer server.Close()

	handler, rt := initHandler(t, NewHTTPBatchLink(HTTPBatchConfig{
		URL:     server.URL,
		Headers: map[string]string{"X-Static": "yes"},
		HeadersFunc: func(ops []*types.Operation) map[string]string {
			return map[string]string{"X-Dynamic": ops[0].Path}
		},
	}))
	defer rt.Close()

	result := execute(t, handler, types.NewOperation(types.Mutation, "users.create", map[string]interface{}{"name": "ada"}))
	assert.Nil(t, result.err)
	assert.Equal(t, "yes", gotStatic)
	assert.Equal(t, "users.create", gotDynamic)
}

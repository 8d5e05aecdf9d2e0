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

package router

import (
	"testing"

	"github.com/linkgo/linkgo/api/types"
	"github.com/linkgo/linkgo/stream"
	"github.com/linkgo/linkgo/test/assert"
)

// terminalLink ends the chain with the given value and counts its Init calls.
func terminalLink(value interface{}, initCount *int) types.Link {
	return types.LinkFunc(func(rt *types.Runtime) (types.Handler, error) {
		if initCount != nil {
			*initCount++
		}
		return func(op *types.Operation, next types.Forward) *stream.Stream {
			return stream.Of(value)
		}, nil
	})
}

func run(t *testing.T, link types.Link, op *types.Operation) ([]interface{}, error) {
	t.Helper()
	rt := types.NewRuntime(types.NewConfig())
	handler, err := link.Init(rt)
	assert.Nil(t, err)
	var values []interface{}
	var callErr error
	handler(op, nil).Subscribe(stream.ObserverFuncs{
		Next:  func(v interface{}) { values = append(values, v) },
		Error: func(e error) { callErr = e },
	})
	return values, callErr
}

func TestSwitchEmptyCases(t *testing.T) {
	_, err := Switch(SwitchConfig{Selector: TypeSelector()})
	assert.NotNil(t, err)
	assert.Equal(t, "cases object must have at least one entry", err.Error())
}

func TestSwitchMissingSelector(t *testing.T) {
	_, err := Switch(SwitchConfig{
		Cases: map[string]interface{}{"a": terminalLink("x", nil)},
	})
	assert.NotNil(t, err)
	assert.Equal(t, "selector function is required", err.Error())
}

func TestSwitchRoutesByType(t *testing.T) {
	link, err := Switch(SwitchConfig{
		Selector: TypeSelector(),
		Cases: map[string]interface{}{
			"query":    terminalLink("from query case", nil),
			"mutation": terminalLink("from mutation case", nil),
		},
	})
	assert.Nil(t, err)

	values, callErr := run(t, link, types.NewOperation(types.Query, "users.getAll", nil))
	assert.Nil(t, callErr)
	assert.Equal(t, []interface{}{"from query case"}, values)

	values, callErr = run(t, link, types.NewOperation(types.Mutation, "users.create", nil))
	assert.Nil(t, callErr)
	assert.Equal(t, []interface{}{"from mutation case"}, values)
}

func TestSwitchUnknownKey(t *testing.T) {
	link, err := Switch(SwitchConfig{
		Selector: MetadataSelector("target"),
		Cases: map[string]interface{}{
			"b": terminalLink(nil, nil),
			"a": terminalLink(nil, nil),
			"c": terminalLink(nil, nil),
		},
	})
	assert.Nil(t, err)

	md := types.NewMetadata()
	md.PutValue("target", "nope")
	op := types.NewOperation(types.Query, "users.getAll", nil, types.WithMetadata(md))
	_, callErr := run(t, link, op)
	assert.NotNil(t, callErr)
	assert.Equal(t, `selector returned unknown key "nope". Valid keys are: a, b, c`, callErr.Error())
}

// Every case chain is initialized once when the router is, selected or not.
func TestSwitchEagerInit(t *testing.T) {
	hits, misses := 0, 0
	link, err := Switch(SwitchConfig{
		Selector: TypeSelector(),
		Cases: map[string]interface{}{
			"query":    terminalLink("hit", &hits),
			"mutation": terminalLink("never selected", &misses),
		},
	})
	assert.Nil(t, err)

	rt := types.NewRuntime(types.NewConfig())
	handler, err := link.Init(rt)
	assert.Nil(t, err)
	assert.Equal(t, 1, hits)
	assert.Equal(t, 1, misses)

	for i := 0; i < 3; i++ {
		handler(types.NewOperation(types.Query, "users.getAll", nil), nil).Subscribe(stream.ObserverFuncs{})
	}
	assert.Equal(t, 1, hits)
}

func TestSwitchCaseChainList(t *testing.T) {
	var trace []string
	passthrough := types.LinkFunc(func(rt *types.Runtime) (types.Handler, error) {
		return func(op *types.Operation, next types.Forward) *stream.Stream {
			trace = append(trace, "pass")
			return next(op)
		}, nil
	})
	link, err := Switch(SwitchConfig{
		Selector: PathPrefixSelector(),
		Cases: map[string]interface{}{
			"users": []types.Link{passthrough, terminalLink("ok", nil)},
		},
	})
	assert.Nil(t, err)

	values, callErr := run(t, link, types.NewOperation(types.Query, "users.getAll", nil))
	assert.Nil(t, callErr)
	assert.Equal(t, []interface{}{"ok"}, values)
	assert.Equal(t, []string{"pass"}, trace)
}

func TestExprSelector(t *testing.T) {
	selector, err := ExprSelector(`type == "subscription" ? "ws" : "http"`, types.NewConfig())
	assert.Nil(t, err)

	op := types.NewOperation(types.Subscription, "posts.onNew", nil)
	key := selector(SelectorContext{Path: op.Path, Type: op.Type, Metadata: op.Metadata, Op: op})
	assert.Equal(t, "ws", key)

	op = types.NewOperation(types.Query, "posts.list", nil)
	key = selector(SelectorContext{Path: op.Path, Type: op.Type, Metadata: op.Metadata, Op: op})
	assert.Equal(t, "http", key)
}

func TestExprSelectorCompileError(t *testing.T) {
	_, err := ExprSelector(`type ==`, types.NewConfig())
	assert.NotNil(t, err)
}

func TestJsSelector(t *testing.T) {
	selector, err := JsSelector(`return path.split('.')[0] === 'admin' ? 'admin' : type;`, types.NewConfig())
	assert.Nil(t, err)

	op := types.NewOperation(types.Query, "admin.listUsers", nil)
	key := selector(SelectorContext{Path: op.Path, Type: op.Type, Metadata: op.Metadata, Op: op})
	assert.Equal(t, "admin", key)

	op = types.NewOperation(types.Mutation, "users.create", nil)
	key = selector(SelectorContext{Path: op.Path, Type: op.Type, Metadata: op.Metadata, Op: op})
	assert.Equal(t, "mutation", key)
}

func TestSwitchInsideSwitch(t *testing.T) {
	inner, err := Switch(SwitchConfig{
		Selector: PathPrefixSelector(),
		Cases: map[string]interface{}{
			"users": terminalLink("users over http", nil),
		},
	})
	assert.Nil(t, err)
	outer, err := Switch(SwitchConfig{
		Selector: TypeSelector(),
		Cases: map[string]interface{}{
			"query": inner,
		},
	})
	assert.Nil(t, err)

	values, callErr := run(t, outer, types.NewOperation(types.Query, "users.getAll", nil))
	assert.Nil(t, callErr)
	assert.Equal(t, []interface{}{"users over http"}, values)
}

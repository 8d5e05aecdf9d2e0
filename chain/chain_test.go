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

package chain

import (
	"errors"
	"testing"

	"github.com/linkgo/linkgo/api/types"
	"github.com/linkgo/linkgo/stream"
	"github.com/linkgo/linkgo/test/assert"
)

// tagLink records chain traversal in trace and forwards.
func tagLink(tag string, trace *[]string) types.Link {
	return types.LinkFunc(func(rt *types.Runtime) (types.Handler, error) {
		return func(op *types.Operation, next types.Forward) *stream.Stream {
			*trace = append(*trace, tag)
			return next(op)
		}, nil
	})
}

// valueLink terminates the chain with a single value.
func valueLink(value interface{}) types.Link {
	return types.LinkFunc(func(rt *types.Runtime) (types.Handler, error) {
		return func(op *types.Operation, next types.Forward) *stream.Stream {
			return stream.Of(value)
		}, nil
	})
}

func collect(s *stream.Stream) ([]interface{}, error, bool) {
	var values []interface{}
	var err error
	completed := false
	s.Subscribe(stream.ObserverFuncs{
		Next:     func(v interface{}) { values = append(values, v) },
		Error:    func(e error) { err = e },
		Complete: func() { completed = true },
	})
	return values, err, completed
}

func TestNormalize(t *testing.T) {
	single := valueLink("v")
	list := []types.Link{single, single}

	t.Run("nil", func(t *testing.T) {
		assert.Equal(t, 0, len(Normalize(nil)))
	})
	t.Run("single link", func(t *testing.T) {
		assert.Equal(t, 1, len(Normalize(single)))
	})
	t.Run("list", func(t *testing.T) {
		assert.Equal(t, 2, len(Normalize(list)))
	})
	t.Run("raw func", func(t *testing.T) {
		raw := func(rt *types.Runtime) (types.Handler, error) {
			return func(op *types.Operation, next types.Forward) *stream.Stream {
				return stream.Empty()
			}, nil
		}
		assert.Equal(t, 1, len(Normalize(raw)))
	})
	t.Run("unknown shape", func(t *testing.T) {
		assert.Equal(t, 0, len(Normalize("not a link")))
	})
}

func TestInitOrderAndFailure(t *testing.T) {
	rt := types.NewRuntime(types.NewConfig())
	var order []string
	initTag := func(tag string, err error) types.Link {
		return types.LinkFunc(func(rt *types.Runtime) (types.Handler, error) {
			order = append(order, tag)
			if err != nil {
				return nil, err
			}
			return func(op *types.Operation, next types.Forward) *stream.Stream {
				return next(op)
			}, nil
		})
	}

	t.Run("in order", func(t *testing.T) {
		order = nil
		handlers, err := Init(rt, []types.Link{initTag("a", nil), initTag("b", nil)})
		assert.Nil(t, err)
		assert.Equal(t, 2, len(handlers))
		assert.Equal(t, []string{"a", "b"}, order)
	})
	t.Run("first error aborts", func(t *testing.T) {
		order = nil
		boom := errors.New("init failed")
		handlers, err := Init(rt, []types.Link{initTag("a", nil), initTag("b", boom), initTag("c", nil)})
		assert.Equal(t, boom, err)
		assert.Nil(t, handlers)
		assert.Equal(t, []string{"a", "b"}, order)
	})
	t.Run("nil handler rejected", func(t *testing.T) {
		nilLink := types.LinkFunc(func(rt *types.Runtime) (types.Handler, error) {
			return nil, nil
		})
		_, err := Init(rt, []types.Link{nilLink})
		assert.NotNil(t, err)
	})
}

func TestExecuteOrder(t *testing.T) {
	rt := types.NewRuntime(types.NewConfig())
	var trace []string
	handlers, err := Init(rt, []types.Link{
		tagLink("first", &trace),
		tagLink("second", &trace),
		valueLink("result"),
	})
	assert.Nil(t, err)

	op := types.NewOperation(types.Query, "users.getAll", nil)
	values, callErr, completed := collect(Execute(op, handlers))

	assert.Equal(t, []string{"first", "second"}, trace)
	assert.Equal(t, []interface{}{"result"}, values)
	assert.Nil(t, callErr)
	assert.True(t, completed)
}

func TestExecutePastEndOfChain(t *testing.T) {
	rt := types.NewRuntime(types.NewConfig())
	var trace []string
	handlers, err := Init(rt, []types.Link{tagLink("only", &trace)})
	assert.Nil(t, err)

	op := types.NewOperation(types.Query, "users.getAll", nil)
	_, callErr, _ := collect(Execute(op, handlers))

	assert.NotNil(t, callErr)
	assert.Equal(t, "no further link in chain", callErr.Error())
}

func TestExecuteEmptyChain(t *testing.T) {
	op := types.NewOperation(types.Query, "users.getAll", nil)
	_, callErr, _ := collect(Execute(op, nil))
	assert.NotNil(t, callErr)
	assert.Equal(t, "no further link in chain", callErr.Error())
}

// A wrapped single link and a one-element list must behave identically.
func TestBareLinkEqualsSingletonList(t *testing.T) {
	rt := types.NewRuntime(types.NewConfig())
	op := types.NewOperation(types.Query, "users.getAll", nil)

	bare, err := Init(rt, Normalize(valueLink(42)))
	assert.Nil(t, err)
	list, err := Init(rt, Normalize([]types.Link{valueLink(42)}))
	assert.Nil(t, err)

	bareValues, _, _ := collect(Execute(op, bare))
	listValues, _, _ := collect(Execute(op, list))
	assert.Equal(t, bareValues, listValues)
}

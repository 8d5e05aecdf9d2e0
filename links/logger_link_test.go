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
	"errors"
	"testing"

	"github.com/linkgo/linkgo/api/types"
	"github.com/linkgo/linkgo/stream"
	"github.com/linkgo/linkgo/test/assert"
)

type debugEvent struct {
	linkName string
	flowType string
	err      error
}

func loggerHandler(t *testing.T, config LoggerConfig, events *[]debugEvent) types.Handler {
	t.Helper()
	rt := types.NewRuntime(types.NewConfig(types.WithOnDebug(
		func(linkName string, flowType string, op *types.Operation, err error) {
			*events = append(*events, debugEvent{linkName: linkName, flowType: flowType, err: err})
		})))
	handler, err := NewLoggerLink(config).Init(rt)
	assert.Nil(t, err)
	return handler
}

func TestLoggerLinkDebugEvents(t *testing.T) {
	var events []debugEvent
	handler := loggerHandler(t, LoggerConfig{Prefix: "trace"}, &events)

	result := executeWith(t, handler, types.NewOperation(types.Query, "users.getAll", nil),
		func(op *types.Operation) *stream.Stream { return stream.Of("ok") })
	assert.True(t, result.completed)
	assert.Equal(t, []interface{}{"ok"}, result.values)

	assert.Equal(t, 2, len(events))
	assert.Equal(t, "trace", events[0].linkName)
	assert.Equal(t, types.In, events[0].flowType)
	assert.Nil(t, events[0].err)
	assert.Equal(t, types.Out, events[1].flowType)
	assert.Nil(t, events[1].err)
}

func TestLoggerLinkReportsFailure(t *testing.T) {
	var events []debugEvent
	handler := loggerHandler(t, LoggerConfig{}, &events)

	boom := errors.New("downstream broke")
	result := executeWith(t, handler, types.NewOperation(types.Mutation, "users.create", nil),
		func(op *types.Operation) *stream.Stream { return stream.Error(boom) })
	assert.Equal(t, boom, result.err)

	assert.Equal(t, 2, len(events))
	assert.Equal(t, "link", events[0].linkName)
	assert.Equal(t, types.Out, events[1].flowType)
	assert.Equal(t, boom, events[1].err)
}

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

// Package router provides the two routing links: a multi-way switch driven by
// a selector function, and an endpoint router that maps the leading path
// segment of an operation to a transport chain per endpoint URL.
//
// Both routers implement the standard Link contract, so they can themselves
// be placed inside another chain.
package router

import (
	"errors"
	"sort"
	"strings"

	"github.com/linkgo/linkgo/api/types"
	"github.com/linkgo/linkgo/chain"
	"github.com/linkgo/linkgo/stream"
)

// SwitchConfig 多路选择路由配置
// SwitchConfig configures a switch router.
type SwitchConfig struct {
	// Selector computes the routing key for each operation.
	Selector SelectorFunc
	// Cases maps every expected key to a Link or []Link. Must not be empty.
	Cases map[string]interface{}
}

// Switch creates a multi-way routing link. Construction fails fast when the
// configuration cannot possibly route anything; a selector returning a key
// outside Cases is a recoverable, per-call error on that call's stream.
//
// All case chains are initialized eagerly when the router itself is
// initialized, whether or not they are ever selected: the key space is
// statically known, so a broken case chain should fail wiring, not the first
// unlucky call.
func Switch(config SwitchConfig) (types.Link, error) {
	if len(config.Cases) == 0 {
		return nil, errors.New("cases object must have at least one entry")
	}
	if config.Selector == nil {
		return nil, errors.New("selector function is required")
	}

	validKeys := make([]string, 0, len(config.Cases))
	for key := range config.Cases {
		validKeys = append(validKeys, key)
	}
	sort.Strings(validKeys)
	keyList := strings.Join(validKeys, ", ")

	return types.LinkFunc(func(rt *types.Runtime) (types.Handler, error) {
		chains := make(map[string][]types.Handler, len(config.Cases))
		for key, value := range config.Cases {
			handlers, err := chain.Init(rt, chain.Normalize(value))
			if err != nil {
				return nil, err
			}
			chains[key] = handlers
		}

		return func(op *types.Operation, _ types.Forward) *stream.Stream {
			key := config.Selector(SelectorContext{
				Path:     op.Path,
				Type:     op.Type,
				Metadata: op.Metadata,
				Op:       op,
			})
			handlers, ok := chains[key]
			if !ok {
				return stream.Error(types.NewClientError(
					"selector returned unknown key %q. Valid keys are: %s", key, keyList))
			}
			return chain.Execute(op, handlers)
		}, nil
	}), nil
}

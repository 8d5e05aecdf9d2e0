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
	"strings"
	"sync"

	"github.com/linkgo/linkgo/api/types"
	"github.com/linkgo/linkgo/chain"
	"github.com/linkgo/linkgo/links"
	"github.com/linkgo/linkgo/stream"
	"github.com/linkgo/linkgo/utils/str"
)

// EndpointConfig 端点路由配置
// EndpointConfig configures an endpoint router.
type EndpointConfig struct {
	// RouterToEndpoint maps a router name (leading path segment) to an
	// endpoint URL.
	RouterToEndpoint map[string]string
	// DefaultEndpoint, when set, receives every operation whose router name
	// has no mapping entry.
	DefaultEndpoint string
	// Strict selects the diagnostic produced for an unresolvable router name:
	// the strict message enumerates the available mappings.
	Strict bool
	// LinkFactory builds the Link or []Link for one endpoint. Defaults to a
	// single HTTP batch transport link targeting that endpoint.
	LinkFactory func(endpoint string) interface{}
	// Transport is forwarded verbatim to the default HTTP batch factory
	// (headers, timeouts, custom http.Client). Ignored when LinkFactory is
	// set. The URL field is overwritten per endpoint.
	Transport links.HTTPBatchConfig
}

// Endpoint creates a routing link that maps each operation's router name to
// an endpoint URL and forwards it to that endpoint's transport chain.
//
// Chains are built lazily and memoized per distinct endpoint string, not per
// router name: two router names sharing one endpoint URL share exactly one
// initialized chain, and the factory runs exactly once for it. The cache is
// guarded by a mutex; initialization therefore happens at most once per
// endpoint even with concurrent first calls.
func Endpoint(config EndpointConfig) types.Link {
	factory := config.LinkFactory
	if factory == nil {
		factory = func(endpoint string) interface{} {
			transport := config.Transport
			transport.URL = endpoint
			return links.NewHTTPBatchLink(transport)
		}
	}

	return types.LinkFunc(func(rt *types.Runtime) (types.Handler, error) {
		var mu sync.Mutex
		chains := make(map[string][]types.Handler)

		resolveChain := func(endpoint string) ([]types.Handler, error) {
			mu.Lock()
			defer mu.Unlock()
			if handlers, ok := chains[endpoint]; ok {
				return handlers, nil
			}
			handlers, err := chain.Init(rt, chain.Normalize(factory(endpoint)))
			if err != nil {
				return nil, err
			}
			chains[endpoint] = handlers
			return handlers, nil
		}

		return func(op *types.Operation, _ types.Forward) *stream.Stream {
			routerName := op.RouterName()
			endpoint := config.RouterToEndpoint[routerName]
			if endpoint == "" {
				endpoint = config.DefaultEndpoint
			}
			if endpoint == "" {
				return stream.Error(unresolvedEndpointError(config, routerName))
			}
			handlers, err := resolveChain(endpoint)
			if err != nil {
				// Chain construction failed; surface on this call's stream and
				// leave the cache untouched so a later call may retry.
				return stream.Error(err)
			}
			return chain.Execute(op, handlers)
		}, nil
	})
}

func unresolvedEndpointError(config EndpointConfig, routerName string) error {
	if config.Strict {
		mappings := "(none)"
		if len(config.RouterToEndpoint) > 0 {
			mappings = strings.Join(str.SortedKeys(config.RouterToEndpoint), ", ")
		}
		return types.NewClientError(
			"no endpoint mapping for router %q and no defaultEndpoint provided. Available mappings: %s",
			routerName, mappings)
	}
	return types.NewClientError(
		"no endpoint for router %q. Either add it to routerToEndpoint or provide a defaultEndpoint.",
		routerName)
}

// TypedEndpointConfig is the EndpointConfig variant whose mapping keys are
// drawn from a named string type enumerating the known router names.
type TypedEndpointConfig[K ~string] struct {
	RouterToEndpoint map[K]string
	DefaultEndpoint  string
	Strict           bool
	LinkFactory      func(endpoint string) interface{}
	Transport        links.HTTPBatchConfig
}

// EndpointFor is the type-constrained variant of Endpoint: the mapping keys
// must come from a dedicated router-name type. The constraint is purely
// static; at runtime it delegates unconditionally to Endpoint.
func EndpointFor[K ~string](config TypedEndpointConfig[K]) types.Link {
	mapping := make(map[string]string, len(config.RouterToEndpoint))
	for name, endpoint := range config.RouterToEndpoint {
		mapping[string(name)] = endpoint
	}
	return Endpoint(EndpointConfig{
		RouterToEndpoint: mapping,
		DefaultEndpoint:  config.DefaultEndpoint,
		Strict:           config.Strict,
		LinkFactory:      config.LinkFactory,
		Transport:        config.Transport,
	})
}

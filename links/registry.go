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
	"fmt"
	"sort"
	"sync"

	"github.com/linkgo/linkgo/api/types"
)

// Factory builds a link from its raw configuration map.
type Factory func(configuration types.Configuration) (types.Link, error)

// LinkRegistry maps link type names to factories so chains can be assembled
// from configuration.
type LinkRegistry struct {
	sync.RWMutex
	factories map[string]Factory
}

// Registry is the default link registry. Built-in links register themselves
// here during package initialization.
var Registry = &LinkRegistry{factories: make(map[string]Factory)}

// Add registers a factory under the given link type.
func (r *LinkRegistry) Add(linkType string, factory Factory) error {
	r.Lock()
	defer r.Unlock()
	if _, ok := r.factories[linkType]; ok {
		return fmt.Errorf("link type already exists. linkType=%s", linkType)
	}
	r.factories[linkType] = factory
	return nil
}

// New builds a link of the given type from its configuration.
func (r *LinkRegistry) New(linkType string, configuration types.Configuration) (types.Link, error) {
	r.RLock()
	factory, ok := r.factories[linkType]
	r.RUnlock()
	if !ok {
		return nil, fmt.Errorf("link type not found. linkType=%s", linkType)
	}
	return factory(configuration)
}

// Types returns the registered link type names in ascending order.
func (r *LinkRegistry) Types() []string {
	r.RLock()
	defer r.RUnlock()
	linkTypes := make([]string, 0, len(r.factories))
	for linkType := range r.factories {
		linkTypes = append(linkTypes, linkType)
	}
	sort.Strings(linkTypes)
	return linkTypes
}

// New builds a link of the given type from the default registry.
func New(linkType string, configuration types.Configuration) (types.Link, error) {
	return Registry.New(linkType, configuration)
}

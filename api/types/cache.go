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

package types

// Cache 缓存接口
// Cache is the shared cache abstraction used by caching links.
type Cache interface {
	// Set stores a value with an optional TTL expressed as a duration string
	// (e.g. "10m"). An empty ttl stores the value without expiration.
	// Returns an error if the ttl cannot be parsed.
	Set(key string, value interface{}, ttl string) error
	// Get returns the stored value, or nil if the key is absent or expired.
	Get(key string) interface{}
	// Has checks whether a key exists and has not expired.
	Has(key string) bool
	// Delete removes a cache item by key.
	Delete(key string) error
}

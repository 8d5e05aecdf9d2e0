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
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"github.com/linkgo/linkgo/api/types"
	"github.com/linkgo/linkgo/stream"
	"github.com/linkgo/linkgo/utils/cache"
	"github.com/linkgo/linkgo/utils/maps"
)

func init() {
	_ = Registry.Add("cache", func(configuration types.Configuration) (types.Link, error) {
		var config CacheConfig
		if err := maps.Map2StructWeakly(configuration, &config); err != nil {
			return nil, err
		}
		return NewCacheLink(config), nil
	})
}

// CacheConfig 查询结果缓存链路配置
type CacheConfig struct {
	// TTL 缓存时长，时间字符串格式（例如 "30s"、"5m"），默认 "5m"
	TTL string
}

const cacheKeyPrefix = "linkgo:query:"

// NewCacheLink 创建查询结果缓存链路
// NewCacheLink creates a pass-through link that caches query results in the
// configured shared cache (Config.Cache, defaulting to the in-memory cache),
// keyed by path plus an input digest. Only single-value query results are
// cached; mutations and subscriptions always pass through.
func NewCacheLink(config CacheConfig) types.Link {
	ttl := config.TTL
	if ttl == "" {
		ttl = "5m"
	}
	return types.LinkFunc(func(rt *types.Runtime) (types.Handler, error) {
		store := rt.Config.Cache
		if store == nil {
			store = cache.DefaultCache
		}

		return func(op *types.Operation, next types.Forward) *stream.Stream {
			if op.Type != types.Query {
				return next(op)
			}
			key := cacheKeyPrefix + op.Path + ":" + inputDigest(op.Input)
			if value := store.Get(key); value != nil {
				return stream.Of(value)
			}

			return stream.New(func(sub *stream.Subscriber) stream.Teardown {
				var values []interface{}
				inner := next(op).Subscribe(stream.ObserverFuncs{
					Next: func(value interface{}) {
						values = append(values, value)
						sub.Next(value)
					},
					Error: sub.Error,
					Complete: func() {
						if len(values) == 1 && values[0] != nil {
							_ = store.Set(key, values[0], ttl)
						}
						sub.Complete()
					},
				})
				return inner.Unsubscribe
			})
		}, nil
	})
}

// inputDigest hashes the JSON form of the input so arbitrary payloads can
// take part in a flat string cache key.
func inputDigest(input interface{}) string {
	if input == nil {
		return "nil"
	}
	data, err := json.Marshal(input)
	if err != nil {
		return "unhashable"
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:8])
}

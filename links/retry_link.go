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
	"sync"
	"time"

	"github.com/linkgo/linkgo/api/types"
	"github.com/linkgo/linkgo/stream"
	"github.com/linkgo/linkgo/utils/maps"
)

func init() {
	_ = Registry.Add("retry", func(configuration types.Configuration) (types.Link, error) {
		var config RetryConfig
		if err := maps.Map2StructWeakly(configuration, &config); err != nil {
			return nil, err
		}
		return NewRetryLink(config), nil
	})
}

// RetryConfig 重试链路配置
type RetryConfig struct {
	// MaxAttempts 最大尝试次数，默认3
	MaxAttempts int
	// BackoffMs 重试间隔，单位毫秒，默认100
	BackoffMs int
}

// NewRetryLink 创建重试链路
// NewRetryLink creates a pass-through link that re-forwards the operation
// when its downstream chain fails. Only errors arriving before the first
// value are retried: once anything has been emitted, replaying the chain
// would duplicate output, so the error is forwarded as-is. Retrying stops
// when the caller's context is cancelled or the caller unsubscribes.
func NewRetryLink(config RetryConfig) types.Link {
	maxAttempts := config.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	backoff := time.Duration(config.BackoffMs) * time.Millisecond
	if config.BackoffMs <= 0 {
		backoff = 100 * time.Millisecond
	}

	return types.LinkFunc(func(rt *types.Runtime) (types.Handler, error) {
		return func(op *types.Operation, next types.Forward) *stream.Stream {
			return stream.New(func(sub *stream.Subscriber) stream.Teardown {
				var mu sync.Mutex
				var current stream.Subscription
				var timer *time.Timer
				emitted := false

				var attempt func(n int)
				attempt = func(n int) {
					inner := next(op).Subscribe(stream.ObserverFuncs{
						Next: func(value interface{}) {
							mu.Lock()
							emitted = true
							mu.Unlock()
							sub.Next(value)
						},
						Error: func(err error) {
							mu.Lock()
							retryable := n < maxAttempts && !emitted &&
								op.Context().Err() == nil && !sub.Closed()
							if retryable {
								timer = time.AfterFunc(backoff, func() {
									attempt(n + 1)
								})
							}
							mu.Unlock()
							if !retryable {
								sub.Error(err)
							}
						},
						Complete: sub.Complete,
					})
					mu.Lock()
					current = inner
					mu.Unlock()
				}
				attempt(1)

				return func() {
					mu.Lock()
					if timer != nil {
						timer.Stop()
					}
					inner := current
					mu.Unlock()
					if inner != nil {
						inner.Unsubscribe()
					}
				}
			})
		}, nil
	})
}

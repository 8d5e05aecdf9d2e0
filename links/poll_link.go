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

	"github.com/robfig/cron/v3"

	"github.com/linkgo/linkgo/api/types"
	"github.com/linkgo/linkgo/stream"
	"github.com/linkgo/linkgo/utils/maps"
)

func init() {
	_ = Registry.Add("poll", func(configuration types.Configuration) (types.Link, error) {
		var config PollConfig
		if err := maps.Map2StructWeakly(configuration, &config); err != nil {
			return nil, err
		}
		return NewPollLink(config), nil
	})
}

// PollConfig 轮询链路配置
type PollConfig struct {
	// Cron 轮询计划，cron表达式，例如 "@every 30s"
	Cron string
	// SkipImmediate 为true时不立即执行第一次轮询，等待首个计划点
	SkipImmediate bool
}

// NewPollLink 创建轮询链路
// NewPollLink creates a pass-through link that emulates subscriptions
// against transports that only support request/response: each subscription
// is turned into a query re-forwarded on the cron schedule, every poll
// result is emitted on the subscription stream, and the first downstream
// error terminates it. Unsubscribing stops the schedule and any in-flight
// poll. Non-subscription operations pass through untouched.
func NewPollLink(config PollConfig) types.Link {
	schedule := config.Cron
	if schedule == "" {
		schedule = "@every 30s"
	}
	return types.LinkFunc(func(rt *types.Runtime) (types.Handler, error) {
		return func(op *types.Operation, next types.Forward) *stream.Stream {
			if op.Type != types.Subscription {
				return next(op)
			}
			return stream.New(func(sub *stream.Subscriber) stream.Teardown {
				var mu sync.Mutex
				var inflight stream.Subscription

				poll := func() {
					if sub.Closed() {
						return
					}
					// Fresh id per poll so transports demultiplex each round
					// trip independently.
					tick := types.NewOperation(types.Query, op.Path, op.Input,
						types.WithContext(op.Context()),
						types.WithMetadata(op.Metadata.Copy()))
					inner := next(tick).Subscribe(stream.ObserverFuncs{
						Next:  sub.Next,
						Error: sub.Error,
					})
					mu.Lock()
					inflight = inner
					mu.Unlock()
				}

				scheduler := cron.New()
				if _, err := scheduler.AddFunc(schedule, poll); err != nil {
					sub.Error(err)
					return nil
				}
				scheduler.Start()
				if !config.SkipImmediate {
					poll()
				}

				return func() {
					scheduler.Stop()
					mu.Lock()
					inner := inflight
					mu.Unlock()
					if inner != nil {
						inner.Unsubscribe()
					}
				}
			})
		}, nil
	})
}

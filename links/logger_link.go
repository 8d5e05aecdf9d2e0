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
	"time"

	"github.com/linkgo/linkgo/api/types"
	"github.com/linkgo/linkgo/stream"
	"github.com/linkgo/linkgo/utils/maps"
)

func init() {
	_ = Registry.Add("logger", func(configuration types.Configuration) (types.Link, error) {
		var config LoggerConfig
		if err := maps.Map2StructWeakly(configuration, &config); err != nil {
			return nil, err
		}
		return NewLoggerLink(config), nil
	})
}

// LoggerConfig 日志链路配置
type LoggerConfig struct {
	// Prefix 日志前缀，默认 "link"
	Prefix string
}

// NewLoggerLink 创建日志链路
// NewLoggerLink creates a pass-through link that logs each operation entering
// the chain and its outcome with duration. It also feeds the Config.OnDebug
// hook with In/Out events, mirroring what the operation's downstream chain
// reports.
func NewLoggerLink(config LoggerConfig) types.Link {
	prefix := config.Prefix
	if prefix == "" {
		prefix = "link"
	}
	return types.LinkFunc(func(rt *types.Runtime) (types.Handler, error) {
		logger := types.NewLogger(rt.Config.Logger)
		onDebug := rt.Config.OnDebug

		return func(op *types.Operation, next types.Forward) *stream.Stream {
			return stream.New(func(sub *stream.Subscriber) stream.Teardown {
				logger.Printf("%s: %s %s id=%s", prefix, op.Type, op.Path, op.Id)
				if onDebug != nil {
					onDebug(prefix, types.In, op, nil)
				}
				start := time.Now()

				inner := next(op).Subscribe(stream.ObserverFuncs{
					Next: sub.Next,
					Error: func(err error) {
						logger.Printf("%s: %s %s failed after %s: %s", prefix, op.Type, op.Path, time.Since(start), err)
						if onDebug != nil {
							onDebug(prefix, types.Out, op, err)
						}
						sub.Error(err)
					},
					Complete: func() {
						logger.Printf("%s: %s %s done in %s", prefix, op.Type, op.Path, time.Since(start))
						if onDebug != nil {
							onDebug(prefix, types.Out, op, nil)
						}
						sub.Complete()
					},
				})
				return inner.Unsubscribe
			})
		}, nil
	})
}

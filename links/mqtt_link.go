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
	"context"
	"encoding/json"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/linkgo/linkgo/api/types"
	"github.com/linkgo/linkgo/stream"
	"github.com/linkgo/linkgo/utils/maps"
	"github.com/linkgo/linkgo/utils/mqtt"
)

func init() {
	_ = Registry.Add("mqtt", func(configuration types.Configuration) (types.Link, error) {
		var config MQTTConfig
		if err := maps.Map2StructWeakly(configuration, &config); err != nil {
			return nil, err
		}
		return NewMQTTLink(config), nil
	})
}

// MQTTConfig MQTT传输链路配置
type MQTTConfig struct {
	// Server mqtt broker 地址，例如 tcp://127.0.0.1:1883
	Server string
	// Username 用户名
	Username string
	// Password 密码
	Password string
	// Topic 主题前缀；操作发布到 <Topic>/request/<id>，应答订阅 <Topic>/reply/<id>
	Topic string
	// QOS 发布和订阅Qos
	QOS uint8
	// RequestTimeoutMs 单次请求超时，单位毫秒，默认10000
	RequestTimeoutMs int
	// ConnectTimeoutMs 首次连接超时，单位毫秒，默认10000
	ConnectTimeoutMs int
	// InsecureSkipVerify 禁用TLS证书验证
	InsecureSkipVerify bool
}

// NewMQTTLink 创建MQTT请求/应答传输链路
// NewMQTTLink creates a terminal transport link speaking request/reply over
// an MQTT broker. The reply topic is subscribed before the request is
// published, so the reply cannot be lost to a subscribe race. Queries and
// mutations settle on the first reply; subscriptions keep emitting every
// reply message until the caller unsubscribes.
//
// The broker connection is established lazily on the first operation, because
// link initialization must not perform I/O.
func NewMQTTLink(config MQTTConfig) types.Link {
	return types.LinkFunc(func(rt *types.Runtime) (types.Handler, error) {
		l := &mqttLink{config: config}
		rt.OnClose(l.close)

		return func(op *types.Operation, _ types.Forward) *stream.Stream {
			return stream.New(func(sub *stream.Subscriber) stream.Teardown {
				return l.call(op, sub)
			})
		}, nil
	})
}

type mqttLink struct {
	config MQTTConfig

	mu     sync.Mutex
	client *mqtt.Client
}

func (l *mqttLink) requestTimeout() time.Duration {
	if l.config.RequestTimeoutMs <= 0 {
		return 10 * time.Second
	}
	return time.Duration(l.config.RequestTimeoutMs) * time.Millisecond
}

func (l *mqttLink) connectTimeout() time.Duration {
	if l.config.ConnectTimeoutMs <= 0 {
		return 10 * time.Second
	}
	return time.Duration(l.config.ConnectTimeoutMs) * time.Millisecond
}

func (l *mqttLink) ensureConnected() (*mqtt.Client, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.client != nil {
		return l.client, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), l.connectTimeout())
	defer cancel()
	client, err := mqtt.NewClient(ctx, mqtt.Config{
		Server:             l.config.Server,
		Username:           l.config.Username,
		Password:           l.config.Password,
		QOS:                l.config.QOS,
		CleanSession:       true,
		InsecureSkipVerify: l.config.InsecureSkipVerify,
	})
	if err != nil {
		return nil, err
	}
	l.client = client
	return client, nil
}

func (l *mqttLink) call(op *types.Operation, sub *stream.Subscriber) stream.Teardown {
	client, err := l.ensureConnected()
	if err != nil {
		sub.Error(err)
		return nil
	}

	replyTopic := l.config.Topic + "/reply/" + op.Id
	requestTopic := l.config.Topic + "/request/" + op.Id

	var timer *time.Timer
	if op.Type != types.Subscription {
		timer = time.AfterFunc(l.requestTimeout(), func() {
			sub.Error(types.NewClientError("mqtt request timeout. topic=%s", requestTopic))
		})
	}

	client.RegisterHandler(mqtt.Handler{
		Topic: replyTopic,
		Qos:   l.config.QOS,
		Handle: func(c paho.Client, data paho.Message) {
			var result batchResult
			if err := json.Unmarshal(data.Payload(), &result); err != nil {
				sub.Error(err)
				return
			}
			if result.Error != nil {
				sub.Error(&types.ClientError{Message: result.Error.Message})
				return
			}
			var value interface{}
			if len(result.Result) > 0 {
				if err := json.Unmarshal(result.Result, &value); err != nil {
					sub.Error(err)
					return
				}
			}
			sub.Next(value)
			if op.Type != types.Subscription {
				sub.Complete()
			}
		},
	})

	payload, err := json.Marshal(batchItem{
		Id:       op.Id,
		Type:     op.Type,
		Path:     op.Path,
		Input:    op.Input,
		Metadata: op.Metadata,
	})
	if err == nil {
		err = client.Publish(requestTopic, l.config.QOS, payload)
	}
	if err != nil {
		sub.Error(err)
	}

	return func() {
		if timer != nil {
			timer.Stop()
		}
		_ = client.UnregisterHandler(replyTopic)
	}
}

func (l *mqttLink) close() {
	l.mu.Lock()
	client := l.client
	l.client = nil
	l.mu.Unlock()
	if client != nil {
		_ = client.Close()
	}
}

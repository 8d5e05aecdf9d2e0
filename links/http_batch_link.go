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
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/proxy"

	"github.com/linkgo/linkgo/api/types"
	"github.com/linkgo/linkgo/stream"
	"github.com/linkgo/linkgo/utils/maps"
)

func init() {
	_ = Registry.Add("httpBatch", func(configuration types.Configuration) (types.Link, error) {
		var config HTTPBatchConfig
		if err := maps.Map2StructWeakly(configuration, &config); err != nil {
			return nil, err
		}
		return NewHTTPBatchLink(config), nil
	})
}

// HTTPBatchConfig HTTP批量传输链路配置
type HTTPBatchConfig struct {
	// URL 目标端点地址
	URL string
	// Headers 请求头
	Headers map[string]string
	// HeadersFunc produces additional per-batch headers, merged over Headers.
	// Not settable from raw configuration.
	HeadersFunc func(ops []*types.Operation) map[string]string `mapstructure:"-" json:"-"`
	// BatchWindowMs 攒批窗口，单位毫秒，默认5。0表示每个操作单独发送
	BatchWindowMs int
	// MaxBatchSize 单批最大操作数，攒满立即发送。0代表不限制
	MaxBatchSize int
	// ReadTimeoutMs 超时，单位毫秒，默认0:不限制
	ReadTimeoutMs int
	// InsecureSkipVerify 禁用证书验证
	InsecureSkipVerify bool
	// EnableProxy 是否开启代理
	EnableProxy bool
	// ProxyScheme 代理协议 http/https/socks5
	ProxyScheme string
	// ProxyHost 代理主机
	ProxyHost string
	// ProxyPort 代理端口
	ProxyPort int
	// ProxyUser 代理用户名
	ProxyUser string
	// ProxyPassword 代理密码
	ProxyPassword string
	// HTTPClient overrides the built client. Not settable from raw
	// configuration.
	HTTPClient *http.Client `mapstructure:"-" json:"-"`
}

// batchItem is one operation on the wire.
type batchItem struct {
	Id       string         `json:"id"`
	Type     types.OpType   `json:"type"`
	Path     string         `json:"path"`
	Input    interface{}    `json:"input,omitempty"`
	Metadata types.Metadata `json:"metadata,omitempty"`
}

// batchResult is one response entry, matched to its operation by id.
type batchResult struct {
	Id     string          `json:"id"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *wireError      `json:"error,omitempty"`
}

type wireError struct {
	Message string `json:"message"`
}

// NewHTTPBatchLink 创建HTTP批量传输链路
// NewHTTPBatchLink creates the default terminal transport link: operations
// arriving within the batch window are flushed as one HTTP POST carrying a
// JSON array, and the response array is demultiplexed back to the individual
// result streams by operation id.
//
// Subscriptions cannot be expressed over a single request/response exchange
// and are rejected with a terminal error; route them to the websocket, mqtt
// or poll link instead.
func NewHTTPBatchLink(config HTTPBatchConfig) types.Link {
	return types.LinkFunc(func(rt *types.Runtime) (types.Handler, error) {
		client := config.HTTPClient
		if client == nil {
			transport := &http.Transport{
				MaxIdleConnsPerHost: 32,
			}
			if config.InsecureSkipVerify {
				transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
			}
			if config.EnableProxy {
				if err := configureProxy(transport, config); err != nil {
					return nil, err
				}
			}
			client = &http.Client{Transport: transport}
		}

		batcher := &httpBatcher{
			config:   config,
			rtConfig: rt.Config,
			client:   client,
		}
		rt.OnClose(batcher.close)

		return func(op *types.Operation, _ types.Forward) *stream.Stream {
			if op.Type == types.Subscription {
				return stream.Error(types.NewClientError(
					"subscriptions are not supported by the httpBatch link, use the websocket link"))
			}
			return stream.New(func(sub *stream.Subscriber) stream.Teardown {
				call := &batchCall{op: op, sub: sub}
				batcher.enqueue(call)
				return func() {
					batcher.cancel(call)
				}
			})
		}, nil
	})
}

// configureProxy wires the transport through the configured proxy, socks5 via
// x/net/proxy, http/https via http.ProxyURL.
func configureProxy(transport *http.Transport, config HTTPBatchConfig) error {
	address := fmt.Sprintf("%s:%d", config.ProxyHost, config.ProxyPort)
	if strings.EqualFold(config.ProxyScheme, "socks5") {
		var auth *proxy.Auth
		if config.ProxyUser != "" {
			auth = &proxy.Auth{User: config.ProxyUser, Password: config.ProxyPassword}
		}
		dialer, err := proxy.SOCKS5("tcp", address, auth, proxy.Direct)
		if err != nil {
			return err
		}
		transport.Dial = dialer.Dial
		return nil
	}
	proxyUrl, err := url.Parse(fmt.Sprintf("%s://%s", config.ProxyScheme, address))
	if err != nil {
		return err
	}
	transport.Proxy = http.ProxyURL(proxyUrl)
	return nil
}

type batchCall struct {
	op  *types.Operation
	sub *stream.Subscriber
}

// httpBatcher collects calls during the batch window and sends them as one
// request. pending and timer are guarded by mu.
type httpBatcher struct {
	config   HTTPBatchConfig
	rtConfig types.Config
	client   *http.Client

	mu      sync.Mutex
	pending []*batchCall
	timer   *time.Timer
}

func (b *httpBatcher) batchWindow() time.Duration {
	if b.config.BatchWindowMs < 0 {
		return 0
	}
	if b.config.BatchWindowMs == 0 {
		return 5 * time.Millisecond
	}
	return time.Duration(b.config.BatchWindowMs) * time.Millisecond
}

func (b *httpBatcher) enqueue(call *batchCall) {
	window := b.batchWindow()

	b.mu.Lock()
	b.pending = append(b.pending, call)
	size := len(b.pending)
	if size == 1 && window > 0 {
		b.timer = time.AfterFunc(window, b.flush)
	}
	full := b.config.MaxBatchSize > 0 && size >= b.config.MaxBatchSize
	b.mu.Unlock()

	if full || window <= 0 {
		b.flush()
	}
}

// cancel removes a call that has not been sent yet. Calls already in flight
// are left alone; the subscriber guard drops any late delivery.
func (b *httpBatcher) cancel(call *batchCall) {
	b.mu.Lock()
	for i, pending := range b.pending {
		if pending == call {
			b.pending = append(b.pending[:i], b.pending[i+1:]...)
			break
		}
	}
	b.mu.Unlock()
}

func (b *httpBatcher) flush() {
	b.mu.Lock()
	batch := b.pending
	b.pending = nil
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
	b.mu.Unlock()

	if len(batch) == 0 {
		return
	}
	b.rtConfig.SubmitTask(func() {
		b.send(batch)
	})
}

func (b *httpBatcher) close() {
	b.flush()
	b.client.CloseIdleConnections()
}

func (b *httpBatcher) send(batch []*batchCall) {
	items := make([]batchItem, len(batch))
	ops := make([]*types.Operation, len(batch))
	for i, call := range batch {
		ops[i] = call.op
		items[i] = batchItem{
			Id:       call.op.Id,
			Type:     call.op.Type,
			Path:     call.op.Path,
			Input:    call.op.Input,
			Metadata: call.op.Metadata,
		}
	}

	body, err := json.Marshal(items)
	if err != nil {
		b.failAll(batch, err)
		return
	}

	ctx := context.Background()
	if b.config.ReadTimeoutMs > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(b.config.ReadTimeoutMs)*time.Millisecond)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.config.URL, bytes.NewReader(body))
	if err != nil {
		b.failAll(batch, err)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range b.config.Headers {
		req.Header.Set(k, v)
	}
	if b.config.HeadersFunc != nil {
		for k, v := range b.config.HeadersFunc(ops) {
			req.Header.Set(k, v)
		}
	}

	resp, err := b.client.Do(req)
	if err != nil {
		b.failAll(batch, err)
		return
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		b.failAll(batch, err)
		return
	}
	if resp.StatusCode != http.StatusOK {
		b.failAll(batch, types.NewClientError("http batch request failed. status=%s", resp.Status))
		return
	}

	var results []batchResult
	if err = json.Unmarshal(payload, &results); err != nil {
		b.failAll(batch, err)
		return
	}
	byId := make(map[string]batchResult, len(results))
	for _, result := range results {
		byId[result.Id] = result
	}

	for _, call := range batch {
		result, ok := byId[call.op.Id]
		if !ok {
			call.sub.Error(types.NewClientError("no response for operation %q", call.op.Id))
			continue
		}
		if result.Error != nil {
			call.sub.Error(&types.ClientError{Message: result.Error.Message})
			continue
		}
		var value interface{}
		if len(result.Result) > 0 {
			if err = json.Unmarshal(result.Result, &value); err != nil {
				call.sub.Error(err)
				continue
			}
		}
		call.sub.Next(value)
		call.sub.Complete()
	}
}

func (b *httpBatcher) failAll(batch []*batchCall, err error) {
	for _, call := range batch {
		call.sub.Error(err)
	}
}

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

import (
	"context"
	"strings"

	"github.com/gofrs/uuid/v5"
)

// OpType 操作类型
// OpType is the kind of a remote procedure call.
type OpType string

const (
	Query        = OpType("query")
	Mutation     = OpType("mutation")
	Subscription = OpType("subscription")
)

// Metadata 调用方附加的键值对，路由选择器可以读取
// Metadata is the caller-supplied key/value mapping attached to an operation.
// Selectors consult it to pick a routing key.
type Metadata map[string]string

// NewMetadata 创建一个新的元数据实例
func NewMetadata() Metadata {
	return make(Metadata)
}

// BuildMetadata 通过map，创建一个新的元数据实例
func BuildMetadata(data Metadata) Metadata {
	metadata := make(Metadata)
	for k, v := range data {
		metadata[k] = v
	}
	return metadata
}

// Copy 复制
func (md Metadata) Copy() Metadata {
	return BuildMetadata(md)
}

// Has 是否存在某个key
func (md Metadata) Has(key string) bool {
	_, ok := md[key]
	return ok
}

// GetValue 通过key获取值
func (md Metadata) GetValue(key string) string {
	return md[key]
}

// PutValue 设置值
func (md Metadata) PutValue(key, value string) {
	if key != "" {
		md[key] = value
	}
}

// Values 获取所有值
func (md Metadata) Values() map[string]string {
	return md
}

// Operation 一次客户端调用描述
// Operation describes one client call flowing through a link chain.
// It is immutable once submitted: every link in a chain shares the same
// read-only descriptor. Links that need to alter an operation work on a Copy.
type Operation struct {
	// Id 操作ID，整个链路流转过程中唯一
	Id string `json:"id"`
	// Type 调用类型 query/mutation/subscription
	Type OpType `json:"type"`
	// Path 点分隔的过程路径，第一段是路由名称，例如 "users.getAll"
	Path string `json:"path"`
	// Input 调用负荷
	Input interface{} `json:"input,omitempty"`
	// Metadata 调用方上下文键值对
	Metadata Metadata `json:"metadata,omitempty"`

	ctx context.Context
}

// OperationOption configures an Operation at construction time.
type OperationOption func(*Operation)

// WithContext attaches the caller's context; its cancellation signal cancels
// the operation's result stream.
func WithContext(ctx context.Context) OperationOption {
	return func(op *Operation) {
		op.ctx = ctx
	}
}

// WithMetadata attaches caller metadata.
func WithMetadata(metadata Metadata) OperationOption {
	return func(op *Operation) {
		op.Metadata = metadata
	}
}

// WithId overrides the generated operation id.
func WithId(id string) OperationOption {
	return func(op *Operation) {
		op.Id = id
	}
}

// NewOperation 创建一个新的操作实例，并通过uuid生成操作ID
func NewOperation(opType OpType, path string, input interface{}, opts ...OperationOption) *Operation {
	op := &Operation{
		Type:  opType,
		Path:  path,
		Input: input,
	}
	for _, opt := range opts {
		opt(op)
	}
	if op.Id == "" {
		uuId, _ := uuid.NewV4()
		op.Id = uuId.String()
	}
	if op.Metadata == nil {
		op.Metadata = NewMetadata()
	}
	return op
}

// Context returns the caller context, never nil.
func (op *Operation) Context() context.Context {
	if op.ctx == nil {
		return context.Background()
	}
	return op.ctx
}

// RouterName returns the leading dot-delimited segment of the path.
// A path without a dot is its own router name.
func (op *Operation) RouterName() string {
	if idx := strings.Index(op.Path, "."); idx >= 0 {
		return op.Path[:idx]
	}
	return op.Path
}

// Copy 复制
// Copy returns a shallow copy with its own metadata map, sharing the caller
// context.
func (op *Operation) Copy() *Operation {
	clone := *op
	clone.Metadata = op.Metadata.Copy()
	return &clone
}

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
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/linkgo/linkgo/api/types"
	"github.com/linkgo/linkgo/utils/js"
	"github.com/linkgo/linkgo/utils/str"
)

// SelectorContext 选择器入参
// SelectorContext is what a selector sees of one operation.
type SelectorContext struct {
	// Path 操作路径
	Path string
	// Type 调用类型
	Type types.OpType
	// Metadata 调用方上下文键值对
	Metadata types.Metadata
	// Op 完整操作
	Op *types.Operation
}

// SelectorFunc maps an operation to a discrete routing key. The returned key
// is untrusted: the switch router validates membership in the case set before
// dispatch, so a selector can never crash the router.
type SelectorFunc func(ctx SelectorContext) string

// TypeSelector routes by call type: "query", "mutation" or "subscription".
func TypeSelector() SelectorFunc {
	return func(ctx SelectorContext) string {
		return string(ctx.Type)
	}
}

// PathPrefixSelector routes by the operation's router name (leading path
// segment).
func PathPrefixSelector() SelectorFunc {
	return func(ctx SelectorContext) string {
		return ctx.Op.RouterName()
	}
}

// MetadataSelector routes by the value of one metadata key.
func MetadataSelector(key string) SelectorFunc {
	return func(ctx SelectorContext) string {
		return ctx.Metadata.GetValue(key)
	}
}

// ExprSelector compiles an expr expression into a selector.
// The expression sees the variables `path`, `type`, `metadata` and `input`
// and must evaluate to the routing key, e.g.:
//
//	type == "subscription" ? "ws" : "http"
//
// An evaluation failure is logged and yields an empty key, which the switch
// router reports as an unknown key for that call.
func ExprSelector(expression string, config types.Config) (SelectorFunc, error) {
	program, err := expr.Compile(expression, expr.AllowUndefinedVariables())
	if err != nil {
		return nil, err
	}
	logger := types.NewLogger(config.Logger)
	return func(ctx SelectorContext) string {
		evn := map[string]interface{}{
			"path":     ctx.Path,
			"type":     string(ctx.Type),
			"metadata": ctx.Metadata.Values(),
			"input":    ctx.Op.Input,
		}
		out, err := vm.Run(program, evn)
		if err != nil {
			logger.Printf("expr selector error: %s", err.Error())
			return ""
		}
		return str.ToString(out)
	}, nil
}

// JsSelector wraps a JavaScript snippet into a selector. The snippet is the
// body of a function receiving (path, type, metadata, input) and must return
// the routing key, e.g.:
//
//	return type === 'subscription' ? 'ws' : 'http';
//
// Functions registered through Config.RegisterUdf are callable from the
// snippet. An execution failure is logged and yields an empty key.
func JsSelector(jsScript string, config types.Config) (SelectorFunc, error) {
	script := fmt.Sprintf("function Select(path, type, metadata, input) { %s }", jsScript)
	jsEngine, err := js.NewGojaJsEngine(config, script, nil)
	if err != nil {
		return nil, err
	}
	logger := types.NewLogger(config.Logger)
	return func(ctx SelectorContext) string {
		out, err := jsEngine.Execute("Select", ctx.Path, string(ctx.Type), ctx.Metadata.Values(), ctx.Op.Input)
		if err != nil {
			logger.Printf("js selector error: %s", err.Error())
			return ""
		}
		return str.ToString(out)
	}, nil
}

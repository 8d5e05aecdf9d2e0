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

// Package js executes JavaScript selector snippets through the goja library.
//
// A GojaJsEngine compiles the selector script once, pools goja VMs for reuse,
// precompiles user-defined functions registered in the configuration, and
// enforces the configured script execution timeout via VM interrupts.
package js

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dop251/goja"

	"github.com/linkgo/linkgo/api/types"
)

const (
	// GlobalKey exposes Config.Properties to scripts as the `global` variable.
	GlobalKey = "global"
)

// GojaJsEngine goja js engine
type GojaJsEngine struct {
	vmPool            sync.Pool
	config            types.Config
	jsScript          *goja.Program
	jsUdfProgramCache map[string]*goja.Program
}

// NewGojaJsEngine creates a new instance of the JavaScript engine.
// jsScript is compiled eagerly; a compile error is a construction-time failure.
func NewGojaJsEngine(config types.Config, jsScript string, fromVars map[string]interface{}) (*GojaJsEngine, error) {
	program, err := goja.Compile("", jsScript, true)
	if err != nil {
		return nil, err
	}
	jsEngine := &GojaJsEngine{
		config:   config,
		jsScript: program,
	}
	if err = jsEngine.preCompileUdf(config); err != nil {
		return nil, err
	}
	jsEngine.vmPool = sync.Pool{
		New: func() interface{} {
			return jsEngine.newVm(config, fromVars)
		},
	}
	return jsEngine, nil
}

// preCompileUdf precompiles the user-defined JavaScript functions.
func (g *GojaJsEngine) preCompileUdf(config types.Config) error {
	jsUdfProgramCache := make(map[string]*goja.Program)
	for k, v := range config.Udf {
		if jsFuncStr, ok := v.(string); ok {
			p, err := goja.Compile(k, jsFuncStr, true)
			if err != nil {
				return err
			}
			jsUdfProgramCache[k] = p
		} else if script, scriptOk := v.(types.Script); scriptOk {
			if script.Type == types.Js || script.Type == types.AllScript || script.Type == "" {
				if c, ok := script.Content.(string); ok {
					p, err := goja.Compile(k, c, true)
					if err != nil {
						return err
					}
					jsUdfProgramCache[k] = p
				}
			}
		}
	}
	g.jsUdfProgramCache = jsUdfProgramCache
	return nil
}

// newVm builds a VM with vars, global properties and UDFs installed, then
// runs the main script so its functions are defined.
func (g *GojaJsEngine) newVm(config types.Config, fromVars map[string]interface{}) *goja.Runtime {
	vm := goja.New()

	for k, v := range fromVars {
		if err := vm.Set(k, v); err != nil {
			config.Logger.Printf("set fromVar %s error: %s", k, err.Error())
		}
	}
	if len(config.Properties.Values()) != 0 {
		if err := vm.Set(GlobalKey, config.Properties.Values()); err != nil {
			config.Logger.Printf("set global properties error: %s", err.Error())
		}
	}
	for k, v := range config.Udf {
		var err error
		if _, ok := v.(string); ok {
			if p, exists := g.jsUdfProgramCache[k]; exists {
				_, err = vm.RunProgram(p)
			}
		} else if script, scriptOk := v.(types.Script); scriptOk {
			if _, ok := script.Content.(string); ok {
				if p, exists := g.jsUdfProgramCache[k]; exists {
					_, err = vm.RunProgram(p)
				}
			} else if script.Content != nil {
				// Go function in script wrapper
				funcName := strings.Replace(k, script.Type+types.ScriptFuncSeparator, "", 1)
				err = vm.Set(funcName, script.Content)
			}
		} else {
			// Direct Go function
			err = vm.Set(k, v)
		}
		if err != nil {
			config.Logger.Printf("parse js script=%s error: %s", k, err.Error())
		}
	}

	timer := g.startTimeout(vm)
	_, err := vm.RunProgram(g.jsScript)
	g.stopTimeout(timer, vm)
	if err != nil {
		config.Logger.Printf("js vm error: %s", err.Error())
	}
	return vm
}

// Execute runs the named function defined by the script with the given
// arguments and returns its exported result.
func (g *GojaJsEngine) Execute(functionName string, argumentList ...interface{}) (out interface{}, err error) {
	defer func() {
		if caught := recover(); caught != nil {
			err = fmt.Errorf("%s", caught)
		}
	}()

	vm := g.vmPool.Get().(*goja.Runtime)
	defer g.vmPool.Put(vm)

	fn, ok := goja.AssertFunction(vm.Get(functionName))
	if !ok {
		return nil, errors.New(functionName + " is not a function")
	}

	args := make([]goja.Value, len(argumentList))
	for i, v := range argumentList {
		args[i] = vm.ToValue(v)
	}

	timer := g.startTimeout(vm)
	res, err := fn(goja.Undefined(), args...)
	g.stopTimeout(timer, vm)
	if err != nil {
		return nil, err
	}
	return res.Export(), nil
}

// Stop releases the engine. Pooled VMs are reclaimed by GC.
func (g *GojaJsEngine) Stop() {
}

func (g *GojaJsEngine) startTimeout(vm *goja.Runtime) *time.Timer {
	if g.config.ScriptMaxExecutionTime <= 0 {
		return nil
	}
	return time.AfterFunc(g.config.ScriptMaxExecutionTime, func() {
		vm.Interrupt("execution timeout")
	})
}

func (g *GojaJsEngine) stopTimeout(timer *time.Timer, vm *goja.Runtime) {
	if timer != nil {
		timer.Stop()
		vm.ClearInterrupt()
	}
}

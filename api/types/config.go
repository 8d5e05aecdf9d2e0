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

import "time"

// Config defines the configuration for a link chain client.
type Config struct {
	// OnDebug is a callback function for link debug information.
	// - linkName: name of the link reporting the event.
	// - flowType: the event type, either In (operation entering the link) or Out (result leaving it).
	// - op: the operation being processed.
	// - err: error information, if any.
	OnDebug func(linkName string, flowType string, op *Operation, err error)
	// ScriptMaxExecutionTime is the maximum execution time for selector scripts,
	// defaulting to 2000 milliseconds.
	ScriptMaxExecutionTime time.Duration
	// Pool is the interface for a goroutine pool used by transport links to
	// run asynchronous work. If not configured, the go func method is used.
	Pool Pool
	// Logger is the logging interface, defaulting to DefaultLogger().
	Logger Logger
	// Properties are global properties in key-value format, visible to selector
	// scripts through the `global` variable.
	Properties Metadata
	// Udf is a map for registering custom Golang functions and native scripts
	// callable from script selectors.
	Udf map[string]interface{}
	// Cache is a shared cache instance used by caching links for storing
	// query results.
	Cache Cache
}

// RegisterUdf registers a custom function. Function names can be repeated for
// different script types.
func (c *Config) RegisterUdf(name string, value interface{}) {
	if c.Udf == nil {
		c.Udf = make(map[string]interface{})
	}
	if script, ok := value.(Script); ok {
		// Resolve function name conflicts for different script types.
		name = script.Type + ScriptFuncSeparator + name
	}
	c.Udf[name] = value
}

// SubmitTask schedules task on the configured pool, falling back to a plain
// goroutine when no pool is set or submission fails.
func (c Config) SubmitTask(task func()) {
	if c.Pool != nil {
		if err := c.Pool.Submit(task); err == nil {
			return
		}
	}
	go task()
}

// NewConfig creates a new Config with default values and applies the provided
// options.
func NewConfig(opts ...Option) Config {
	c := &Config{
		ScriptMaxExecutionTime: time.Millisecond * 2000,
		Logger:                 DefaultLogger(),
		Properties:             NewMetadata(),
	}
	for _, opt := range opts {
		_ = opt(c)
	}
	return *c
}

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

// Package links provides the built-in chain links.
//
// Transport links terminate a chain by carrying operations to a remote
// server: HTTP batching ("httpBatch"), WebSocket ("websocket") and MQTT
// request/reply ("mqtt"). Pass-through links compose behavior around their
// downstream chain: call logging ("logger"), error retry ("retry"), query
// result caching ("cache") and subscription emulation by scheduled polling
// ("poll").
//
// Every link has a typed config struct and a New...Link constructor, and is
// also registered in Registry under its type name so chains can be assembled
// from raw configuration maps:
//
//	link, err := links.New("httpBatch", types.Configuration{
//		"url": "http://127.0.0.1:9090/rpc",
//	})
package links

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

import "fmt"

// ClientError 客户端错误，消息文本面向调用方诊断
// ClientError is a structured client-facing error. Routing failures surface
// through the same error channel as transport failures; only the message text
// distinguishes them, so the text is part of the API.
type ClientError struct {
	Message string
}

func (e *ClientError) Error() string {
	return e.Message
}

// NewClientError creates a ClientError with a formatted message.
func NewClientError(format string, v ...interface{}) *ClientError {
	return &ClientError{Message: fmt.Sprintf(format, v...)}
}

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

// Package stream implements the cold, single-subscriber result stream used by
// link chains. A Stream delivers zero or more values followed by exactly one
// terminal event (error or completion) to exactly one Observer.
//
// The producer side works through a Subscriber: Next/Error/Complete calls made
// after the terminal event or after Unsubscribe are dropped. Teardown functions
// registered by the producer run exactly once, either after the terminal event
// or when the caller unsubscribes. All guards are mutex based so streams stay
// correct under Go's preemptive scheduler even though a single operation is
// logically a sequential pipeline.
package stream

import "sync"

// Observer receives the events of one stream subscription.
type Observer interface {
	// OnNext receives one emitted value.
	OnNext(value interface{})
	// OnError receives the terminal error. No further events follow.
	OnError(err error)
	// OnComplete signals normal termination. No further events follow.
	OnComplete()
}

// Subscription is the handle returned by Stream.Subscribe.
// Unsubscribe cancels the stream: registered teardowns run and no further
// events are delivered. Cancellation is silent, no error event is produced.
type Subscription interface {
	Unsubscribe()
}

// Teardown releases resources held by a producer. May be nil.
type Teardown func()

// SourceFunc starts producing events for one subscription. It may emit
// synchronously or hand the Subscriber to another goroutine. The returned
// Teardown is invoked once the subscription settles or is cancelled.
type SourceFunc func(sub *Subscriber) Teardown

// Stream is a cold producer: every Subscribe call runs the source again.
// A subscribed stream must not be shared between callers.
type Stream struct {
	source SourceFunc
}

// New creates a Stream from a producer function.
func New(source SourceFunc) *Stream {
	return &Stream{source: source}
}

// Of creates a Stream that emits the given values and completes.
func Of(values ...interface{}) *Stream {
	return New(func(sub *Subscriber) Teardown {
		for _, v := range values {
			sub.Next(v)
		}
		sub.Complete()
		return nil
	})
}

// Error creates a Stream that terminates immediately with err.
func Error(err error) *Stream {
	return New(func(sub *Subscriber) Teardown {
		sub.Error(err)
		return nil
	})
}

// Empty creates a Stream that completes without emitting.
func Empty() *Stream {
	return New(func(sub *Subscriber) Teardown {
		sub.Complete()
		return nil
	})
}

// Subscribe starts the producer and delivers its events to ob.
func (s *Stream) Subscribe(ob Observer) Subscription {
	sub := &Subscriber{downstream: ob}
	teardown := s.source(sub)
	// If the source settled synchronously the teardown runs right away.
	sub.AddTeardown(teardown)
	return sub
}

// Subscriber is the producer-facing side of one subscription.
// It enforces the stream contract: events after the terminal event or after
// Unsubscribe are dropped, teardowns run exactly once.
type Subscriber struct {
	mu         sync.Mutex
	downstream Observer
	closed     bool
	teardowns  []Teardown
}

// Next delivers one value downstream unless the subscription has settled.
func (s *Subscriber) Next(value interface{}) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	ob := s.downstream
	s.mu.Unlock()
	ob.OnNext(value)
}

// Error terminates the subscription with err and runs teardowns.
func (s *Subscriber) Error(err error) {
	if ob := s.settle(); ob != nil {
		ob.OnError(err)
		s.runTeardowns()
	}
}

// Complete terminates the subscription normally and runs teardowns.
func (s *Subscriber) Complete() {
	if ob := s.settle(); ob != nil {
		ob.OnComplete()
		s.runTeardowns()
	}
}

// Unsubscribe cancels the subscription without a terminal event.
func (s *Subscriber) Unsubscribe() {
	if ob := s.settle(); ob != nil {
		s.runTeardowns()
	}
}

// Closed reports whether the subscription has settled or been cancelled.
func (s *Subscriber) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// AddTeardown registers a resource release hook. If the subscription already
// settled the hook runs immediately, so late registration cannot leak.
func (s *Subscriber) AddTeardown(teardown Teardown) {
	if teardown == nil {
		return
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		teardown()
		return
	}
	s.teardowns = append(s.teardowns, teardown)
	s.mu.Unlock()
}

// settle flips the subscription into its terminal state. It returns the
// downstream observer on the first call and nil afterwards.
func (s *Subscriber) settle() Observer {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.downstream
}

func (s *Subscriber) runTeardowns() {
	s.mu.Lock()
	teardowns := s.teardowns
	s.teardowns = nil
	s.mu.Unlock()
	for _, teardown := range teardowns {
		teardown()
	}
}

// ObserverFuncs adapts plain functions to the Observer interface.
// Nil members are ignored.
type ObserverFuncs struct {
	Next     func(value interface{})
	Error    func(err error)
	Complete func()
}

func (o ObserverFuncs) OnNext(value interface{}) {
	if o.Next != nil {
		o.Next(value)
	}
}

func (o ObserverFuncs) OnError(err error) {
	if o.Error != nil {
		o.Error(err)
	}
}

func (o ObserverFuncs) OnComplete() {
	if o.Complete != nil {
		o.Complete()
	}
}

// MirrorTo returns an Observer that replays every event onto sub.
// Pass-through links use it to pipe a downstream stream into their own.
func MirrorTo(sub *Subscriber) Observer {
	return ObserverFuncs{
		Next:     sub.Next,
		Error:    sub.Error,
		Complete: sub.Complete,
	}
}

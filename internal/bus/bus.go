// Copyright (c) 2015-2026 TetraOps
//
// Licensed under GPL-2.0. See LICENSE.md.

// Package bus is the in-process fan-out between the collector and the
// downstream workers. Subscriptions match topics by prefix, delivery is
// at most once, and a subscriber that cannot keep up loses messages
// rather than stalling the publisher.
package bus

import (
	"sync"
	"sync/atomic"

	"github.com/tetraops/callstream/internal/logapi"
	"github.com/tetraops/callstream/pkg/commons"
)

// DefaultQueueLen is the per-subscription channel depth. Voice traffic
// arrives at one 480-byte frame per 60 ms per stream, so a burst of a
// few hundred frames is absorbed without drops.
const DefaultQueueLen = 512

// Message is one published event with its resolved topic.
type Message struct {
	Topic string
	Event logapi.Event
}

// Subscription is a live prefix subscription. C is closed on Unsubscribe
// and on bus Close.
type Subscription struct {
	C        <-chan Message
	name     string
	prefixes []string
	ch       chan Message
	dropped  atomic.Uint64
}

// Dropped reports how many messages this subscription lost to a full queue.
func (s *Subscription) Dropped() uint64 { return s.dropped.Load() }

func (s *Subscription) matches(topic string) bool {
	for _, p := range s.prefixes {
		if len(topic) >= len(p) && topic[:len(p)] == p {
			return true
		}
	}
	return false
}

// Bus routes published events to prefix-matched subscriptions.
type Bus interface {
	// Publish delivers the event to every subscription whose prefix
	// matches the event topic. It never blocks.
	Publish(ev logapi.Event)
	// Subscribe registers a named subscription for the given topic
	// prefixes. queueLen <= 0 selects DefaultQueueLen.
	Subscribe(name string, prefixes []string, queueLen int) *Subscription
	// Unsubscribe removes the subscription and closes its channel.
	Unsubscribe(sub *Subscription)
	// Close closes every remaining subscription channel.
	Close()
}

type bus struct {
	logger commons.Logger

	mu     sync.RWMutex
	subs   []*Subscription
	closed bool
}

// New creates an empty bus.
func New(logger commons.Logger) Bus {
	return &bus{logger: logger}
}

func (b *bus) Publish(ev logapi.Event) {
	topic := ev.Topic()
	msg := Message{Topic: topic, Event: ev}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	for _, sub := range b.subs {
		if !sub.matches(topic) {
			continue
		}
		select {
		case sub.ch <- msg:
		default:
			if n := sub.dropped.Add(1); n == 1 || n%1000 == 0 {
				b.logger.Warnf("subscriber %s queue full, %d messages dropped", sub.name, n)
			}
		}
	}
}

func (b *bus) Subscribe(name string, prefixes []string, queueLen int) *Subscription {
	if queueLen <= 0 {
		queueLen = DefaultQueueLen
	}
	ch := make(chan Message, queueLen)
	sub := &Subscription{
		C:        ch,
		name:     name,
		prefixes: append([]string(nil), prefixes...),
		ch:       ch,
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return sub
	}
	b.subs = append(b.subs, sub)
	b.logger.Infof("subscriber %s registered for prefixes %v", name, prefixes)
	return sub
}

func (b *bus) Unsubscribe(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, s := range b.subs {
		if s == sub {
			b.subs = append(b.subs[:i], b.subs[i+1:]...)
			close(s.ch)
			return
		}
	}
}

func (b *bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for _, s := range b.subs {
		close(s.ch)
	}
	b.subs = nil
}

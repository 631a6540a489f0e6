// Copyright 2023 The CubeFS Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or
// implied. See the License for the specific language governing
// permissions and limitations under the License.

// Package limiter bounds concurrency and pacing for the admin command
// surface and the monitor beacon. It is adapted from a general-purpose
// read/write throughput limiter into the two shapes this controller
// actually needs: a concurrent-op count limit (admin commands must not pile
// up behind a slow journal flush) and a token-bucket pace limit (beacon
// sends must not storm the monitor during a flapping map).
package limiter

import (
	"context"
	"errors"
	"sync/atomic"

	"golang.org/x/time/rate"
)

// CountLimit bounds the number of concurrently in-flight operations.
type CountLimit interface {
	Running() int
	Acquire() error
	Release()
	SetLimit(limit uint32)
}

const minusOne = ^uint32(0)

type countLimit struct {
	limit   uint32
	current uint32
}

// NewCountLimit returns a CountLimit admitting at most n concurrent holders.
func NewCountLimit(n int) CountLimit {
	return &countLimit{limit: uint32(n)}
}

func (l *countLimit) Running() int {
	return int(atomic.LoadUint32(&l.current))
}

func (l *countLimit) Acquire() error {
	if atomic.AddUint32(&l.current, 1) > atomic.LoadUint32(&l.limit) {
		atomic.AddUint32(&l.current, minusOne)
		return errors.New("limit exceeded")
	}
	return nil
}

func (l *countLimit) Release() {
	atomic.AddUint32(&l.current, minusOne)
}

func (l *countLimit) SetLimit(limit uint32) {
	atomic.StoreUint32(&l.limit, limit)
}

// Pacer rate-limits a stream of events (beacon sends) to a configured
// per-second rate with burst.
type Pacer struct {
	rl *rate.Limiter
}

// NewPacer constructs a Pacer allowing eventsPerSec events per second with
// the given burst.
func NewPacer(eventsPerSec float64, burst int) *Pacer {
	return &Pacer{rl: rate.NewLimiter(rate.Limit(eventsPerSec), burst)}
}

// Wait blocks until an event may proceed or ctx is done.
func (p *Pacer) Wait(ctx context.Context) error {
	return p.rl.Wait(ctx)
}

// Allow reports whether an event may proceed immediately, consuming a
// token if so.
func (p *Pacer) Allow() bool {
	return p.rl.Allow()
}

// SetLimit adjusts the pacer's steady-state rate, used by injectargs live
// config reloads.
func (p *Pacer) SetLimit(eventsPerSec float64) {
	p.rl.SetLimit(rate.Limit(eventsPerSec))
}

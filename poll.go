// Copyright (C) 2026 Michael J. Fromberger. All Rights Reserved.

package cloudclient

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/creachadair/taskgroup"
	"go.uber.org/zap"
)

// A poller keeps the data of an instance synchronized with its remote object
// by long polling. Each poll is a conditional GET of the target URL carrying
// the last known hash, which the peer may hold open until the object changes.
// Consecutive polls start at least minDelay apart.
type poller struct {
	inst     *Instance
	target   string
	minDelay time.Duration
	wait     time.Duration
	log      *zap.Logger
	onUpdate func(*Instance)

	// Owned by the polling goroutine.
	lastHash string
	lastPoll time.Time

	running atomic.Bool
	stopc   chan struct{}
	once    sync.Once
	tasks   *taskgroup.Group
}

func newPoller(inst *Instance, target, hash string, p typeParams) *poller {
	return &poller{
		inst:     inst,
		target:   target,
		minDelay: p.cfg.MinDelay,
		wait:     p.cfg.PreferWait,
		log:      p.log.With(zap.String("url", target)),
		onUpdate: p.onUpdate,
		lastHash: hash,
		stopc:    make(chan struct{}),
	}
}

// start begins polling in a new goroutine. Cancellation of ctx does not stop
// the poller, but its values are passed to the transport.
func (p *poller) start(ctx context.Context) {
	ctx = context.WithoutCancel(ctx)
	p.running.Store(true)
	rootMetrics.pollActive.Add(1)
	p.tasks = taskgroup.New(nil)
	p.tasks.Go(func() error {
		defer rootMetrics.pollActive.Add(-1)
		p.log.Debug("polling started", zap.String("hash", p.lastHash))
		for p.sleep() {
			p.pollOnce(ctx)
			if !p.running.Load() {
				break
			}
		}
		p.log.Debug("polling stopped")
		return nil
	})
}

// stop marks the poller as stopped and interrupts a pending sleep.
func (p *poller) stop() {
	p.once.Do(func() {
		p.running.Store(false)
		close(p.stopc)
	})
}

// nextDelay returns how long to wait at now before the next poll.
func (p *poller) nextDelay(now time.Time) time.Duration {
	var elapsed time.Duration
	if !p.lastPoll.IsZero() {
		elapsed = now.Sub(p.lastPoll)
	}
	return max(0, p.minDelay-elapsed)
}

// sleep waits until the next poll is due, and reports whether the poller is
// still running.
func (p *poller) sleep() bool {
	if d := p.nextDelay(time.Now()); d > 0 {
		t := time.NewTimer(d)
		defer t.Stop()
		select {
		case <-p.stopc:
			return false
		case <-t.C:
		}
	}
	return p.running.Load()
}

// pollOnce issues one poll and applies its result. Failures are logged and
// do not end polling.
func (p *poller) pollOnce(ctx context.Context) {
	rootMetrics.pollSent.Add(1)
	rsp, err := p.inst.t.Get(ctx, p.target, GetOptions{ETag: p.lastHash, Wait: p.wait})
	p.lastPoll = time.Now()

	switch {
	case IsNotModified(err), err == nil && rsp.StatusCode() == http.StatusNotModified:
		rootMetrics.pollNotModified.Add(1)
		return
	case err != nil:
		p.fail("poll failed", err)
		return
	case rsp == nil:
		p.fail("poll returned no data", errors.New("empty response"))
		return
	}

	if err := p.inst.merge(rsp); err != nil {
		p.fail("invalid poll update", err)
		return
	}
	p.lastHash = p.inst.Hash()
	rootMetrics.pollApplied.Add(1)
	p.log.Debug("instance updated", zap.String("hash", p.lastHash))
	if p.onUpdate != nil {
		p.onUpdate(p.inst)
	}
}

func (p *poller) fail(msg string, err error) {
	rootMetrics.pollFailed.Add(1)
	p.log.Warn(msg, zap.String("hash", p.lastHash), zap.Error(err))
}

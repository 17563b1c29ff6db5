package service_test

import (
	"context"
	"sync"

	"github.com/notifyhub/order-alerts/internal/poller"
	"github.com/notifyhub/order-alerts/internal/stream"
)

type fakePoller struct {
	mu      sync.Mutex
	state   poller.State
	startCt context.Context
	polls   int
	pollErr error
}

func (f *fakePoller) Start(ctx context.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.startCt = ctx
	f.state = poller.StateScheduled
}

func (f *fakePoller) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state = poller.StateIdle
}

func (f *fakePoller) Poll(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.polls++
	return f.pollErr
}

func (f *fakePoller) State() poller.State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *fakePoller) InFlight() int { return 0 }

type fakeStream struct {
	mu     sync.Mutex
	state  stream.State
	hint   string
	haveID bool
}

func (f *fakeStream) Connect(_ context.Context, hint string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hint = hint
	if !f.haveID && hint == "" {
		return false
	}
	f.state = stream.StateConnected
	return true
}

func (f *fakeStream) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state = stream.StateDisconnected
}

func (f *fakeStream) State() stream.State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}


package hub

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
)

// fakeUpstream records subscription changes.
type fakeUpstream struct {
	mu    sync.Mutex
	calls []upstreamCall
	err   error
}

type upstreamCall struct {
	op      string
	symbols []string
}

func (f *fakeUpstream) Subscribe(ctx context.Context, symbols []string) error {
	return f.record("subscribe", symbols)
}

func (f *fakeUpstream) Unsubscribe(ctx context.Context, symbols []string) error {
	return f.record("unsubscribe", symbols)
}

func (f *fakeUpstream) record(op string, symbols []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, upstreamCall{op: op, symbols: slices.Clone(symbols)})
	return f.err
}

func (f *fakeUpstream) Calls() []upstreamCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.calls)
}

func (f *fakeUpstream) count(op string) int {
	n := 0
	for _, c := range f.Calls() {
		if c.op == op {
			n++
		}
	}
	return n
}

var errUpstream = errors.New("upstream down")

// openClient returns a transport-less client in the Open state.
func openClient(t *testing.T, queueSize int) *Client {
	t.Helper()
	c := newClient(nil, "test", queueSize)
	c.setState(StateOpen)
	return c
}

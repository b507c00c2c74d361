package serial

import (
	"errors"
	"sync"
)

type fakePort struct {
	reads     chan []byte
	fail      chan error
	closed    chan struct{}
	closeOnce sync.Once
}

func newFakePort() *fakePort {
	return &fakePort{
		reads:  make(chan []byte),
		fail:   make(chan error),
		closed: make(chan struct{}),
	}
}

func (p *fakePort) Read(b []byte) (int, error) {
	select {
	case chunk := <-p.reads:
		return copy(b, chunk), nil
	case err := <-p.fail:
		return 0, err
	case <-p.closed:
		return 0, errors.New("port has been closed")
	}
}

func (p *fakePort) Close() error {
	p.closeOnce.Do(func() { close(p.closed) })
	return nil
}

func (p *fakePort) isClosed() bool {
	select {
	case <-p.closed:
		return true
	default:
		return false
	}
}

type openResult struct {
	port *fakePort
	err  error
}

// fakeOpener hands out results in order, then fails forever.
type fakeOpener struct {
	mu      sync.Mutex
	results []openResult
	calls   int
}

func (o *fakeOpener) Open(string) (Port, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls++
	if len(o.results) == 0 {
		return nil, errors.New("no such device")
	}
	r := o.results[0]
	o.results = o.results[1:]
	if r.err != nil {
		return nil, r.err
	}
	return r.port, nil
}

func (o *fakeOpener) callCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.calls
}

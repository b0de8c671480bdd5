package tailor

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Probe reports whether the shop is currently connected.
type Probe interface {
	Online(ctx context.Context) bool
}

// StaticProbe is a Probe whose answer is set by hand.
type StaticProbe struct {
	online atomic.Bool
}

func NewStaticProbe(online bool) *StaticProbe {
	p := &StaticProbe{}
	p.online.Store(online)
	return p
}

func (p *StaticProbe) Online(context.Context) bool { return p.online.Load() }

func (p *StaticProbe) Set(online bool) { p.online.Store(online) }

// HTTPProbe considers the shop online when a HEAD request to URL answers
// with a status below 500.
type HTTPProbe struct {
	URL    string
	Client *http.Client
}

func (p HTTPProbe) Online(ctx context.Context) bool {
	client := p.Client
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, p.URL, nil)
	if err != nil {
		return false
	}
	resp, err := client.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode < http.StatusInternalServerError
}

// Connectivity receives online/offline transitions. Book implements it.
type Connectivity interface {
	SetOnline(ctx context.Context, online bool) (DrainResult, error)
}

// ConnectivityMonitor polls a Probe and forwards every change to target.
type ConnectivityMonitor struct {
	Probe    Probe
	Target   Connectivity
	Interval time.Duration
	Logger   *zap.Logger

	stop chan struct{}
	wg   sync.WaitGroup
	mu   sync.Mutex
}

// Start polls until Stop is called or ctx ends. The first poll is immediate.
func (m *ConnectivityMonitor) Start(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stop != nil {
		return
	}
	if m.Interval <= 0 {
		m.Interval = 30 * time.Second
	}
	m.stop = make(chan struct{})
	m.wg.Add(1)
	go m.run(ctx, m.stop)
}

// Stop ends polling and waits for the loop to exit.
func (m *ConnectivityMonitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stop == nil {
		return
	}
	close(m.stop)
	m.wg.Wait()
	m.stop = nil
}

func (m *ConnectivityMonitor) run(ctx context.Context, stop <-chan struct{}) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.Interval)
	defer ticker.Stop()

	m.Check(ctx)
	for {
		select {
		case <-ticker.C:
			m.Check(ctx)
		case <-stop:
			return
		case <-ctx.Done():
			return
		}
	}
}

// Check polls the probe once and forwards the result.
func (m *ConnectivityMonitor) Check(ctx context.Context) {
	online := m.Probe.Online(ctx)
	res, err := m.Target.SetOnline(ctx, online)
	if err != nil {
		m.log().Warn("drain after reconnect failed", zap.Error(err))
		return
	}
	if res.Processed > 0 {
		m.log().Info("replayed offline changes", zap.Int("completed", res.Completed))
	}
}

func (m *ConnectivityMonitor) log() *zap.Logger {
	if m.Logger == nil {
		return zap.NewNop()
	}
	return m.Logger
}

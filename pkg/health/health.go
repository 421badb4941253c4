// Package health reports whether the external services a command opened
// (PostgreSQL, Redis) are reachable. The metrics server exposes the report
// on /readyz next to /metrics.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

type Status string

const (
	StatusUp   Status = "up"
	StatusDown Status = "down"
)

// Pinger is satisfied by the Postgres and Redis clients.
type Pinger interface {
	Ping(ctx context.Context) error
}

type ComponentHealth struct {
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
	Latency string `json:"latency"`
}

type Report struct {
	Status     Status                     `json:"status"`
	Components map[string]ComponentHealth `json:"components"`
	Timestamp  string                     `json:"timestamp"`
}

// Checker holds the services registered so far. Commands register a
// service when they connect to it, so a file-only run reports no components.
type Checker struct {
	mu       sync.RWMutex
	services map[string]Pinger
}

func NewChecker() *Checker {
	return &Checker{services: make(map[string]Pinger)}
}

func (c *Checker) Register(name string, p Pinger) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.services[name] = p
}

func (c *Checker) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.services))
	for n := range c.services {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Run pings every registered service concurrently. The report is down if
// any service is.
func (c *Checker) Run(ctx context.Context) Report {
	c.mu.RLock()
	services := make(map[string]Pinger, len(c.services))
	for n, p := range c.services {
		services[n] = p
	}
	c.mu.RUnlock()

	report := Report{
		Status:     StatusUp,
		Components: make(map[string]ComponentHealth, len(services)),
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
	}
	var mu sync.Mutex
	var g errgroup.Group
	for name, p := range services {
		name, p := name, p
		g.Go(func() error {
			start := time.Now()
			result := ComponentHealth{Status: StatusUp}
			if err := p.Ping(ctx); err != nil {
				result = ComponentHealth{Status: StatusDown, Message: err.Error()}
			}
			result.Latency = time.Since(start).Round(time.Millisecond).String()
			mu.Lock()
			report.Components[name] = result
			if result.Status == StatusDown {
				report.Status = StatusDown
			}
			mu.Unlock()
			return nil
		})
	}
	g.Wait()
	return report
}

// LiveHandler always answers 200 while the process serves requests.
func LiveHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "alive"})
	}
}

// ReadyHandler answers 503 when any registered service is down.
func (c *Checker) ReadyHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		report := c.Run(ctx)
		w.Header().Set("Content-Type", "application/json")
		if report.Status != StatusUp {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(report)
	}
}

package health

import (
	"context"
	"net/http"
	"sync"
	"time"

	"payaid/internal/platform/web"
)

const checkTimeout = 2 * time.Second

type CheckFunc func(ctx context.Context) error

type Check struct {
	Name string
	Fn   CheckFunc
}

type Report struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

type Checker struct {
	checks []Check
}

func New(checks ...Check) *Checker {
	return &Checker{checks: checks}
}

// Run executes every check concurrently, each bounded by its own timeout.
func (c *Checker) Run(ctx context.Context) Report {
	report := Report{Status: "ok", Checks: make(map[string]string, len(c.checks))}
	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, check := range c.checks {
		wg.Add(1)
		go func(check Check) {
			defer wg.Done()
			checkCtx, cancel := context.WithTimeout(ctx, checkTimeout)
			defer cancel()
			result := "ok"
			if err := check.Fn(checkCtx); err != nil {
				result = err.Error()
			}
			mu.Lock()
			report.Checks[check.Name] = result
			if result != "ok" {
				report.Status = "unavailable"
			}
			mu.Unlock()
		}(check)
	}
	wg.Wait()
	return report
}

// Register mounts /healthz and /readyz on mux.
func (c *Checker) Register(mux *http.ServeMux) {
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		web.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		report := c.Run(r.Context())
		status := http.StatusOK
		if report.Status != "ok" {
			status = http.StatusServiceUnavailable
		}
		web.WriteJSON(w, status, report)
	})
}

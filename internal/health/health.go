package health

import (
	"context"
	"fmt"
	"time"
)

type CheckResult struct {
	Name    string        `json:"name"`
	OK      bool          `json:"ok"`
	Latency time.Duration `json:"latency_ms"`
	Error   string        `json:"error,omitempty"`
}

type HealthStatus struct {
	OK        bool          `json:"ok"`
	Checks    []CheckResult `json:"checks"`
	CheckedAt time.Time     `json:"checked_at"`
}

func (h HealthStatus) String() string {
	status := "OK"
	if !h.OK {
		status = "FAIL"
	}
	s := fmt.Sprintf("Health: %s\n", status)
	for _, c := range h.Checks {
		mark := "✓"
		if !c.OK {
			mark = "✗"
		}
		s += fmt.Sprintf("  %s %s (%dms)", mark, c.Name, c.Latency.Milliseconds())
		if c.Error != "" {
			s += fmt.Sprintf(" - %s", c.Error)
		}
		s += "\n"
	}
	return s
}

// Checker is anything that can report its own readiness. Storage backends
// satisfy it directly.
type Checker interface {
	Name() string
	Check(ctx context.Context) error
}

// CheckAll runs all health checks and returns combined status
func CheckAll(ctx context.Context, checkers ...Checker) HealthStatus {
	checks := make([]CheckResult, 0, len(checkers))
	allOK := true
	for _, c := range checkers {
		r := run(ctx, c)
		if !r.OK {
			allOK = false
		}
		checks = append(checks, r)
	}

	return HealthStatus{
		OK:        allOK,
		Checks:    checks,
		CheckedAt: time.Now().UTC(),
	}
}

func run(ctx context.Context, c Checker) CheckResult {
	start := time.Now()
	result := CheckResult{Name: c.Name()}
	if err := c.Check(ctx); err != nil {
		result.Error = err.Error()
		result.Latency = time.Since(start)
		return result
	}
	result.Latency = time.Since(start)
	result.OK = true
	return result
}

// Package health tracks server readiness and serves the probe endpoints.
package health

import (
	"encoding/json"
	"net/http"
	"sync/atomic"
)

const (
	stateStarting int32 = iota
	stateReady
	stateDraining
)

// DetailFunc reports counters included in the readiness body, such as the
// size of the loaded catalog.
type DetailFunc func() map[string]int

// Checker tracks the readiness state of the server.
// It is safe for concurrent use.
type Checker struct {
	state  atomic.Int32
	detail atomic.Pointer[DetailFunc]
}

// NewChecker creates a Checker in the Starting state.
func NewChecker() *Checker {
	return &Checker{}
}

// SetReady transitions to the Ready state. It is called once the catalog
// bootstrap has completed.
func (c *Checker) SetReady() {
	c.state.Store(stateReady)
}

// SetDraining transitions to the Draining state.
func (c *Checker) SetDraining() {
	c.state.Store(stateDraining)
}

// SetDetail installs fn as the source of readiness details.
func (c *Checker) SetDetail(fn DetailFunc) {
	c.detail.Store(&fn)
}

// IsReady returns true when the state is Ready.
func (c *Checker) IsReady() bool {
	return c.state.Load() == stateReady
}

// State returns the current state as a human-readable string.
func (c *Checker) State() string {
	switch c.state.Load() {
	case stateReady:
		return "ready"
	case stateDraining:
		return "draining"
	default:
		return "starting"
	}
}

type healthResponse struct {
	Status string         `json:"status"`
	Detail map[string]int `json:"detail,omitempty"`
}

// LivenessHandler always responds 200 OK (/healthz).
func (*Checker) LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, healthResponse{Status: "ok"})
	}
}

// ReadinessHandler responds 200 when ready and 503 when starting or
// draining (/readyz).
func (c *Checker) ReadinessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		resp := healthResponse{Status: c.State()}
		if fn := c.detail.Load(); fn != nil && *fn != nil {
			resp.Detail = (*fn)()
		}
		code := http.StatusServiceUnavailable
		if c.IsReady() {
			code = http.StatusOK
		}
		writeJSON(w, code, resp)
	}
}

func writeJSON(w http.ResponseWriter, code int, v healthResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

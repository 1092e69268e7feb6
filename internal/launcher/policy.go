// Package launcher implements the job launcher port against the Vertex AI
// custom training backend, plus a local stand-in for dev mode.
package launcher

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Policy decides which launch failure codes are retryable and which are
// terminal. Which backend responses deserve a retry is deployment-specific,
// so the table is loadable from a YAML file rather than hard-coded.
type Policy struct {
	RetryableCodes []int `yaml:"retryable_codes"`
	TerminalCodes  []int `yaml:"terminal_codes"`
	RetryTimeouts  bool  `yaml:"retry_timeouts"`

	retryable map[int]bool
	terminal  map[int]bool
}

// DefaultPolicy treats quota pushback and server-side failures as retryable
// and caller errors (bad request, permission, job definition not found) as
// terminal. Timed-out launches are retried; the attempt budget bounds the
// duplicates an ambiguous timeout can produce.
func DefaultPolicy() *Policy {
	p := &Policy{
		RetryableCodes: []int{408, 429, 500, 502, 503, 504},
		TerminalCodes:  []int{400, 401, 403, 404, 409, 412},
		RetryTimeouts:  true,
	}
	p.index()
	return p
}

// LoadPolicy reads a policy table from a YAML file.
func LoadPolicy(path string) (*Policy, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is operator-controlled
	if err != nil {
		return nil, fmt.Errorf("read launch policy %s: %w", path, err)
	}
	var p Policy
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse launch policy %s: %w", path, err)
	}
	p.index()
	return &p, nil
}

func (p *Policy) index() {
	p.retryable = make(map[int]bool, len(p.RetryableCodes))
	for _, c := range p.RetryableCodes {
		p.retryable[c] = true
	}
	p.terminal = make(map[int]bool, len(p.TerminalCodes))
	for _, c := range p.TerminalCodes {
		p.terminal[c] = true
	}
}

// RetryableCode classifies an HTTP status code from the backend. Codes in
// neither list fall back to retryable for 5xx and terminal otherwise.
func (p *Policy) RetryableCode(code int) bool {
	if p.terminal[code] {
		return false
	}
	if p.retryable[code] {
		return true
	}
	return code >= 500
}

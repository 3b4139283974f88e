// Package harness provides a scenario-driven fake engine for tests.
//
// A scenario is a YAML file of match rules: when a command's source
// contains a rule's match string, the rule decides the call's outcome
// (canned output, raw engine error text, optional delay). Tests across
// the module use scenarios to exercise the executor, queue, and bridge
// against scripted engine behavior without a real scripting runtime.
package harness

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that unmarshals from a YAML string
// ("250ms", "2s").
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("bad duration %q: %w", s, err)
	}
	*d = Duration(v)
	return nil
}

// Rule scripts the outcome for commands whose source contains Match.
// Rules are checked in file order; the first live match wins.
type Rule struct {
	// Match is the substring that selects this rule.
	Match string `yaml:"match"`
	// Output is the engine's stdout on success.
	Output string `yaml:"output"`
	// Error, when set, fails the call with this raw engine error text.
	Error string `yaml:"error"`
	// Delay stalls the call before responding; the call's context can
	// interrupt the stall.
	Delay Duration `yaml:"delay"`
	// Times limits the rule to the first N matching calls; 0 means
	// always. Exhausted rules are skipped, which lets a scenario fail a
	// command twice and then let it succeed.
	Times int `yaml:"times"`
}

// Scenario is a named set of rules plus a default output for commands
// no rule matches.
type Scenario struct {
	Name    string `yaml:"name"`
	Default string `yaml:"default"`
	Rules   []Rule `yaml:"rules"`
}

// Load reads and validates a scenario file.
func Load(path string) (*Scenario, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scenario: %w", err)
	}
	var s Scenario
	dec := yaml.NewDecoder(strings.NewReader(string(raw)))
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("parsing scenario %s: %w", path, err)
	}
	for i, r := range s.Rules {
		if r.Match == "" {
			return nil, fmt.Errorf("scenario %s: rule %d has no match string", path, i)
		}
		if r.Output != "" && r.Error != "" {
			return nil, fmt.Errorf("scenario %s: rule %d sets both output and error", path, i)
		}
	}
	return &s, nil
}

// Engine returns a fresh fake engine playing this scenario. Each call
// to Engine starts with zeroed rule counters.
func (s *Scenario) Engine() *Engine {
	return &Engine{scenario: s, used: make([]int, len(s.Rules))}
}

// Engine is the scenario player. It satisfies the executor's Engine
// interface and is safe for concurrent use.
type Engine struct {
	scenario *Scenario

	mu    sync.Mutex
	calls []string
	used  []int
}

// Run plays one engine call against the scenario.
func (e *Engine) Run(ctx context.Context, source string) (string, error) {
	e.mu.Lock()
	e.calls = append(e.calls, source)
	var rule *Rule
	for i := range e.scenario.Rules {
		r := &e.scenario.Rules[i]
		if !strings.Contains(source, r.Match) {
			continue
		}
		if r.Times > 0 && e.used[i] >= r.Times {
			continue
		}
		e.used[i]++
		rule = r
		break
	}
	e.mu.Unlock()

	if rule == nil {
		return e.scenario.Default, nil
	}
	if rule.Delay > 0 {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(time.Duration(rule.Delay)):
		}
	}
	if rule.Error != "" {
		return "", errors.New(rule.Error)
	}
	return rule.Output, nil
}

// Calls returns how many engine calls were made.
func (e *Engine) Calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.calls)
}

// CallsMatching counts calls whose source contains substr.
func (e *Engine) CallsMatching(substr string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for _, c := range e.calls {
		if strings.Contains(c, substr) {
			n++
		}
	}
	return n
}

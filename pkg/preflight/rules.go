// pkg/preflight/rules.go

// Package preflight evaluates a device profile against the requirement rule
// set. Rules are data, embedded as YAML, so the set can grow without
// touching the evaluator. Evaluation is pure: no I/O beyond what the profile
// already captured.
package preflight

import (
	_ "embed"

	cerr "github.com/cockroachdb/errors"
	"github.com/hashicorp/go-version"
	"gopkg.in/yaml.v3"
)

//go:embed rules.yaml
var embeddedRules []byte

// Severity decides whether a failing rule blocks installation.
type Severity string

const (
	SeverityHard Severity = "hard"
	SeveritySoft Severity = "soft"
)

// Kind selects the predicate a rule evaluates.
type Kind string

const (
	KindInterpreterMinVersion Kind = "interpreter-min-version"
	KindArchitectureIn        Kind = "architecture-in"
	KindMinMemoryMiB          Kind = "min-memory-mib"
	KindToolPresent           Kind = "tool-present"
)

// Rule is one requirement. Params carries the per-kind payload; unused
// fields stay zero.
type Rule struct {
	ID          string   `yaml:"id"`
	Severity    Severity `yaml:"severity"`
	Kind        Kind     `yaml:"kind"`
	Params      Params   `yaml:"params"`
	Remediation string   `yaml:"remediation"`
}

// Params is the union of every rule kind's parameters.
type Params struct {
	Min       string   `yaml:"min,omitempty"`
	Supported []string `yaml:"supported,omitempty"`
	MinMiB    uint64   `yaml:"min_mib,omitempty"`
	Tool      string   `yaml:"tool,omitempty"`
}

type ruleFile struct {
	Rules []Rule `yaml:"rules"`
}

// LoadRules parses and validates the embedded rule set.
func LoadRules() ([]Rule, error) {
	var f ruleFile
	if err := yaml.Unmarshal(embeddedRules, &f); err != nil {
		return nil, cerr.Wrap(err, "parse embedded rules")
	}
	if len(f.Rules) == 0 {
		return nil, cerr.New("embedded rule set is empty")
	}
	for i := range f.Rules {
		if err := validateRule(&f.Rules[i]); err != nil {
			return nil, cerr.Wrapf(err, "rule %d (%s)", i, f.Rules[i].ID)
		}
	}
	return f.Rules, nil
}

func validateRule(r *Rule) error {
	if r.ID == "" {
		return cerr.New("missing id")
	}
	if r.Severity != SeverityHard && r.Severity != SeveritySoft {
		return cerr.Newf("invalid severity %q", r.Severity)
	}
	switch r.Kind {
	case KindInterpreterMinVersion:
		if _, err := version.NewVersion(r.Params.Min); err != nil {
			return cerr.Wrapf(err, "min %q is not a version", r.Params.Min)
		}
	case KindArchitectureIn:
		if len(r.Params.Supported) == 0 {
			return cerr.New("supported list is empty")
		}
	case KindMinMemoryMiB:
		if r.Params.MinMiB == 0 {
			return cerr.New("min_mib must be positive")
		}
	case KindToolPresent:
		if r.Params.Tool == "" {
			return cerr.New("tool is empty")
		}
	default:
		return cerr.Newf("unknown kind %q", r.Kind)
	}
	return nil
}

// OverrideInterpreterMinimum returns a copy of rules with the interpreter
// minimum replaced, so --min-version reaches the rule set without mutating
// the embedded defaults.
func OverrideInterpreterMinimum(rules []Rule, minVersion string) []Rule {
	out := make([]Rule, len(rules))
	copy(out, rules)
	for i := range out {
		if out[i].Kind == KindInterpreterMinVersion {
			out[i].Params.Min = minVersion
		}
	}
	return out
}

// pkg/preflight/checker.go

package preflight

import (
	"fmt"
	"slices"

	"github.com/hashicorp/go-version"
	"github.com/vision-edge/mpsetup/pkg/profile"
)

// RuleResult is the outcome of one rule against one profile.
type RuleResult struct {
	RuleID      string   `json:"rule_id"`
	Severity    Severity `json:"severity"`
	Passed      bool     `json:"passed"`
	Detail      string   `json:"detail"`
	Remediation string   `json:"remediation,omitempty"`
}

// CheckReport is the ordered result of evaluating the full rule set.
// OverallPassed is computed strictly from hard-rule outcomes.
type CheckReport struct {
	Results       []RuleResult `json:"results"`
	OverallPassed bool         `json:"overall_passed"`
}

// HardFailures returns the failing hard-rule results in evaluation order.
func (r *CheckReport) HardFailures() []RuleResult {
	var out []RuleResult
	for _, res := range r.Results {
		if res.Severity == SeverityHard && !res.Passed {
			out = append(out, res)
		}
	}
	return out
}

// SoftFailures returns the failing soft-rule results in evaluation order.
func (r *CheckReport) SoftFailures() []RuleResult {
	var out []RuleResult
	for _, res := range r.Results {
		if res.Severity == SeveritySoft && !res.Passed {
			out = append(out, res)
		}
	}
	return out
}

// Checker evaluates profiles against a fixed rule set.
type Checker struct {
	rules []Rule
}

// NewChecker returns a Checker over rules, usually LoadRules output.
func NewChecker(rules []Rule) *Checker {
	return &Checker{rules: rules}
}

// Evaluate runs every rule against the profile. Pure and deterministic:
// the same profile and rule set always produce the same report.
func (c *Checker) Evaluate(p *profile.DeviceProfile) *CheckReport {
	report := &CheckReport{
		Results:       make([]RuleResult, 0, len(c.rules)),
		OverallPassed: true,
	}
	for _, rule := range c.rules {
		passed, detail := evaluateRule(rule, p)
		res := RuleResult{
			RuleID:   rule.ID,
			Severity: rule.Severity,
			Passed:   passed,
			Detail:   detail,
		}
		if !passed {
			res.Remediation = rule.Remediation
			if rule.Severity == SeverityHard {
				report.OverallPassed = false
			}
		}
		report.Results = append(report.Results, res)
	}
	return report
}

// evaluateRule fails closed: an unevaluable rule never passes.
func evaluateRule(rule Rule, p *profile.DeviceProfile) (bool, string) {
	switch rule.Kind {
	case KindInterpreterMinVersion:
		min, err := version.NewVersion(rule.Params.Min)
		if err != nil {
			return false, fmt.Sprintf("rule minimum %q is not a version", rule.Params.Min)
		}
		if p.InterpreterVersion == nil {
			return false, "interpreter not found or version undetectable"
		}
		if p.InterpreterVersion.LessThan(min) {
			return false, fmt.Sprintf("interpreter %s is older than required %s",
				p.InterpreterVersion, min)
		}
		return true, fmt.Sprintf("interpreter %s satisfies minimum %s", p.InterpreterVersion, min)

	case KindArchitectureIn:
		key := p.ArchKey()
		if slices.Contains(rule.Params.Supported, key) {
			return true, fmt.Sprintf("architecture %s is supported", key)
		}
		return false, fmt.Sprintf("architecture %s is not in the supported set %v",
			key, rule.Params.Supported)

	case KindMinMemoryMiB:
		if p.TotalMemoryMiB >= rule.Params.MinMiB {
			return true, fmt.Sprintf("%d MiB available, %d MiB required",
				p.TotalMemoryMiB, rule.Params.MinMiB)
		}
		return false, fmt.Sprintf("%d MiB detected, %d MiB recommended (0 means undetectable)",
			p.TotalMemoryMiB, rule.Params.MinMiB)

	case KindToolPresent:
		if p.Tools[rule.Params.Tool] {
			return true, fmt.Sprintf("%s found on PATH", rule.Params.Tool)
		}
		return false, fmt.Sprintf("%s not found on PATH", rule.Params.Tool)

	default:
		return false, fmt.Sprintf("unknown rule kind %q", rule.Kind)
	}
}

// Package validation checks a generated conf.py before the build tool runs.
package validation

import (
	"context"
	"log/slog"
	"time"
)

// Context contains all the data needed by validation rules.
type Context struct {
	// ConfPath is the generated configuration file.
	ConfPath string
	// Python is the interpreter used by rules that execute code.
	Python string
	// Timeout bounds each subprocess a rule starts.
	Timeout time.Duration
	Logger  *slog.Logger
}

// Result indicates whether validation passed and provides context.
type Result struct {
	Passed bool
	Rule   string
	Reason string // human-readable reason for failure
	Err    error
}

// Success returns a successful validation result.
func Success() Result {
	return Result{Passed: true}
}

// Failure returns a failed validation result with a reason.
func Failure(reason string, err error) Result {
	return Result{Passed: false, Reason: reason, Err: err}
}

// Rule is a single pre-flight check.
type Rule interface {
	// Name returns a short identifier for this rule.
	Name() string
	Validate(ctx context.Context, vctx Context) Result
}

// RuleChain executes rules in sequence, stopping at the first failure.
type RuleChain struct {
	rules []Rule
}

// NewRuleChain creates a new rule chain with the given rules.
func NewRuleChain(rules ...Rule) *RuleChain {
	return &RuleChain{rules: rules}
}

// DefaultChain is the standard conf.py check; withPython adds a
// byte-compile run with the interpreter.
func DefaultChain(withPython bool) *RuleChain {
	rules := []Rule{ConfExistsRule{}, ConfSyntaxRule{}}
	if withPython {
		rules = append(rules, PyCompileRule{})
	}
	return NewRuleChain(rules...)
}

// Names lists the rules in execution order.
func (rc *RuleChain) Names() []string {
	names := make([]string, len(rc.rules))
	for i, r := range rc.rules {
		names[i] = r.Name()
	}
	return names
}

// Validate executes all rules in order, returning the first failure or
// success if all pass.
func (rc *RuleChain) Validate(ctx context.Context, vctx Context) Result {
	for _, rule := range rc.rules {
		if err := ctx.Err(); err != nil {
			return Result{Rule: rule.Name(), Reason: "canceled", Err: err}
		}
		result := rule.Validate(ctx, vctx)
		if !result.Passed {
			result.Rule = rule.Name()
			if vctx.Logger != nil {
				vctx.Logger.Warn("Configuration validation failed",
					"rule", rule.Name(),
					"reason", result.Reason)
			}
			return result
		}
		if vctx.Logger != nil {
			vctx.Logger.Debug("Configuration validation rule passed", "rule", rule.Name())
		}
	}
	return Success()
}

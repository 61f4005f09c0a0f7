package morph

import (
	"fmt"
	"reflect"
	"strings"
)

// Group is an opaque identifier callers activate per map call to flip
// the default decision of IgnoreRules that list it as an exception.
type Group string

// NullPolicy decides whether null or empty source values are copied.
type NullPolicy uint8

const (
	// PolicyDefault defers to the call or engine policy.
	PolicyDefault NullPolicy = iota

	// PolicyNone copies every value, null or not.
	PolicyNone

	// PolicyNull skips null source values.
	PolicyNull

	// PolicyEmpty skips null, zero-length, and numeric zero source values.
	PolicyEmpty
)

// String returns the policy name used in tags and profiles.
func (p NullPolicy) String() string {
	switch p {
	case PolicyNone:
		return "none"
	case PolicyNull:
		return "null"
	case PolicyEmpty:
		return "empty"
	default:
		return "default"
	}
}

// ParsePolicy parses a policy name as written in tags and profiles.
func ParsePolicy(s string) (NullPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "default":
		return PolicyDefault, nil
	case "none":
		return PolicyNone, nil
	case "null", "nil":
		return PolicyNull, nil
	case "empty":
		return PolicyEmpty, nil
	}
	return PolicyDefault, fmt.Errorf("%w: unknown policy %q", ErrInvalidTag, s)
}

// SkipFunc is a custom skip predicate. It receives the target and source
// records being mapped and the decision reached by the declarative layers,
// and returns the final decision.
type SkipFunc func(target, source any, skip bool) bool

// IgnoreRule governs whether and when a field copy is skipped.
type IgnoreRule struct {
	// Ignored is the decision when no exception group is active.
	Ignored bool

	// Except lists groups that invert Ignored when any of them is active.
	Except []Group

	// Policy skips null or empty source values independently of Ignored.
	Policy NullPolicy

	// Skip, if set, overrides the combined decision.
	Skip SkipFunc
}

// Always returns a rule that ignores a field unless one of the groups is active.
func Always(except ...Group) *IgnoreRule {
	return &IgnoreRule{Ignored: true, Except: except}
}

// When returns a rule that ignores a field only when one of the groups is active.
func When(groups ...Group) *IgnoreRule {
	return &IgnoreRule{Except: groups}
}

// SkipNull returns a rule that skips null source values.
func SkipNull() *IgnoreRule {
	return &IgnoreRule{Policy: PolicyNull}
}

// SkipEmpty returns a rule that skips empty source values.
func SkipEmpty() *IgnoreRule {
	return &IgnoreRule{Policy: PolicyEmpty}
}

// groupSet is the set of groups active for one map call.
type groupSet map[Group]struct{}

func newGroupSet(groups []Group) groupSet {
	if len(groups) == 0 {
		return nil
	}
	set := make(groupSet, len(groups))
	for _, g := range groups {
		set[g] = struct{}{}
	}
	return set
}

func (s groupSet) any(groups []Group) bool {
	for _, g := range groups {
		if _, ok := s[g]; ok {
			return true
		}
	}
	return false
}

// shouldSkip evaluates the ignore layers for one field in fixed order:
// group rule, then null/empty policy (OR), then the custom predicate, which
// overrides both. fallback applies when the rule leaves the policy at default.
func shouldSkip(rule *IgnoreRule, groups groupSet, fallback NullPolicy, value reflect.Value, target, source reflect.Value) (skip bool, err error) {
	policy := fallback
	if rule != nil {
		skip = rule.Ignored
		if groups.any(rule.Except) {
			skip = !skip
		}
		if rule.Policy != PolicyDefault {
			policy = rule.Policy
		}
	}

	switch policy {
	case PolicyNull:
		skip = skip || isNull(value)
	case PolicyEmpty:
		skip = skip || isEmpty(value)
	}

	if rule == nil || rule.Skip == nil {
		return skip, nil
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("predicate panicked: %v", r)
		}
	}()
	return rule.Skip(iface(target), iface(source), skip), nil
}

// iface returns the interface form of a record, preferring its address.
func iface(v reflect.Value) any {
	if !v.IsValid() {
		return nil
	}
	if v.Kind() != reflect.Pointer && v.CanAddr() {
		return v.Addr().Interface()
	}
	return v.Interface()
}

// MarshalText implements encoding.TextMarshaler.
func (p NullPolicy) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *NullPolicy) UnmarshalText(text []byte) error {
	parsed, err := ParsePolicy(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

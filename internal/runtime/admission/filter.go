package admission

import (
	"github.com/drblury/bidgate/internal/runtime/bid"
)

// Names of the built-in rules, reported in Verdict.Rule and the drop metric.
const (
	RuleLimitAdTracking = "limit_ad_tracking"
	RulePrivateNetwork  = "private_network"
)

// DefaultBlockedIPPrefixes are the device IP prefixes dropped by PrivateNetwork
// when none are configured.
var DefaultBlockedIPPrefixes = []string{"10.10."}

// Rule is a named drop predicate.
type Rule struct {
	Name string
	Drop func(req *bid.BidRequest) bool
}

// Verdict is the result of evaluating a Filter. Rule names the first rule
// that matched.
type Verdict struct {
	Drop bool
	Rule string
}

// Filter evaluates rules in order and drops on the first match. A Filter is
// never mutated after construction.
type Filter struct {
	rules []Rule
}

// NewFilter returns a filter over rules. Rules without a predicate are skipped.
func NewFilter(rules ...Rule) *Filter {
	f := &Filter{}
	for _, r := range rules {
		if r.Drop != nil {
			f.rules = append(f.rules, r)
		}
	}
	return f
}

// DefaultFilter drops ad-tracking opt-outs and the given private prefixes.
func DefaultFilter(blockedPrefixes ...string) *Filter {
	if len(blockedPrefixes) == 0 {
		blockedPrefixes = DefaultBlockedIPPrefixes
	}
	return NewFilter(LimitAdTracking(), PrivateNetwork(blockedPrefixes...))
}

// With returns a new filter with rules appended after the existing ones.
func (f *Filter) With(rules ...Rule) *Filter {
	var existing []Rule
	if f != nil {
		existing = f.rules
	}
	combined := make([]Rule, 0, len(existing)+len(rules))
	combined = append(combined, existing...)
	combined = append(combined, rules...)
	return NewFilter(combined...)
}

// Rules returns a copy of the rule list.
func (f *Filter) Rules() []Rule {
	if f == nil {
		return nil
	}
	out := make([]Rule, len(f.rules))
	copy(out, f.rules)
	return out
}

// Evaluate returns a drop verdict naming the first matching rule, or a zero
// Verdict when the request passes. It never modifies req.
func (f *Filter) Evaluate(req *bid.BidRequest) Verdict {
	if f == nil {
		return Verdict{}
	}
	for _, r := range f.rules {
		if r.Drop(req) {
			return Verdict{Drop: true, Rule: r.Name}
		}
	}
	return Verdict{}
}

// LimitAdTracking drops requests whose device set lmt to 1.
func LimitAdTracking() Rule {
	return Rule{
		Name: RuleLimitAdTracking,
		Drop: func(req *bid.BidRequest) bool {
			return req != nil && req.Device.LimitsAdTracking()
		},
	}
}

// PrivateNetwork drops requests whose device IP is present and starts with
// one of prefixes.
func PrivateNetwork(prefixes ...string) Rule {
	blocked := append([]string(nil), prefixes...)
	return Rule{
		Name: RulePrivateNetwork,
		Drop: func(req *bid.BidRequest) bool {
			return req != nil && req.Device.HasPrefix(blocked...)
		},
	}
}

// Package engine evaluates ordered rule sets against transactions. This is
// pure domain logic: no I/O, no side effects, no clocks.
package engine

import (
	"regexp"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	rulemodels "fraudwatch/internal/rule/models"
	txmodels "fraudwatch/internal/transaction/models"
)

// regexCache memoizes compiled blacklist patterns. REGEX rules are re-applied
// on every transaction, so compiling once per pattern matters on the hot path.
var regexCache, _ = lru.New[string, *regexp.Regexp](256)

// Evaluate applies each rule's predicate in the supplied order and returns
// the outcome of the first match; later rules are never inspected. An
// exhausted rule set yields the explicit default-approve outcome, never a
// null result.
func Evaluate(rules []rulemodels.Rule, txn txmodels.Transaction) rulemodels.RuleEvaluationResult {
	for _, rule := range rules {
		if matches(rule, txn) {
			return rulemodels.Triggered(rule)
		}
	}
	return rulemodels.DefaultApprove()
}

// matches applies a single rule's predicate. Any predicate failure (bad
// pattern, unexpected panic) counts as a non-match: one broken rule must
// never abort evaluation of the remaining rules.
func matches(rule rulemodels.Rule, txn txmodels.Transaction) (matched bool) {
	defer func() {
		if recover() != nil {
			matched = false
		}
	}()

	switch rule.Type {
	case rulemodels.RuleTypeAmountThreshold:
		return matchAmountThreshold(rule, txn)
	case rulemodels.RuleTypeIPBlacklist:
		return matchIPBlacklist(rule, txn)
	case rulemodels.RuleTypeDuplicateTransaction:
		// Reserved: the duplicate check runs as a hardcoded step in the
		// detection service, before any rule evaluation.
		return false
	default:
		return false
	}
}

func matchAmountThreshold(rule rulemodels.Rule, txn txmodels.Transaction) bool {
	if txn.Amount == nil || rule.ThresholdValue == nil {
		return false
	}
	cmp := txn.Amount.Cmp(*rule.ThresholdValue)

	switch rule.Condition {
	case rulemodels.CondGreaterThan:
		return cmp > 0
	case rulemodels.CondGreaterThanOrEqual:
		return cmp >= 0
	case rulemodels.CondLessThan:
		return cmp < 0
	case rulemodels.CondLessThanOrEqual:
		return cmp <= 0
	default:
		return false
	}
}

func matchIPBlacklist(rule rulemodels.Rule, txn txmodels.Transaction) bool {
	if txn.IPAddress == nil || rule.StringValue == nil {
		return false
	}
	ip := *txn.IPAddress
	pattern := *rule.StringValue

	switch rule.Condition {
	case rulemodels.CondStartsWith:
		return strings.HasPrefix(ip, pattern)
	case rulemodels.CondEquals:
		return ip == pattern
	case rulemodels.CondContains:
		return strings.Contains(ip, pattern)
	case rulemodels.CondRegex:
		return matchRegex(pattern, ip)
	default:
		return false
	}
}

func matchRegex(pattern, value string) bool {
	re, ok := regexCache.Get(pattern)
	if !ok {
		var err error
		re, err = regexp.Compile(pattern)
		if err != nil {
			// Malformed pattern: the rule simply never matches.
			return false
		}
		regexCache.Add(pattern, re)
	}
	return re.MatchString(value)
}

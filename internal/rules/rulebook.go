// Package rules implements the compatibility table that tells the conflict
// detector whether two semantic change types can be merged automatically,
// and by which strategy.
package rules

import (
	"fmt"
	"sync"

	"github.com/latticeworks/parallex/internal/semantic"
)

// Strategy is a closed enum of deterministic merge strategies.
type Strategy string

const (
	CombineImports     Strategy = "combine_imports"
	HooksFirst         Strategy = "hooks_first"
	HooksThenWrap      Strategy = "hooks_then_wrap"
	AppendStatements   Strategy = "append_statements"
	AppendFunctions    Strategy = "append_functions"
	AppendMethods      Strategy = "append_methods"
	CombineProps       Strategy = "combine_props"
	OrderByDependency  Strategy = "order_by_dependency"
	OrderByTime        Strategy = "order_by_time"
	AIRequired         Strategy = "ai_required"
	HumanRequired      Strategy = "human_required"
)

// Rule is one entry in the compatibility table.
type Rule struct {
	Compatible bool
	Strategy   Strategy
	Reason     string
}

type pairKey struct {
	a, b semantic.ChangeType
}

// RuleBook holds the (ChangeTypeA, ChangeTypeB) -> Rule table. It is safe
// for concurrent use; AddRule may be called at runtime.
type RuleBook struct {
	mu    sync.RWMutex
	rules map[pairKey]Rule
}

// defaultUnknownRule is returned for any pair with no explicit entry.
var defaultUnknownRule = Rule{Compatible: false, Strategy: AIRequired, Reason: "no compatibility rule for this pair"}

// NewDefaultRuleBook returns a RuleBook pre-populated with the
// representative table every implementation must reproduce.
func NewDefaultRuleBook() *RuleBook {
	rb := &RuleBook{rules: map[pairKey]Rule{}}

	type entry struct {
		a, b          semantic.ChangeType
		compatible    bool
		strategy      Strategy
		bidirectional bool
	}

	entries := []entry{
		{semantic.AddImport, semantic.AddImport, true, CombineImports, false},
		{semantic.AddImport, semantic.RemoveImport, false, AIRequired, true},
		{semantic.AddFunction, semantic.AddFunction, true, AppendFunctions, false},
		{semantic.AddFunction, semantic.ModifyFunction, true, AppendFunctions, true},
		{semantic.ModifyFunction, semantic.ModifyFunction, false, AIRequired, false},
		{semantic.AddHookCall, semantic.AddHookCall, true, OrderByDependency, false},
		{semantic.AddHookCall, semantic.WrapJSX, true, HooksThenWrap, true},
		{semantic.AddHookCall, semantic.ModifyFunction, true, HooksFirst, true},
		{semantic.WrapJSX, semantic.WrapJSX, true, OrderByDependency, false},
		{semantic.WrapJSX, semantic.AddJSXElement, true, AppendStatements, true},
		{semantic.ModifyJSXProps, semantic.ModifyJSXProps, true, CombineProps, false},
		{semantic.AddMethod, semantic.AddMethod, true, AppendMethods, false},
		{semantic.ModifyMethod, semantic.ModifyMethod, false, AIRequired, false},
		{semantic.AddClass, semantic.ModifyClass, true, AppendFunctions, true},
		{semantic.AddVariable, semantic.AddVariable, true, AppendStatements, false},
		{semantic.AddConstant, semantic.AddVariable, true, AppendStatements, true},
		{semantic.AddType, semantic.AddType, true, AppendFunctions, false},
		{semantic.AddInterface, semantic.AddInterface, true, AppendFunctions, false},
		{semantic.ModifyInterface, semantic.ModifyInterface, false, AIRequired, false},
		{semantic.AddDecorator, semantic.AddDecorator, true, OrderByDependency, false},
		{semantic.AddComment, semantic.AddComment, true, AppendStatements, false},
		{semantic.FormattingOnly, semantic.FormattingOnly, true, OrderByTime, false},
	}

	for _, e := range entries {
		reason := fmt.Sprintf("%s + %s", e.a, e.b)
		if !e.compatible {
			reason = fmt.Sprintf("%s + %s requires manual judgment", e.a, e.b)
		}

		rb.AddRule(e.a, e.b, e.compatible, e.strategy, reason, e.bidirectional)
	}

	return rb
}

// AddRule inserts or replaces the rule for (a, b), and for (b, a) too when
// bidirectional is set.
func (rb *RuleBook) AddRule(a, b semantic.ChangeType, compatible bool, strategy Strategy, reason string, bidirectional bool) {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	rb.rules[pairKey{a, b}] = Rule{Compatible: compatible, Strategy: strategy, Reason: reason}

	if bidirectional {
		rb.rules[pairKey{b, a}] = Rule{Compatible: compatible, Strategy: strategy, Reason: reason}
	}
}

// Lookup returns the rule governing (a, b). Unknown pairs default to
// incompatible/ai_required.
func (rb *RuleBook) Lookup(a, b semantic.ChangeType) Rule {
	rb.mu.RLock()
	defer rb.mu.RUnlock()

	if rule, ok := rb.rules[pairKey{a, b}]; ok {
		return rule
	}

	if rule, ok := rb.rules[pairKey{b, a}]; ok {
		return rule
	}

	return defaultUnknownRule
}

// Explain returns a human-readable sentence describing the rule governing
// (a, b), for diagnostics and CLI output.
func (rb *RuleBook) Explain(a, b semantic.ChangeType) string {
	rule := rb.Lookup(a, b)

	if rule.Compatible {
		return fmt.Sprintf("%s and %s are compatible via %s: %s", a, b, rule.Strategy, rule.Reason)
	}

	return fmt.Sprintf("%s and %s are incompatible (%s): %s", a, b, rule.Strategy, rule.Reason)
}

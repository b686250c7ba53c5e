package automerge

import (
	"fmt"

	"github.com/latticeworks/parallex/internal/mergetypes"
	"github.com/latticeworks/parallex/internal/rules"
)

var dispatchTable = map[rules.Strategy]Handler{
	rules.CombineImports:    combineImports,
	rules.HooksFirst:        hooksFirst,
	rules.HooksThenWrap:     hooksThenWrap,
	rules.AppendFunctions:   appendFunctions,
	rules.AppendMethods:     appendMethods,
	rules.CombineProps:      combineProps,
	rules.OrderByDependency: orderByDependency,
	rules.OrderByTime:       orderByTime,
	rules.AppendStatements:  appendStatements,
}

// Merge dispatches ctx to the handler registered for strategy. Unknown
// strategies (including ai_required/human_required, which this package
// never handles) return a failed result.
func Merge(ctx Context, strategy rules.Strategy) (result mergetypes.Result) {
	handler, ok := dispatchTable[strategy]
	if !ok {
		return mergetypes.Result{
			Decision: mergetypes.Failed,
			Error:    fmt.Sprintf("no auto-merge handler for strategy %q", strategy),
		}
	}

	defer func() {
		if r := recover(); r != nil {
			result = mergetypes.Result{
				Decision: mergetypes.Failed,
				Error:    fmt.Sprintf("auto-merge handler panicked: %v", r),
			}
		}
	}()

	return handler(ctx)
}

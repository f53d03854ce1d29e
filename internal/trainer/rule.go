package trainer

import (
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// RuleEnv is the variable set a trigger rule may reference.
type RuleEnv struct {
	AvgQuality float64 `expr:"avg_quality"`
	BufferLen  int     `expr:"buffer_len"`
	BufferSize int     `expr:"buffer_size"`
}

// Rule is a compiled boolean trigger expression.
type Rule struct {
	source  string
	program *vm.Program
}

// CompileRule type-checks source against RuleEnv.
func CompileRule(source string) (*Rule, error) {
	program, err := expr.Compile(source, expr.Env(RuleEnv{}), expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("compile trigger rule %q: %w", source, err)
	}
	return &Rule{source: source, program: program}, nil
}

func (r *Rule) Eval(env RuleEnv) (bool, error) {
	out, err := expr.Run(r.program, env)
	if err != nil {
		return false, fmt.Errorf("evaluate trigger rule %q: %w", r.source, err)
	}
	return out.(bool), nil
}

func (r *Rule) String() string { return r.source }

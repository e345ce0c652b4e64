package validators

import (
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// ExprValidator accepts values for which a boolean expression holds. The
// candidate is available as `value` inside the expression.
type ExprValidator struct {
	source  string
	program *vm.Program
}

// Expr compiles expression, e.g. `value % 256 == 0 && value <= 4096`.
func Expr(expression string) (*ExprValidator, error) {
	if expression == "" {
		return nil, fmt.Errorf("validator expression must not be empty")
	}
	program, err := expr.Compile(expression, expr.Env(map[string]interface{}{}), expr.AllowUndefinedVariables(), expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("compile validator expression %q: %w", expression, err)
	}
	return &ExprValidator{source: expression, program: program}, nil
}

// Validate implements parameter.Validator.
func (v *ExprValidator) Validate(value interface{}) error {
	out, err := vm.Run(v.program, map[string]interface{}{"value": value})
	if err != nil {
		return fmt.Errorf("evaluate %q for %v: %w", v.source, value, err)
	}
	ok, _ := out.(bool)
	if !ok {
		return fmt.Errorf("%v does not satisfy %q", value, v.source)
	}
	return nil
}

func (v *ExprValidator) String() string {
	return fmt.Sprintf("<Expr %s>", v.source)
}

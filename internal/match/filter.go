package match

import (
	"fmt"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/opensource-finance/kestrel/internal/domain"
)

// CandidateFilter narrows a candidate set with a CEL boolean expression
// before scoring, e.g. `amount < 500.0 && currency == "USD"`.
type CandidateFilter struct {
	expr    string
	program cel.Program
}

func newFilterEnv() (*cel.Env, error) {
	return cel.NewEnv(
		cel.Variable("id", cel.StringType),
		cel.Variable("vendor", cel.StringType),
		cel.Variable("amount", cel.DoubleType),
		cel.Variable("currency", cel.StringType),
		cel.Variable("date", cel.StringType), // YYYY-MM-DD
		cel.Variable("metadata", cel.MapType(cel.StringType, cel.DynType)),
	)
}

// NewCandidateFilter compiles a filter expression. The expression must
// evaluate to a bool.
func NewCandidateFilter(expr string) (*CandidateFilter, error) {
	env, err := newFilterEnv()
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile filter %q: %w", expr, issues.Err())
	}
	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("filter %q: expression must return bool, got %s", expr, ast.OutputType())
	}

	program, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create program for filter %q: %w", expr, err)
	}

	return &CandidateFilter{expr: expr, program: program}, nil
}

// Expression returns the source expression.
func (f *CandidateFilter) Expression() string {
	return f.expr
}

// Match evaluates the filter against one target. Evaluation errors exclude
// the target rather than aborting the batch.
func (f *CandidateFilter) Match(target *domain.TargetTransaction) bool {
	if target == nil {
		return false
	}
	metadata := target.Metadata
	if metadata == nil {
		metadata = map[string]interface{}{}
	}
	out, _, err := f.program.Eval(map[string]any{
		"id":       target.ID,
		"vendor":   target.Vendor,
		"amount":   target.Amount,
		"currency": target.Currency,
		"date":     target.Date.UTC().Format("2006-01-02"),
		"metadata": metadata,
	})
	if err != nil {
		return false
	}
	b, ok := out.(types.Bool)
	return ok && bool(b)
}

// Apply returns the targets that satisfy the filter, preserving order.
func (f *CandidateFilter) Apply(targets []*domain.TargetTransaction) []*domain.TargetTransaction {
	kept := make([]*domain.TargetTransaction, 0, len(targets))
	for _, t := range targets {
		if f.Match(t) {
			kept = append(kept, t)
		}
	}
	return kept
}

// internal/service/member/infrastructure/rule/cel_visibility.go
package rule

import (
	"context"
	"fmt"

	"github.com/google/cel-go/cel"

	"membermall/internal/service/member/domain"
)

// CELVisibilityAdapter 是 port.VisibilityRule 的 CEL 实现。
// 表达式可以引用 member 与 product 两个变量，例如:
//
//	member.class == "Gold" || product.price <= 100.0
type CELVisibilityAdapter struct {
	expr string
	prg  cel.Program
}

// NewCELVisibilityAdapter 在启动时编译表达式，语法错误或返回值不是 bool 时直接报错。
func NewCELVisibilityAdapter(expr string) (*CELVisibilityAdapter, error) {
	env, err := cel.NewEnv(
		cel.Variable("member", cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable("product", cel.MapType(cel.StringType, cel.DynType)),
	)
	if err != nil {
		return nil, err
	}
	ast, iss := env.Compile(expr)
	if iss.Err() != nil {
		return nil, fmt.Errorf("compile visibility rule: %w", iss.Err())
	}
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, fmt.Errorf("visibility rule must return bool, got %s", ast.OutputType())
	}
	prg, err := env.Program(ast)
	if err != nil {
		return nil, err
	}
	return &CELVisibilityAdapter{expr: expr, prg: prg}, nil
}

func (a *CELVisibilityAdapter) Visible(ctx context.Context, m *domain.Member, p domain.Product) (bool, error) {
	out, _, err := a.prg.ContextEval(ctx, map[string]any{
		"member":  memberFact(m),
		"product": productFact(p),
	})
	if err != nil {
		return false, err
	}
	visible, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("unexpected rule result type %T", out.Value())
	}
	return visible, nil
}

// 金额以 double 暴露给表达式，只用于可见性判断，不参与结算
func memberFact(m *domain.Member) map[string]any {
	return map[string]any{
		"name":           m.Name,
		"number":         m.Number,
		"email":          m.Email,
		"class":          m.Class,
		"status":         m.Status,
		"cash":           m.Cash.InexactFloat64(),
		"discount_point": m.DiscountPoint.InexactFloat64(),
		"loyalty_point":  m.LoyaltyPoint.InexactFloat64(),
	}
}

func productFact(p domain.Product) map[string]any {
	return map[string]any{
		"id":            p.DocumentID,
		"name":          p.Name,
		"price":         p.Price.InexactFloat64(),
		"max_deduction": p.MaxDeduction.InexactFloat64(),
		"fixed":         p.Fixed,
		"provider":      p.Issuer(),
		"order":         int64(p.Order),
	}
}

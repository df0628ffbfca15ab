package adapter

import (
	"context"
	"fmt"

	"github.com/google/cel-go/cel"

	"storefront/internal/service/order/domain"
	"storefront/internal/service/order/domain/port"
)

// CELAdmissionAdapter 是 port.AdmissionPolicy 接口的 CEL 实现。
// 表达式可以使用 user_id、shipping_address、items（每项含 product_id 与 quantity），必须返回 bool。
//
//	size(items) <= 20 && items.all(i, i.quantity <= 10)
type CELAdmissionAdapter struct {
	expr    string
	program cel.Program
}

func NewCELAdmissionAdapter(expr string) (*CELAdmissionAdapter, error) {
	env, err := cel.NewEnv(
		cel.Variable("user_id", cel.IntType),
		cel.Variable("shipping_address", cel.StringType),
		cel.Variable("items", cel.ListType(cel.MapType(cel.StringType, cel.IntType))),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL env: %w", err)
	}

	ast, iss := env.Compile(expr)
	if iss.Err() != nil {
		return nil, fmt.Errorf("invalid admission policy: %w", iss.Err())
	}
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, fmt.Errorf("admission policy must return bool, got %s", ast.OutputType())
	}

	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to build admission policy program: %w", err)
	}
	return &CELAdmissionAdapter{expr: expr, program: prg}, nil
}

func (a *CELAdmissionAdapter) Admit(ctx context.Context, in port.AdmissionInput) error {
	items := make([]interface{}, 0, len(in.Items))
	for _, it := range in.Items {
		items = append(items, map[string]interface{}{
			"product_id": it.ProductID,
			"quantity":   int64(it.Quantity),
		})
	}

	out, _, err := a.program.ContextEval(ctx, map[string]interface{}{
		"user_id":          in.UserID,
		"shipping_address": in.ShippingAddress,
		"items":            items,
	})
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrPolicyRejected, err)
	}
	if allowed, ok := out.Value().(bool); !ok || !allowed {
		return domain.ErrPolicyRejected
	}
	return nil
}

package saga

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCompensationsRunInReverseOrder(t *testing.T) {
	orderCtx := &OrderContext{}
	var got []int
	for i := 1; i <= 3; i++ {
		orderCtx.AddCompensation(func(context.Context) { got = append(got, i) })
	}

	n := orderCtx.TriggerCompensation(t.Context())
	assert.Equal(t, 3, n)
	assert.Equal(t, []int{3, 2, 1}, got)

	// 已执行的补偿不会重复执行
	assert.Zero(t, orderCtx.TriggerCompensation(t.Context()))
	assert.Len(t, got, 3)
}

func TestLockOrderSortsAndDeduplicates(t *testing.T) {
	ids := lockOrder([]LineRequest{{ProductID: 9}, {ProductID: 2}, {ProductID: 9}, {ProductID: 5}})
	assert.Equal(t, []int64{2, 5, 9}, ids)
}

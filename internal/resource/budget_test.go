package resource

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBudget_Limit(t *testing.T) {
	b := NewBudget(100)

	require.NoError(t, b.Charge(60))
	require.NoError(t, b.Charge(40))
	assert.Equal(t, int64(100), b.Used())

	assert.ErrorIs(t, b.Charge(1), ErrMemoryLimitExceeded)
	assert.Equal(t, int64(100), b.Used(), "a failed charge is not recorded")

	b.Refund(60)
	assert.Equal(t, int64(40), b.Used())
	require.NoError(t, b.Charge(50))
	assert.Equal(t, int64(100), b.Peak())
	assert.Equal(t, int64(100), b.Limit())
}

func TestBudget_Unlimited(t *testing.T) {
	b := NewBudget(0)

	require.NoError(t, b.Charge(1<<40))
	assert.Equal(t, int64(1<<40), b.Used())
	assert.Zero(t, b.Limit())

	b.Refund(1 << 40)
	assert.Zero(t, b.Used())
	assert.Equal(t, int64(1<<40), b.Peak())
}

func TestBudget_Nil(t *testing.T) {
	var b *Budget
	assert.NoError(t, b.Charge(10))
	b.Refund(10)
	assert.Zero(t, b.Used())
	assert.Zero(t, b.Peak())
	assert.Zero(t, b.Limit())
}

func TestBudget_Concurrent(t *testing.T) {
	b := NewBudget(64 * 1024)

	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				if b.Charge(4096) == nil {
					b.Refund(4096)
				}
			}
		}()
	}
	wg.Wait()

	assert.Zero(t, b.Used())
	assert.LessOrEqual(t, b.Peak(), int64(64*1024))
}

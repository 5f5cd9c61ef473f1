package coupon

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shopsaga/order-core/internal/apperr"
	"github.com/shopsaga/order-core/pkg/memstore/memstoretest"
)

func TestAdmitter_Admit_RejectsDuplicateUser(t *testing.T) {
	store := memstoretest.New()
	a := NewAdmitter(store)
	require.NoError(t, a.Activate(context.Background(), 1, 10))

	_, err := a.Admit(context.Background(), 1, 100)
	require.NoError(t, err)

	_, err = a.Admit(context.Background(), 1, 100)
	require.Error(t, err)
	var appErr *apperr.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperr.CodeAlreadyIssued, appErr.Code)
}

func TestAdmitter_Admit_CapsAtExactQuantity(t *testing.T) {
	store := memstoretest.New()
	a := NewAdmitter(store)
	require.NoError(t, a.Activate(context.Background(), 1, 5))

	var wg sync.WaitGroup
	var accepted, rejected int64
	const n = 200
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(userID int64) {
			defer wg.Done()
			_, err := a.Admit(context.Background(), 1, userID)
			if err == nil {
				atomic.AddInt64(&accepted, 1)
			} else {
				atomic.AddInt64(&rejected, 1)
			}
		}(int64(i))
	}
	wg.Wait()

	assert.Equal(t, int64(5), accepted)
	assert.Equal(t, int64(n-5), rejected)
}

func TestAdmitter_Admit_SoldoutAfterCap(t *testing.T) {
	store := memstoretest.New()
	a := NewAdmitter(store)
	require.NoError(t, a.Activate(context.Background(), 1, 1))

	_, err := a.Admit(context.Background(), 1, 1)
	require.NoError(t, err)

	_, err = a.Admit(context.Background(), 1, 2)
	require.Error(t, err)
	var appErr *apperr.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperr.CodeCouponExhausted, appErr.Code)
}

package inventory

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shopsaga/order-core/internal/apperr"
)

func TestService_Reserve_RejectsInsufficientStock(t *testing.T) {
	mock := &mockPool{
		queryRowFn: func(ctx context.Context, sql string, args ...any) pgx.Row {
			return &mockRow{scanFn: func(dest ...any) error {
				*(dest[0].(*int64)) = 1
				*(dest[1].(*int)) = 5
				*(dest[2].(*int)) = 4
				*(dest[3].(*int64)) = 1
				return nil
			}}
		},
	}
	s := NewService()
	err := s.Reserve(context.Background(), mock, map[int64]int{1: 10})
	require.Error(t, err)
	var appErr *apperr.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperr.CodeInsufficientStock, appErr.Code)
}

func TestService_Deduct_RejectsInsufficientStockAndDoesNotWrite(t *testing.T) {
	var updateCalled bool
	mock := &mockPool{
		queryRowFn: func(ctx context.Context, sql string, args ...any) pgx.Row {
			return &mockRow{scanFn: func(dest ...any) error {
				*(dest[0].(*int64)) = 1
				*(dest[1].(*int)) = 5 // on-hand quantity
				*(dest[2].(*int)) = 2
				*(dest[3].(*int64)) = 1
				return nil
			}}
		},
		execFn: func(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
			updateCalled = true
			return pgconn.NewCommandTag("UPDATE 1"), nil
		},
	}
	s := NewService()
	err := s.Deduct(context.Background(), mock, map[int64]int{1: 10})
	require.Error(t, err)
	var appErr *apperr.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperr.CodeInsufficientStock, appErr.Code)
	assert.EqualValues(t, 1, appErr.Data["productId"])
	assert.False(t, updateCalled)
}

func TestService_Reserve_Success(t *testing.T) {
	mock := &mockPool{
		queryRowFn: func(ctx context.Context, sql string, args ...any) pgx.Row {
			return &mockRow{scanFn: func(dest ...any) error {
				*(dest[0].(*int64)) = 1
				*(dest[1].(*int)) = 10
				*(dest[2].(*int)) = 2
				*(dest[3].(*int64)) = 1
				return nil
			}}
		},
	}
	s := NewService()
	err := s.Reserve(context.Background(), mock, map[int64]int{1: 3})
	require.NoError(t, err)
}

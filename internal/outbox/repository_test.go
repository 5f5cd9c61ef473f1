package outbox

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shopsaga/order-core/internal/model"
)

func TestRepository_ClaimBatch_EmptyResult(t *testing.T) {
	repo := NewRepository(&mockPool{})
	events, err := repo.ClaimBatch(context.Background(), 50)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestRepository_ClaimBatch_ScansEvents(t *testing.T) {
	want := &model.OutboxEvent{
		ID: 1, EventType: model.EventOrderCreated, AggregateType: model.AggregateOrder,
		AggregateID: "order-1", Payload: []byte(`{}`), RetryCount: 0,
	}
	mock := &mockPool{
		queryFn: func(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
			return &mockRows{data: []*model.OutboxEvent{want}}, nil
		},
	}
	repo := NewRepository(mock)
	events, err := repo.ClaimBatch(context.Background(), 50)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, want.EventType, events[0].EventType)
	assert.Equal(t, want.AggregateID, events[0].AggregateID)
}

func TestRepository_MarkProcessed_AlreadyProcessed(t *testing.T) {
	mock := &mockPool{
		execFn: func(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
			return pgconn.NewCommandTag("UPDATE 0"), nil
		},
	}
	repo := NewRepository(mock)
	err := repo.MarkProcessed(context.Background(), 1)
	assert.ErrorIs(t, err, ErrAlreadyProcessed)
}

func TestRepository_MarkProcessed_Success(t *testing.T) {
	mock := &mockPool{
		execFn: func(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
			return pgconn.NewCommandTag("UPDATE 1"), nil
		},
	}
	repo := NewRepository(mock)
	err := repo.MarkProcessed(context.Background(), 1)
	assert.NoError(t, err)
}

func TestRepository_MoveToDLQ_InsertsSnapshotAndMarksProcessed(t *testing.T) {
	var execCalls int
	mock := &mockPool{
		execFn: func(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
			execCalls++
			return pgconn.NewCommandTag("INSERT 1"), nil
		},
	}
	repo := NewRepository(mock)
	e := &model.OutboxEvent{ID: 1, EventType: model.EventOrderCreated, AggregateType: model.AggregateOrder, AggregateID: "order-1"}
	err := repo.MoveToDLQ(context.Background(), e, "handler exhausted retries")
	require.NoError(t, err)
	assert.Equal(t, 2, execCalls)
}

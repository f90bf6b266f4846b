package resource

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/shaiso/Conductor/internal/domain"
)

// Количество повторов оптимистичного CAS при конкуренции за ключ.
const casRetries = 5

// RedisLedger — ledger выделений поверх Redis.
//
// Каждое выделение хранится отдельным ключом с JSON-значением.
// Переход статуса выполняется через WATCH/MULTI: конкурирующая
// запись обрывает транзакцию, и CAS повторяется заново.
// Состояние переживает рестарт процесса.
type RedisLedger struct {
	client *redis.Client
	prefix string
}

// NewRedisLedger создаёт RedisLedger.
func NewRedisLedger(client *redis.Client) *RedisLedger {
	return &RedisLedger{client: client, prefix: "conductor:alloc:"}
}

func (l *RedisLedger) key(allocationID string) string {
	return l.prefix + allocationID
}

// Put сохраняет новое выделение.
func (l *RedisLedger) Put(ctx context.Context, alloc *domain.ResourceAllocation) error {
	data, err := json.Marshal(alloc)
	if err != nil {
		return fmt.Errorf("marshal allocation: %w", err)
	}

	ok, err := l.client.SetNX(ctx, l.key(alloc.AllocationID), data, 0).Result()
	if err != nil {
		return fmt.Errorf("redis setnx: %w", err)
	}
	if !ok {
		return ErrAllocationExists
	}
	return nil
}

// Get возвращает выделение по id.
func (l *RedisLedger) Get(ctx context.Context, allocationID string) (*domain.ResourceAllocation, error) {
	raw, err := l.client.Get(ctx, l.key(allocationID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrAllocationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var alloc domain.ResourceAllocation
	if err := json.Unmarshal(raw, &alloc); err != nil {
		return nil, fmt.Errorf("unmarshal allocation %s: %w", allocationID, err)
	}
	return &alloc, nil
}

// CompareAndSwapStatus меняет статус через WATCH-транзакцию.
func (l *RedisLedger) CompareAndSwapStatus(ctx context.Context, allocationID string,
	from []domain.AllocationStatus, to domain.AllocationStatus) (*domain.ResourceAllocation, error) {

	key := l.key(allocationID)
	var result *domain.ResourceAllocation
	var swapErr error

	txn := func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			swapErr = ErrAllocationNotFound
			return nil
		}
		if err != nil {
			return fmt.Errorf("redis get: %w", err)
		}

		var alloc domain.ResourceAllocation
		if err := json.Unmarshal(raw, &alloc); err != nil {
			return fmt.Errorf("unmarshal allocation %s: %w", allocationID, err)
		}

		if !statusIn(alloc.Status, from) {
			result = &alloc
			swapErr = ErrStatusConflict
			return nil
		}

		alloc.Status = to
		data, err := json.Marshal(&alloc)
		if err != nil {
			return fmt.Errorf("marshal allocation: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			return nil
		})
		if err != nil {
			return err
		}
		result = &alloc
		return nil
	}

	for i := 0; i < casRetries; i++ {
		result, swapErr = nil, nil
		err := l.client.Watch(ctx, txn, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return result, swapErr
	}
	return nil, fmt.Errorf("cas on allocation %s: too many conflicts", allocationID)
}

// List возвращает все выделения через SCAN по префиксу.
func (l *RedisLedger) List(ctx context.Context) ([]*domain.ResourceAllocation, error) {
	var out []*domain.ResourceAllocation

	iter := l.client.Scan(ctx, 0, l.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		raw, err := l.client.Get(ctx, iter.Val()).Bytes()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("redis get %s: %w", iter.Val(), err)
		}

		var alloc domain.ResourceAllocation
		if err := json.Unmarshal(raw, &alloc); err != nil {
			return nil, fmt.Errorf("unmarshal allocation: %w", err)
		}
		out = append(out, &alloc)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("redis scan: %w", err)
	}
	return out, nil
}

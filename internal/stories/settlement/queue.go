package settlement

import (
	"context"
	"sync"

	"channel-subs-bot/internal/metrics"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// FailedQueue очередь оплат, ждущих повторной записи в реестр. Рабочая копия в памяти,
// каждая запись дублируется в store и удаляется оттуда только после применения.
// Без store очередь живёт только в памяти процесса.
type FailedQueue struct {
	mu    sync.Mutex
	items []FailedSettlement
	store FailedStore
}

func NewFailedQueue(store FailedStore) *FailedQueue {
	return &FailedQueue{store: store}
}

// Load поднимает сохранённые записи после рестарта. Записи, уже лежащие в памяти, не дублируются.
func (q *FailedQueue) Load(ctx context.Context) (int, error) {
	if q.store == nil {
		return 0, nil
	}

	stored, err := q.store.ListFailedSettlements(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "load failed settlements")
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	known := make(map[uuid.UUID]struct{}, len(q.items))
	for _, item := range q.items {
		known[item.ID] = struct{}{}
	}

	var loaded int
	for _, item := range stored {
		if _, ok := known[item.ID]; ok {
			continue
		}
		q.items = append(q.items, item)
		loaded++
	}
	metrics.FailedSettlementsQueued.Set(float64(len(q.items)))
	return loaded, nil
}

// Push ставит запись в очередь. Ошибка store не теряет запись: она остаётся в памяти,
// и следующий Push после неудачного повтора сохранит её снова.
func (q *FailedQueue) Push(ctx context.Context, item FailedSettlement) error {
	q.mu.Lock()
	q.items = append(q.items, item)
	metrics.FailedSettlementsQueued.Set(float64(len(q.items)))
	q.mu.Unlock()

	if q.store == nil {
		return nil
	}
	if err := q.store.SaveFailedSettlement(ctx, item); err != nil {
		return errors.Wrapf(err, "persist failed settlement %s", item.ID)
	}
	return nil
}

// Drain забирает все элементы из памяти. В store они остаются до Done.
func (q *FailedQueue) Drain() []FailedSettlement {
	q.mu.Lock()
	defer q.mu.Unlock()

	items := q.items
	q.items = nil
	metrics.FailedSettlementsQueued.Set(0)
	return items
}

// Done удаляет применённую запись из store.
func (q *FailedQueue) Done(ctx context.Context, id uuid.UUID) error {
	if q.store == nil {
		return nil
	}
	if err := q.store.DeleteFailedSettlement(ctx, id); err != nil {
		return errors.Wrapf(err, "delete failed settlement %s", id)
	}
	return nil
}

func (q *FailedQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return len(q.items)
}

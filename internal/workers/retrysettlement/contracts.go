package retrysettlement

import "context"

type (
	// SettlementService повторно применяет оплаты из очереди
	SettlementService interface {
		RetryFailed(ctx context.Context) (applied, requeued int)
		Pending() int
	}
)

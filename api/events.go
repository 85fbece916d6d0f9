package api

import (
	"context"

	"github.com/asaidimu/go-funnel/core/persistence"
	"go.uber.org/zap"
)

var watchedEvents = []persistence.PersistenceEventType{
	persistence.DocumentCreateFailed,
	persistence.DocumentDeleteFailed,
	persistence.TransactionSuccess,
	persistence.TransactionFailed,
	persistence.CollectionCreateSuccess,
}

// watchStore counts and logs persistence events. It returns the
// subscription ids.
func watchStore(p persistence.PersistenceInterface, m *Metrics, logger *zap.Logger) []string {
	label := "api"
	ids := make([]string, 0, len(watchedEvents))
	for _, event := range watchedEvents {
		ids = append(ids, p.RegisterSubscription(persistence.RegisterSubscriptionOptions{
			Event: event,
			Label: &label,
			Callback: func(ctx context.Context, e persistence.PersistenceEvent) error {
				m.storeEvents.WithLabelValues(string(e.Type)).Inc()
				fields := []zap.Field{zap.String("event", string(e.Type)), zap.String("operation", e.Operation)}
				if e.Collection != nil {
					fields = append(fields, zap.String("collection", *e.Collection))
				}
				if e.Duration != nil {
					fields = append(fields, zap.Int64("duration_ms", *e.Duration))
				}
				if e.Error != nil {
					logger.Warn("Store operation failed", append(fields, zap.String("error", *e.Error))...)
					return nil
				}
				logger.Debug("Store event", fields...)
				return nil
			},
		}))
	}
	return ids
}

// Package events provides the default lifecycle event sink: a
// structured log line per committed mutation.
package events

import (
	"context"

	"go.uber.org/zap"

	"github.com/smallbiznis/billorder/internal/bill/domain"
)

type logPublisher struct {
	log *zap.Logger
}

// NewLogPublisher emits every lifecycle event as a structured log
// entry. It decouples audit output from the lifecycle service; callers
// wanting a different sink provide their own domain.Publisher.
func NewLogPublisher(log *zap.Logger) domain.Publisher {
	return &logPublisher{log: log.Named("bill.events")}
}

func (p *logPublisher) Publish(_ context.Context, event domain.Event) {
	p.log.Info(event.Action,
		zap.String("bill_id", event.BillID),
		zap.String("bill_number", event.BillNumber),
		zap.Any("metadata", event.Metadata),
	)
}

package core

import (
	"context"

	"booktrack/pkg/models"
)

// Notifiers fans one notification out to every delivery channel
type Notifiers []Notifier

func (ns Notifiers) Notify(ctx context.Context, n models.Notification) {
	for _, notifier := range ns {
		if notifier != nil {
			notifier.Notify(ctx, n)
		}
	}
}

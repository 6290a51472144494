package engine

import (
	"context"

	"github.com/HolyFlex-tecjh/Axion.github.io-sub004/automod/event"
)

// Interface for a type that can handle sending notifications
type Notifier interface {
	SendDecision(ctx context.Context, msg *event.Message, d *Decision) error
}

package toxicity

import (
	"context"
)

// Scorer rates text toxicity in [0,1]. Implementations must honor context cancellation; the filter engine bounds each call with a timeout.
type Scorer interface {
	Score(ctx context.Context, text string) (float64, error)
}

type ScorerFunc func(ctx context.Context, text string) (float64, error)

func (f ScorerFunc) Score(ctx context.Context, text string) (float64, error) {
	return f(ctx, text)
}

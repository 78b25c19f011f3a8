package matcher

import (
	"inr-trade-matcher/internal/interfaces"
)

func New(opts Options) interfaces.Matcher {
	return newEngine(opts)
}

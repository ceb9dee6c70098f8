// Package proposal turns a computed estimate into customer-facing proposal
// text through a third-party text-generation API.
package proposal

import (
	"context"
	"errors"

	"github.com/Simplici0/slabquote/internal/estimate"
)

// ErrDisabled is returned when no provider is configured.
var ErrDisabled = errors.New("proposal generation disabled")

// Generator produces proposal text for an estimate.
type Generator interface {
	Generate(ctx context.Context, est estimate.Result, clientName string) (string, error)
}

// Disabled is the Generator used when no provider is configured.
type Disabled struct{}

// Generate always fails with ErrDisabled.
func (Disabled) Generate(context.Context, estimate.Result, string) (string, error) {
	return "", ErrDisabled
}

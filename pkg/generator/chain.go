package generator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aretw0/notecap/pkg/core"
)

var errEmpty = errors.New("empty content")

// Chain tries each generator in order and returns the first success.
type Chain []core.Generator

// Generate implements core.Generator.
func (c Chain) Generate(ctx context.Context, content string) (core.Suggestion, error) {
	if len(c) == 0 {
		return core.Suggestion{}, &core.GeneratorError{Generator: "chain", Err: errors.New("no generators")}
	}
	var errs []error
	for _, g := range c {
		s, err := g.Generate(ctx, content)
		if err == nil {
			return s, nil
		}
		errs = append(errs, err)
		if ctx.Err() != nil {
			break
		}
	}
	return core.Suggestion{}, &core.GeneratorError{Generator: "chain", Err: errors.Join(errs...)}
}

// WithTimeout bounds every call to g.
func WithTimeout(g core.Generator, d time.Duration) core.Generator {
	if d <= 0 {
		return g
	}
	return core.GeneratorFunc(func(ctx context.Context, content string) (core.Suggestion, error) {
		ctx, cancel := context.WithTimeout(ctx, d)
		defer cancel()
		s, err := g.Generate(ctx, content)
		if err != nil && ctx.Err() != nil {
			return core.Suggestion{}, &core.GeneratorError{Generator: "timeout", Err: fmt.Errorf("after %s: %w", d, err)}
		}
		return s, err
	})
}

// Failing is a generator that always fails, for offline setups.
func Failing(err error) core.Generator {
	return core.GeneratorFunc(func(context.Context, string) (core.Suggestion, error) {
		return core.Suggestion{}, &core.GeneratorError{Generator: "failing", Err: err}
	})
}

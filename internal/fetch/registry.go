package fetch

import (
	"fmt"
	"slices"

	"github.com/drewfead/vo-watcher/internal"
)

type Registry interface {
	GetStrategy(name string) (internal.FetchStrategy, error)
	Names() []string
}

type StrategyMiddleware func(internal.FetchStrategy) internal.FetchStrategy

type RegistryOption func(r *registry)

func NewRegistry(opts ...RegistryOption) Registry {
	r := &registry{
		strategies: make(map[string]internal.FetchStrategy),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// WithStrategy registers strategy under name, wrapped by middleware in order.
func WithStrategy(name string, strategy internal.FetchStrategy, middleware ...StrategyMiddleware) RegistryOption {
	return func(r *registry) {
		for _, m := range middleware {
			strategy = m(strategy)
		}
		r.strategies[name] = strategy
	}
}

type registry struct {
	strategies map[string]internal.FetchStrategy
}

func (r *registry) GetStrategy(name string) (internal.FetchStrategy, error) {
	strategy, ok := r.strategies[name]
	if !ok || strategy == nil {
		return nil, fmt.Errorf("%w: %s", ErrStrategyNotFound, name)
	}
	return strategy, nil
}

func (r *registry) Names() []string {
	names := make([]string, 0, len(r.strategies))
	for name := range r.strategies {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

package providers

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"
)

// Registry maps lowercase provider codes to adapters. It is populated once at
// construction and is read-only afterwards, so lookups need no locking.
type Registry struct {
	providers map[string]Provider
	logger    *slog.Logger
}

// NewRegistry creates a registry holding the given providers. A later provider
// with the same code replaces an earlier one.
func NewRegistry(logger *slog.Logger, providers ...Provider) *Registry {
	if logger == nil {
		logger = slog.Default()
	}

	r := &Registry{
		providers: make(map[string]Provider, len(providers)),
		logger:    logger,
	}

	for _, p := range providers {
		if p == nil {
			continue
		}
		code := strings.ToLower(p.Name())
		if _, exists := r.providers[code]; exists {
			logger.Warn("provider registered twice, keeping last",
				slog.String("provider", code),
			)
		}
		r.providers[code] = p

		_, services := p.(ServiceProvider)
		logger.Info("registered provider",
			slog.String("provider", code),
			slog.String("display_name", p.DisplayName()),
			slog.Bool("supports_services", services),
		)
	}

	return r
}

// Get returns the provider registered under code (case-insensitive)
func (r *Registry) Get(code string) (Provider, bool) {
	p, ok := r.providers[strings.ToLower(strings.TrimSpace(code))]
	return p, ok
}

// List returns all registered provider codes in sorted order
func (r *Registry) List() []string {
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// HealthCheck runs health checks on all providers that support them
func (r *Registry) HealthCheck(ctx context.Context) map[string]error {
	results := make(map[string]error)
	var wg sync.WaitGroup
	var mu sync.Mutex

	for name, provider := range r.providers {
		checker, ok := provider.(HealthChecker)
		if !ok {
			continue
		}

		wg.Add(1)
		go func(n string, c HealthChecker) {
			defer wg.Done()
			err := c.HealthCheck(ctx)
			mu.Lock()
			results[n] = err
			mu.Unlock()

			if err != nil {
				r.logger.Error("provider health check failed",
					slog.String("provider", n),
					slog.String("error", err.Error()),
				)
			} else {
				r.logger.Debug("provider health check passed",
					slog.String("provider", n),
				)
			}
		}(name, checker)
	}

	wg.Wait()
	return results
}

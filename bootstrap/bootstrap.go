// Package bootstrap runs the gateway's startup sequence as a list of
// priority-ordered hooks — config, venue adapter, gateway core, metrics,
// reporting HTTP — each free to depend on data an earlier hook placed
// into the shared Context.
package bootstrap

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Priority buckets, lowest runs first.
const (
	PriorityInfrastructure = 10  // config, logging
	PriorityCore           = 50  // venue adapter, gateway
	PriorityBusiness       = 100 // order commands, strategy wiring
	PriorityBackground     = 200 // reporting HTTP, metrics server
)

// ErrorPolicy controls what Run does when a hook returns an error.
type ErrorPolicy int

const (
	// FailFast stops the whole sequence at the first error (default).
	FailFast ErrorPolicy = iota
	// ContinueOnError runs every hook regardless, collecting errors.
	ContinueOnError
	// WarnOnError logs the error and continues, discarding it.
	WarnOnError
)

var (
	hooks   []Hook
	hooksMu sync.Mutex
)

// Register adds a hook at the given priority. Returns a HookBuilder so
// callers can chain .When(...)/.OnError(...) immediately.
func Register(name string, priority int, fn func(*Context) error) *HookBuilder {
	hooksMu.Lock()
	defer hooksMu.Unlock()

	hooks = append(hooks, Hook{
		Name:        name,
		Priority:    priority,
		Func:        fn,
		ErrorPolicy: FailFast,
	})
	return &HookBuilder{hook: &hooks[len(hooks)-1]}
}

// Run executes every registered hook with FailFast as the default policy.
func Run(ctx *Context) error {
	return RunWithPolicy(ctx, FailFast)
}

// RunWithPolicy executes every registered hook in priority order,
// falling back to defaultPolicy for hooks that didn't set their own via
// HookBuilder.OnError.
func RunWithPolicy(ctx *Context, defaultPolicy ErrorPolicy) error {
	hooksMu.Lock()
	hooksCopy := make([]Hook, len(hooks))
	copy(hooksCopy, hooks)
	hooksMu.Unlock()

	if len(hooksCopy) == 0 {
		log.Warn().Str("component", "bootstrap").Msg("no hooks registered")
		return nil
	}

	sort.Slice(hooksCopy, func(i, j int) bool { return hooksCopy[i].Priority < hooksCopy[j].Priority })

	start := time.Now()
	var errs []error
	succeeded, skipped := 0, 0

	for i, hook := range hooksCopy {
		if hook.Enabled != nil && !hook.Enabled(ctx) {
			log.Info().Str("component", "bootstrap").Str("hook", hook.Name).
				Int("step", i+1).Int("total", len(hooksCopy)).Msg("skipped, condition not met")
			skipped++
			continue
		}

		hookStart := time.Now()
		err := hook.Func(ctx)
		elapsed := time.Since(hookStart)

		if err != nil {
			wrapped := fmt.Errorf("%s: %w", hook.Name, err)
			policy := hook.ErrorPolicy
			if policy == FailFast && defaultPolicy != FailFast {
				policy = defaultPolicy
			}
			switch policy {
			case FailFast:
				log.Error().Str("component", "bootstrap").Str("hook", hook.Name).
					Dur("elapsed", elapsed).Err(err).Msg("hook failed, aborting")
				return wrapped
			case ContinueOnError:
				log.Error().Str("component", "bootstrap").Str("hook", hook.Name).
					Dur("elapsed", elapsed).Err(err).Msg("hook failed, continuing")
				errs = append(errs, wrapped)
			case WarnOnError:
				log.Warn().Str("component", "bootstrap").Str("hook", hook.Name).
					Dur("elapsed", elapsed).Err(err).Msg("hook failed, ignoring")
			}
			continue
		}

		log.Info().Str("component", "bootstrap").Str("hook", hook.Name).
			Dur("elapsed", elapsed).Msg("hook completed")
		succeeded++
	}

	log.Info().Str("component", "bootstrap").
		Int("succeeded", succeeded).Int("skipped", skipped).Int("failed", len(errs)).
		Dur("total", time.Since(start)).Msg("bootstrap complete")

	if len(errs) > 0 {
		return fmt.Errorf("bootstrap: %d hooks failed: %v", len(errs), errs)
	}
	return nil
}

// GetRegistered returns a snapshot of every registered hook, for tests
// and diagnostics.
func GetRegistered() []Hook {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	out := make([]Hook, len(hooks))
	copy(out, hooks)
	return out
}

// Clear removes every registered hook. Test-only.
func Clear() {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	hooks = nil
}

// Count returns how many hooks are currently registered.
func Count() int {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	return len(hooks)
}

package llm

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/samber/lo"
)

const (
	// DefaultRetries is the number of extra attempts after the first try of
	// the primary step.
	DefaultRetries = 1
	// DefaultRetryDelay spaces retry attempts of the primary step.
	DefaultRetryDelay = 1000 * time.Millisecond
	// FallbackDelay is the fixed spacing for fallback steps, independent of
	// the configured primary delay.
	FallbackDelay = 1500 * time.Millisecond
)

// Config store keys consumed by plan building and primary resolution.
const (
	KeyDefaultProvider = "defaultProvider"
	KeyDefaultModel    = "defaultModel"
	KeyPlanRetries     = "planRetries"
	KeyPlanRetryMs     = "planRetryMs"
	KeyPlanFallbacks   = "planFallbacks"
)

// ConfigGetter is the read contract the plan builder needs from the config
// store. Values are persisted strings; malformed values are tolerated here
// and replaced by defaults (write-time validation lives with the store).
type ConfigGetter interface {
	Get(key string) (string, bool)
}

// PlanOverrides is user-configured plan tuning. Nil fields mean "absent or
// malformed, use the default". Fallbacks distinguishes an explicitly empty
// list (no fallback at all) from an absent one (hardcoded defaults).
type PlanOverrides struct {
	Retries    *int
	RetryDelay *time.Duration
	Fallbacks  []ProviderModel
}

// PlanStep binds one invocation target to its attempt budget and the delay
// between attempts.
type PlanStep struct {
	Target   ProviderModel
	Attempts int
	Delay    time.Duration
}

// Plan is the ordered, immutable execution strategy for one generation
// request: the primary step first, then fallbacks. Consumed left-to-right,
// stopping at the first step that succeeds. A plan always has at least one
// step.
type Plan struct {
	Steps []PlanStep
}

// OverridesFromStore reads plan tuning from the config store. Values that do
// not parse (non-numeric retries, negative delays, malformed fallback JSON)
// are treated as absent rather than failing the caller.
func OverridesFromStore(store ConfigGetter) PlanOverrides {
	var ov PlanOverrides
	if store == nil {
		return ov
	}

	if v, ok := store.Get(KeyPlanRetries); ok {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			ov.Retries = &n
		}
	}
	if v, ok := store.Get(KeyPlanRetryMs); ok {
		if ms, err := strconv.Atoi(v); err == nil && ms >= 0 {
			d := time.Duration(ms) * time.Millisecond
			ov.RetryDelay = &d
		}
	}
	if v, ok := store.Get(KeyPlanFallbacks); ok {
		var pairs []ProviderModel
		if err := json.Unmarshal([]byte(v), &pairs); err == nil {
			if pairs == nil {
				pairs = []ProviderModel{}
			}
			ov.Fallbacks = pairs
		}
	}
	return ov
}

// BuildPlan produces the execution plan for a primary target. It never fails:
// malformed overrides already surface as nil fields and default here.
//
// The primary step runs retries+1 times ("retries" counts attempts after the
// first try). Each fallback pair becomes a single-attempt step with a fixed
// delay, in supplied order, with self-fallbacks (pairs on the primary's
// provider) removed.
func BuildPlan(primary ProviderModel, ov PlanOverrides) Plan {
	retries := DefaultRetries
	if ov.Retries != nil {
		retries = *ov.Retries
	}
	delay := DefaultRetryDelay
	if ov.RetryDelay != nil {
		delay = *ov.RetryDelay
	}

	fallbacks := ov.Fallbacks
	if fallbacks == nil {
		fallbacks = DefaultFallbacks(primary.Provider)
	}
	fallbacks = lo.Filter(fallbacks, func(pm ProviderModel, _ int) bool {
		return pm.Provider != primary.Provider
	})

	steps := make([]PlanStep, 0, 1+len(fallbacks))
	steps = append(steps, PlanStep{
		Target:   primary,
		Attempts: retries + 1,
		Delay:    delay,
	})
	for _, fb := range fallbacks {
		steps = append(steps, PlanStep{
			Target:   fb,
			Attempts: 1,
			Delay:    FallbackDelay,
		})
	}
	return Plan{Steps: steps}
}

// ResolvePrimary picks the primary invocation target: CLI flags beat
// configured defaults beat the catalog default. When only a provider is
// named, its catalog default model is used.
func ResolvePrimary(cliProvider, cliModel string, store ConfigGetter) ProviderModel {
	target := DefaultTarget()

	if store != nil {
		if v, ok := store.Get(KeyDefaultProvider); ok && v != "" {
			if p, err := GetProvider(v); err == nil {
				target = ProviderModel{Provider: p.ID, Model: p.DefaultModel}
			}
		}
		if v, ok := store.Get(KeyDefaultModel); ok && v != "" {
			target.Model = v
		}
	}

	if cliProvider != "" {
		target.Provider = cliProvider
		if p, err := GetProvider(cliProvider); err == nil && cliModel == "" {
			target.Model = p.DefaultModel
		}
	}
	if cliModel != "" {
		target.Model = cliModel
	}
	return target
}

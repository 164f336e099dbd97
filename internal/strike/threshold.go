package strike

// MinimumOverride is the floor applied to positive configured overrides.
const MinimumOverride = 3

// EffectiveThreshold resolves the strike threshold for one category.
//
// The most specific configured override wins: instance, then service type,
// then the global default. An override <= 0 disables removal; a positive
// override is raised to MinimumOverride. A global default <= 0 also disables
// removal. The result is 0 when removal is disabled.
func EffectiveThreshold(global int, service, instance *int) int {
	override := instance
	if override == nil {
		override = service
	}
	if override != nil {
		switch {
		case *override <= 0:
			return 0
		case *override < MinimumOverride:
			return MinimumOverride
		default:
			return *override
		}
	}
	if global <= 0 {
		return 0
	}
	return global
}

// Reached reports whether count triggers removal under threshold.
func Reached(count, threshold int) bool {
	return threshold > 0 && count >= threshold
}

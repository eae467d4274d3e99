package memtypes

import "math"

// protectionCriticalMultiplier represents "never forgotten" as +Inf so
// effective_forgetting_time = base_time * multiplier naturally becomes
// infinite for Critical-protected entries, per §4.9.
var protectionCriticalMultiplier = math.Inf(1)

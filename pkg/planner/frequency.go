package planner

import (
	"time"

	"routecore/pkg/domain"
)

// rollingTargetVisits is each segment's target visit count over a rolling
// 4-week window (spec.md §4.7: A=2.5/week, B=1/week, C=0.5/week).
var rollingTargetVisits = map[domain.ClientSegment]int{
	domain.SegmentA: 10, // 2.5 * 4
	domain.SegmentB: 4,  // 1 * 4
	domain.SegmentC: 2,  // 0.5 * 4
}

// decomposeFrequency picks the concrete week-days a client must be visited
// on, given its segment, the target week's ISO week number, and its visit
// count over the trailing 3 weeks (the rolling window's other weeks).
//
// Category A alternates 2-visit and 3-visit weeks so the rolling 4-week
// mean tracks 2.5/week rather than rounding within a single week (§9 open
// question). Category B defaults to a single Monday visit. Category C
// alternates Monday on even ISO weeks, giving a long-run mean of 0.5/week.
func decomposeFrequency(segment domain.ClientSegment, isoWeek int, priorVisitsIn3Weeks int) []time.Weekday {
	switch segment {
	case domain.SegmentA:
		return decomposeSegmentA(priorVisitsIn3Weeks)
	case domain.SegmentB:
		return []time.Weekday{time.Monday}
	case domain.SegmentC:
		if isoWeek%2 == 0 {
			return []time.Weekday{time.Monday}
		}
		return nil
	default:
		return nil
	}
}

// decomposeSegmentA computes this week's needed visit count so the rolling
// 4-week total tracks rollingTargetVisits[SegmentA], clamped to the 2-or-3
// visit range spec.md §4.7 describes, then maps that count onto concrete
// week-days.
func decomposeSegmentA(priorVisitsIn3Weeks int) []time.Weekday {
	needed := rollingTargetVisits[domain.SegmentA] - priorVisitsIn3Weeks
	if needed < 2 {
		needed = 2
	}
	if needed > 3 {
		needed = 3
	}
	if needed == 3 {
		return []time.Weekday{time.Monday, time.Wednesday, time.Friday}
	}
	return []time.Weekday{time.Monday, time.Wednesday}
}

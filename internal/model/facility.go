package model

import "time"

// Facility represents a bookable physical resource such as a meeting
// room or lab.  Facilities are created by an administrative collaborator
// and are never deleted; availability is controlled through the IsActive
// flag and blackout ranges.
//
// Fields:
//  ID        – primary key identifier.
//  Name      – display name shown in conflict summaries and events.
//  Capacity  – maximum participant count (positive).
//  IsActive  – whether new reservations may be admitted.
//  Blackouts – inclusive date ranges during which no reservation window
//              may fall.
//  CreatedAt – creation timestamp.
//  UpdatedAt – last update timestamp.
type Facility struct {
	ID        uint64          // facilities.id
	Name      string          // facilities.name
	Capacity  uint32          // facilities.capacity
	IsActive  bool            // facilities.is_active
	Blackouts []BlackoutRange // facility_blackouts rows
	CreatedAt time.Time       // facilities.created_at
	UpdatedAt time.Time       // facilities.updated_at
}

// BlackoutRange is an inclusive range of calendar days during which a
// facility accepts no reservations.  Both bounds are dates at midnight
// UTC; the range covers every day from StartsOn through EndsOn.
type BlackoutRange struct {
	ID       uint64    // facility_blackouts.id
	StartsOn time.Time // facility_blackouts.starts_on
	EndsOn   time.Time // facility_blackouts.ends_on
	Reason   string    // facility_blackouts.reason
}

// Covers reports whether any calendar day touched by the half-open
// window [start, end) falls inside the blackout range.  Comparison is
// done at day granularity in UTC.
func (b BlackoutRange) Covers(start, end time.Time) bool {
	firstDay := start.UTC().Truncate(24 * time.Hour)
	// end is exclusive, so a window ending exactly at midnight does not
	// touch that day.
	lastDay := end.UTC().Add(-time.Nanosecond).Truncate(24 * time.Hour)
	bStart := b.StartsOn.UTC().Truncate(24 * time.Hour)
	bEnd := b.EndsOn.UTC().Truncate(24 * time.Hour)
	return !lastDay.Before(bStart) && !firstDay.After(bEnd)
}

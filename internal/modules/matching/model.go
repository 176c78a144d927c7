// README: Matching candidates and ranked results.
package matching

import "kirana/internal/types"

// Candidate is a driver as seen by the matcher. Position is nil until the
// driver's first location report.
type Candidate struct {
	DriverID    types.ID
	Online      bool
	Position    *types.Point
	DeviceToken string
}

type Ranked struct {
	Candidate
	DistanceKm float64
}

// Package spoof implements the tap's physics and consistency heuristics
// that flag likely-spoofed Remote-ID broadcasts, per spec.md §4.E. Its
// weighted-flag, threshold-check shape is grounded on the teacher's
// rollback.RollbackManager.shouldRollback/getRollbackReason pattern,
// generalized from a single boolean rollback decision to an accumulating
// set of named flags with per-flag weights.
package spoof

import (
	"math"

	"wifitap/internal/types"
)

// Flag names a spoof-detection heuristic, carried verbatim onto
// UavState.SpoofFlags and the UAV report's spoof_flags field.
type Flag string

const (
	FlagTeleportation      Flag = "teleportation"
	FlagImpossibleSpeed    Flag = "impossible_speed"
	FlagImpossibleAltitude Flag = "impossible_altitude"
	FlagIdentityChurn      Flag = "identity_churn"
	FlagOperatorTeleport   Flag = "operator_teleport"
	FlagMissingRequired    Flag = "missing_required"
)

// Weights is the trust-score deduction for each flag, per spec.md §4.E.
var Weights = map[Flag]int{
	FlagTeleportation:      50,
	FlagImpossibleSpeed:    30,
	FlagImpossibleAltitude: 20,
	FlagIdentityChurn:      40,
	FlagOperatorTeleport:   20,
	FlagMissingRequired:    10,
}

const (
	teleportDistanceMeters = 1000
	teleportWindowSeconds  = 2
	maxSpeedMS             = 100
	maxAltitudeM           = 10000
	minAltitudeM           = -500
	operatorJumpMeters     = 10000
)

// Detector is a pure function of previous state and a new decoded message,
// producing the set of flags newly raised this update cycle. Flags already
// present on the state persist regardless of what Evaluate returns this
// cycle, per spec.md §4.E ("once spoofed, stays flagged") — the correlator
// is responsible for unioning Evaluate's result into the state's flag set.
type Detector struct{}

// NewDetector returns a spoof Detector. It carries no state of its own.
func NewDetector() *Detector {
	return &Detector{}
}

// Evaluate checks one new RemoteIdMessage against the UavState as it stood
// immediately before this update (i.e. before the correlator's non-null
// overwrite pass), per spec.md §4.D step 7 ("pre- and post-update state").
func (d *Detector) Evaluate(prev *types.UavState, msg types.RemoteIdMessage) []Flag {
	var raised []Flag

	if msg.MessageType == types.ASTMMessageLocation {
		if msg.AltitudeGeodetic != nil &&
			(*msg.AltitudeGeodetic > maxAltitudeM || *msg.AltitudeGeodetic < minAltitudeM) {
			raised = append(raised, FlagImpossibleAltitude)
		}

		if msg.Speed != nil && *msg.Speed > maxSpeedMS {
			raised = append(raised, FlagImpossibleSpeed)
		}

		if msg.OperationalStatus == "Airborne" && (msg.Latitude == nil || msg.Longitude == nil) {
			raised = append(raised, FlagMissingRequired)
		}
	}

	if msg.IDSerial != "" && prev.IDSerial != "" && msg.IDSerial != prev.IDSerial {
		raised = append(raised, FlagIdentityChurn)
	}

	if msg.OperatorLatitude != nil && msg.OperatorLongitude != nil &&
		prev.OperatorLatitude != nil && prev.OperatorLongitude != nil {
		jump := haversineMeters(*prev.OperatorLatitude, *prev.OperatorLongitude, *msg.OperatorLatitude, *msg.OperatorLongitude)
		if jump > operatorJumpMeters {
			raised = append(raised, FlagOperatorTeleport)
		}
	}

	return raised
}

// EvaluateTeleportation checks a new position fix against the tail of the
// UavState's history ring, per the boundary cases in spec.md §8: fixes
// over 1km apart with under 2s between them flag teleportation.
func (d *Detector) EvaluateTeleportation(prev *types.UavState, fix types.PositionFix) bool {
	if len(prev.History) == 0 {
		return false
	}
	tail := prev.History[len(prev.History)-1]

	dt := fix.Timestamp.Sub(tail.Timestamp).Seconds()
	if dt <= 0 || dt >= teleportWindowSeconds {
		return false
	}

	distance := haversineMeters(tail.Latitude, tail.Longitude, fix.Latitude, fix.Longitude)
	return distance > teleportDistanceMeters
}

// haversineMeters computes great-circle distance between two lat/lon
// points in meters.
func haversineMeters(lat1, lon1, lat2, lon2 float64) float64 {
	const earthRadiusM = 6371000.0

	rad := math.Pi / 180
	dLat := (lat2 - lat1) * rad
	dLon := (lon2 - lon1) * rad

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*rad)*math.Cos(lat2*rad)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusM * c
}

// Score computes the trust score for a set of persisted flags: 100 minus
// the sum of each present flag's weight, clamped to 0, per spec.md §4.E
// and the invariant in §8.
func Score(flags map[string]struct{}) int {
	score := 100
	for f := range flags {
		score -= Weights[Flag(f)]
	}
	if score < 0 {
		return 0
	}
	return score
}

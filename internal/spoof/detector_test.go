package spoof

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"wifitap/internal/types"
)

func float64p(v float64) *float64 { return &v }

func TestEvaluate_ImpossibleAltitude(t *testing.T) {
	d := NewDetector()
	prev := &types.UavState{}

	flags := d.Evaluate(prev, types.RemoteIdMessage{
		MessageType:      types.ASTMMessageLocation,
		AltitudeGeodetic: float64p(maxAltitudeM + 1),
	})

	assert.Contains(t, flags, FlagImpossibleAltitude)
}

func TestEvaluate_ImpossibleSpeedBoundary(t *testing.T) {
	d := NewDetector()
	prev := &types.UavState{}

	atLimit := d.Evaluate(prev, types.RemoteIdMessage{
		MessageType: types.ASTMMessageLocation,
		Speed:       float64p(100.0),
	})
	assert.NotContains(t, atLimit, FlagImpossibleSpeed, "exactly at the limit should not flag")

	overLimit := d.Evaluate(prev, types.RemoteIdMessage{
		MessageType: types.ASTMMessageLocation,
		Speed:       float64p(100.01),
	})
	assert.Contains(t, overLimit, FlagImpossibleSpeed)
}

func TestEvaluate_IdentityChurn(t *testing.T) {
	d := NewDetector()
	prev := &types.UavState{IDSerial: "ORIGINAL"}

	flags := d.Evaluate(prev, types.RemoteIdMessage{IDSerial: "DIFFERENT"})
	assert.Contains(t, flags, FlagIdentityChurn)
}

func TestEvaluate_NoIdentityChurnWhenPreviousUnset(t *testing.T) {
	d := NewDetector()
	prev := &types.UavState{}

	flags := d.Evaluate(prev, types.RemoteIdMessage{IDSerial: "FIRSTEVER"})
	assert.NotContains(t, flags, FlagIdentityChurn)
}

func TestEvaluate_MissingRequiredWhenAirborneWithoutPosition(t *testing.T) {
	d := NewDetector()
	prev := &types.UavState{}

	flags := d.Evaluate(prev, types.RemoteIdMessage{
		MessageType:       types.ASTMMessageLocation,
		OperationalStatus: "Airborne",
	})
	assert.Contains(t, flags, FlagMissingRequired)
}

func TestEvaluateTeleportation_BoundaryOnTime(t *testing.T) {
	d := NewDetector()
	now := time.Now()

	prev := &types.UavState{History: []types.PositionFix{
		{Timestamp: now, Latitude: 0.0, Longitude: 0.0},
	}}

	withinWindow := types.PositionFix{Timestamp: now.Add(1900 * time.Millisecond), Latitude: 0.02, Longitude: 0.0}
	assert.True(t, d.EvaluateTeleportation(prev, withinWindow), "1.9s, >1km apart should flag")

	outsideWindow := types.PositionFix{Timestamp: now.Add(2100 * time.Millisecond), Latitude: 0.02, Longitude: 0.0}
	assert.False(t, d.EvaluateTeleportation(prev, outsideWindow), "2.1s should not flag even for the same jump")
}

func TestEvaluateTeleportation_BoundaryOnDistance(t *testing.T) {
	d := NewDetector()
	now := time.Now()

	prev := &types.UavState{History: []types.PositionFix{
		{Timestamp: now, Latitude: 0.0, Longitude: 0.0},
	}}

	// ~0.005 degrees latitude is roughly 555m, under the 1km threshold.
	shortHop := types.PositionFix{Timestamp: now.Add(time.Second), Latitude: 0.005, Longitude: 0.0}
	assert.False(t, d.EvaluateTeleportation(prev, shortHop))
}

func TestScore_ClampsToZero(t *testing.T) {
	flags := map[string]struct{}{
		string(FlagTeleportation): {},
		string(FlagIdentityChurn): {},
		string(FlagImpossibleSpeed): {},
	}
	// 50 + 40 + 30 = 120, should clamp at 0, not go negative.
	assert.Equal(t, 0, Score(flags))
}

func TestScore_NoFlagsIsFullTrust(t *testing.T) {
	assert.Equal(t, 100, Score(map[string]struct{}{}))
}

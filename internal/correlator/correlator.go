// Package correlator owns the per-MAC UavState table: field fusion,
// identifier election, message-type accumulation, and the eviction sweep,
// per spec.md §4.D.
package correlator

import (
	"time"

	"wifitap/internal/spoof"
	"wifitap/internal/types"
)

// Correlator is the single owner of the UavState table, per spec.md §5's
// concurrency model — it is driven exclusively by the processor task and
// needs no internal locking.
type Correlator struct {
	states      map[string]*types.UavState
	spoof       *spoof.Detector
	designation *DesignationLookup
}

// New creates a Correlator with an empty UavState table.
func New(detector *spoof.Detector, designation *DesignationLookup) *Correlator {
	return &Correlator{
		states:      make(map[string]*types.UavState),
		spoof:       detector,
		designation: designation,
	}
}

// Update applies one DetectionEvent to the UavState table per the 8-step
// sequence in spec.md §4.D, returning the resulting report-ready state.
func (c *Correlator) Update(event types.DetectionEvent) *types.UavState {
	state, created := c.locateOrCreate(event.MAC, event.Timestamp)
	state.LastSeen = event.Timestamp
	state.DetectionSource = event.Source

	if event.SSID != "" {
		state.SSID = event.SSID
	}
	if event.RSSI != nil {
		state.LastRSSI = event.RSSI
	}

	if created {
		state.MessageTypesSeen = make(map[int]struct{})
		state.SpoofFlags = make(map[string]struct{})
		state.TrustScore = 100
		state.RawFields = make(map[string]string)
	}

	for k, v := range event.RawFields {
		state.RawFields[k] = v
	}

	for _, msg := range event.Messages {
		prev := &types.UavState{
			IDSerial:          state.IDSerial,
			OperatorLatitude:  state.OperatorLatitude,
			OperatorLongitude: state.OperatorLongitude,
		}

		c.applyMessage(state, msg)
		state.MessageTypesSeen[msg.MessageType] = struct{}{}

		for _, flag := range c.spoof.Evaluate(prev, msg) {
			state.SpoofFlags[string(flag)] = struct{}{}
		}
	}

	if state.Latitude != nil && state.Longitude != nil {
		altitude := 0.0
		if state.AltitudeGeodetic != nil {
			altitude = *state.AltitudeGeodetic
		}
		fix := types.PositionFix{
			Timestamp: event.Timestamp,
			Latitude:  *state.Latitude,
			Longitude: *state.Longitude,
			Altitude:  altitude,
		}
		if c.spoof.EvaluateTeleportation(state, fix) {
			state.SpoofFlags[string(spoof.FlagTeleportation)] = struct{}{}
		}
		appendFixIfNew(state, fix)
	}

	state.Identifier = electIdentifier(state)
	if c.designation != nil {
		state.Designation = c.designation.Resolve(state.IDSerial, state.MAC)
	}
	state.TrustScore = spoof.Score(state.SpoofFlags)

	return state
}

func (c *Correlator) locateOrCreate(mac string, now time.Time) (*types.UavState, bool) {
	if state, ok := c.states[mac]; ok {
		return state, false
	}
	state := &types.UavState{MAC: mac, FirstSeen: now}
	c.states[mac] = state
	return state, true
}

// applyMessage merges one decoded message's fields into state under the
// non-null overwrite rule from spec.md §3: a field set non-null is never
// regressed to null by a later observation carrying a null value.
func (c *Correlator) applyMessage(state *types.UavState, msg types.RemoteIdMessage) {
	setString(&state.IDSerial, msg.IDSerial)
	setString(&state.IDRegistration, msg.IDRegistration)
	setString(&state.IDUTM, msg.IDUTM)
	setString(&state.IDSession, msg.IDSession)
	setString(&state.OperatorID, msg.OperatorID)
	setString(&state.UAType, msg.UAType)
	setString(&state.OperationalStatus, msg.OperationalStatus)
	setString(&state.AuthType, msg.AuthType)
	setString(&state.AuthData, msg.AuthData)
	setString(&state.SelfIDDescription, msg.SelfIDDescription)
	setString(&state.SelfIDType, msg.SelfIDType)
	setString(&state.CategoryEU, msg.CategoryEU)
	setString(&state.ClassEU, msg.ClassEU)

	setFloat(&state.Latitude, msg.Latitude)
	setFloat(&state.Longitude, msg.Longitude)
	setFloat(&state.AltitudeGeodetic, msg.AltitudeGeodetic)
	setFloat(&state.AltitudePressure, msg.AltitudePressure)
	setFloat(&state.Height, msg.Height)
	setFloat(&state.GroundTrack, msg.GroundTrack)
	setFloat(&state.Speed, msg.Speed)
	setFloat(&state.VerticalSpeed, msg.VerticalSpeed)
	setFloat(&state.OperatorLatitude, msg.OperatorLatitude)
	setFloat(&state.OperatorLongitude, msg.OperatorLongitude)
	setFloat(&state.OperatorAltitude, msg.OperatorAltitude)
	setFloat(&state.AccuracyHorizontal, msg.AccuracyHorizontal)
	setFloat(&state.AccuracyVertical, msg.AccuracyVertical)
	setFloat(&state.AccuracyBarometer, msg.AccuracyBarometer)
	setFloat(&state.AccuracySpeed, msg.AccuracySpeed)
	setFloat(&state.AreaRadius, msg.AreaRadius)
	setFloat(&state.AreaCeiling, msg.AreaCeiling)
	setFloat(&state.AreaFloor, msg.AreaFloor)

	setInt(&state.HeightType, msg.HeightType)
	setInt(&state.OperatorLocationType, msg.OperatorLocationType)
	setInt(&state.AreaCount, msg.AreaCount)
}

func setString(dst *string, src string) {
	if src != "" {
		*dst = src
	}
}

func setFloat(dst **float64, src *float64) {
	if src != nil {
		*dst = src
	}
}

func setInt(dst **int, src *int) {
	if src != nil {
		*dst = src
	}
}

// appendFixIfNew appends fix to the history ring iff it differs from the
// tail fix, keeping at most types.HistoryRingSize entries, per spec.md §3.
func appendFixIfNew(state *types.UavState, fix types.PositionFix) {
	if n := len(state.History); n > 0 {
		tail := state.History[n-1]
		if tail.Latitude == fix.Latitude && tail.Longitude == fix.Longitude {
			return
		}
	}

	state.History = append(state.History, fix)
	if len(state.History) > types.HistoryRingSize {
		state.History = state.History[len(state.History)-types.HistoryRingSize:]
	}
}

// EvictStale removes any UavState whose LastSeen is older than timeout,
// per spec.md §3's lifecycle rule and §4.D's eviction sweep. It emits no
// message; staleness handling is the downstream collector's concern.
func (c *Correlator) EvictStale(now time.Time, timeout time.Duration) int {
	evicted := 0
	for mac, state := range c.states {
		if now.Sub(state.LastSeen) > timeout {
			delete(c.states, mac)
			evicted++
		}
	}
	return evicted
}

// Count returns the number of tracked airframes, for heartbeat/debug use.
func (c *Correlator) Count() int {
	return len(c.states)
}

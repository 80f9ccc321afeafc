package correlator

import (
	"sort"
	"time"

	"wifitap/internal/types"
)

// ProtocolVersion is the UAV report / heartbeat schema version, per
// spec.md §6's compatibility rule.
const ProtocolVersion = 1

// BuildReport converts a UavState into the wire document published on the
// "uav" topic, per spec.md §6. Every field is always present, possibly
// null, per the compatibility rule.
func BuildReport(tapUUID string, state *types.UavState) types.UavReport {
	return types.UavReport{
		Type:            "uav_report",
		ProtocolVersion: ProtocolVersion,
		TapUUID:         tapUUID,
		Timestamp:       time.Now().UTC().Format(time.RFC3339),
		MAC:             state.MAC,
		Identifier:      state.Identifier,
		DetectionSource: string(state.DetectionSource),

		Latitude:         state.Latitude,
		Longitude:        state.Longitude,
		AltitudeGeodetic: state.AltitudeGeodetic,
		AltitudePressure: state.AltitudePressure,
		Height:           state.Height,
		HeightType:       state.HeightType,

		GroundTrack:   state.GroundTrack,
		Speed:         state.Speed,
		VerticalSpeed: state.VerticalSpeed,

		IDSerial:          state.IDSerial,
		IDRegistration:    state.IDRegistration,
		IDUTM:             state.IDUTM,
		IDSession:         state.IDSession,
		UAType:            state.UAType,
		OperationalStatus: state.OperationalStatus,

		OperatorLatitude:     state.OperatorLatitude,
		OperatorLongitude:    state.OperatorLongitude,
		OperatorAltitude:     state.OperatorAltitude,
		OperatorID:           state.OperatorID,
		OperatorLocationType: state.OperatorLocationType,

		RSSI: state.LastRSSI,
		SSID: state.SSID,

		AccuracyHorizontal: state.AccuracyHorizontal,
		AccuracyVertical:   state.AccuracyVertical,
		AccuracyBarometer:  state.AccuracyBarometer,
		AccuracySpeed:      state.AccuracySpeed,

		CategoryEU: state.CategoryEU,
		ClassEU:    state.ClassEU,

		AreaCount:   state.AreaCount,
		AreaRadius:  state.AreaRadius,
		AreaCeiling: state.AreaCeiling,
		AreaFloor:   state.AreaFloor,

		SpoofFlags: sortedKeys(state.SpoofFlags),
		TrustScore: state.TrustScore,
		AuthType:   state.AuthType,
		AuthData:   state.AuthData,

		Designation:       state.Designation,
		MessageTypesSeen:  sortedIntKeys(state.MessageTypesSeen),
		SelfIDDescription: state.SelfIDDescription,
		SelfIDType:        state.SelfIDType,
		RawFields:         state.RawFields,
	}
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func sortedIntKeys(m map[int]struct{}) []int {
	out := make([]int, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Ints(out)
	return out
}

package astm

import (
	"encoding/binary"
	"fmt"

	"wifitap/internal/types"
)

// DJIOUI is the organizationally unique identifier DJI uses for its
// proprietary DroneID vendor element, per spec.md §4.C item 2.
var DJIOUI = [3]byte{0x60, 0x60, 0x1f}

// djiFlightPurposeType distinguishes the two DJI DroneID vendor-element layouts
// seen in the field: a flight-purpose record and a board-info record. The
// tap only needs the flight-purpose record for position/identity data.
const djiFlightPurposeType = 0x10

// minDJIPayload is the shortest flight-purpose record this decoder
// recognizes: type byte + serial (16) + lat/lon (8) + height/altitude (8).
const minDJIPayload = 1 + 16 + 4 + 4 + 4 + 4

// DecodeDJI decodes a DJI proprietary DroneID vendor element into the same
// DetectionEvent message shape spec.md §4.C item 2 requires, so the
// correlator does not need to know which wire format produced a
// DetectionEvent.
func DecodeDJI(payload []byte) ([]types.RemoteIdMessage, error) {
	if len(payload) < minDJIPayload {
		return nil, fmt.Errorf("dji: payload too short (%d bytes)", len(payload))
	}
	if payload[0] != djiFlightPurposeType {
		return nil, fmt.Errorf("dji: unsupported record type 0x%02x", payload[0])
	}

	body := payload[1:]
	serial := trimNulls(body[0:16])

	lat := float64(int32(binary.LittleEndian.Uint32(body[16:20]))) * 1e-7
	lon := float64(int32(binary.LittleEndian.Uint32(body[20:24]))) * 1e-7

	altitude := float64(int32(binary.LittleEndian.Uint32(body[24:28]))) * 0.1

	basic := types.RemoteIdMessage{
		MessageType: types.ASTMMessageBasicID,
		IDType:      "1",
		IDSerial:    serial,
	}

	location := types.RemoteIdMessage{
		MessageType:       types.ASTMMessageLocation,
		OperationalStatus: "Airborne",
		Latitude:          &lat,
		Longitude:         &lon,
		AltitudeGeodetic:  &altitude,
	}

	if len(body) >= 32 {
		height := float64(int32(binary.LittleEndian.Uint32(body[28:32]))) * 0.1
		location.Height = &height
	}

	return []types.RemoteIdMessage{basic, location}, nil
}

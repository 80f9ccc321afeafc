// Package astm decodes ASTM F3411 Remote-ID message packs and DJI
// proprietary DroneID vendor elements out of captured 802.11 vendor
// elements, per spec.md §4.C.
package astm

import (
	"encoding/binary"
	"fmt"

	"wifitap/internal/types"
)

// messageRecordLen is the fixed length of one ASTM F3411 message record.
const messageRecordLen = 25

// accuracyMeters maps the ASTM horizontal/vertical accuracy enum to a
// representative meters value, per spec.md §4.C item 1.
var accuracyMeters = map[int]float64{
	0:  -1, // unknown; caller treats negative as null
	1:  10,
	2:  3,
	3:  1,
	4:  0.3,
	5:  0.1,
}

func lookupAccuracy(v int) *float64 {
	m, ok := accuracyMeters[v]
	if !ok || m < 0 {
		return nil
	}
	return &m
}

// speedMeters decodes the ASTM F3411 two-part speed encoding: below 255 the
// raw value is in units of 0.25 m/s, at 255 an extended byte carries 1 m/s
// units offset by 63.75.
func speedMeters(raw, extended byte) float64 {
	if raw < 255 {
		return float64(raw) * 0.25
	}
	return 63.75 + float64(extended)
}

// ErrTooShort is returned when a vendor element is shorter than the
// mandatory header, not a malformed-payload panic.
var ErrTooShort = fmt.Errorf("astm: vendor element too short")

// DecodeMessagePack decodes an ASTM F3411 message pack: a 1-byte header
// (message count, unused here, and the pack's own type/version byte is per
// message) followed by N fixed-length 25-byte message records. Malformed
// records are skipped, never causing the whole pack to fail, per spec.md
// §4.C's "never raise out of the parser" rule.
func DecodeMessagePack(payload []byte) ([]types.RemoteIdMessage, error) {
	if len(payload) < 1 {
		return nil, ErrTooShort
	}

	// First byte: message-pack header (type<<4 | version) when the payload
	// is a single message, or the pack envelope when multiple messages are
	// concatenated. Either way each subsequent messageRecordLen-byte chunk
	// is itself prefixed with its own type<<4|version header byte.
	body := payload[1:]

	var out []types.RemoteIdMessage
	for len(body) >= 1+messageRecordLen {
		header := body[0]
		msgType := int(header >> 4)
		record := body[1 : 1+messageRecordLen]

		msg, err := decodeMessage(msgType, record)
		if err == nil {
			out = append(out, msg)
		}
		body = body[1+messageRecordLen:]
	}

	if len(out) == 0 {
		return nil, fmt.Errorf("astm: no decodable messages in pack")
	}
	return out, nil
}

func decodeMessage(msgType int, record []byte) (types.RemoteIdMessage, error) {
	if len(record) != messageRecordLen {
		return types.RemoteIdMessage{}, ErrTooShort
	}

	msg := types.RemoteIdMessage{MessageType: msgType}

	switch msgType {
	case types.ASTMMessageBasicID:
		decodeBasicID(record, &msg)
	case types.ASTMMessageLocation:
		decodeLocation(record, &msg)
	case types.ASTMMessageAuth:
		decodeAuth(record, &msg)
	case types.ASTMMessageSelfID:
		decodeSelfID(record, &msg)
	case types.ASTMMessageSystem:
		decodeSystem(record, &msg)
	case types.ASTMMessageOperatorID:
		decodeOperatorID(record, &msg)
	default:
		return types.RemoteIdMessage{}, fmt.Errorf("astm: unsupported message type %d", msgType)
	}

	return msg, nil
}

func decodeBasicID(record []byte, msg *types.RemoteIdMessage) {
	idType := int(record[0] >> 4)
	uaType := int(record[0] & 0x0f)
	msg.IDType = fmt.Sprintf("%d", idType)
	msg.UAType = fmt.Sprintf("%d", uaType)

	id := trimNulls(record[1:21])
	switch idType {
	case 1: // serial number (CTA-2063-A)
		msg.IDSerial = id
	case 2: // CAA registration ID
		msg.IDRegistration = id
	case 3: // UTM (ANSI/CTA-2063) assigned UUID
		msg.IDUTM = id
	case 4: // specific session ID, per ASTM F3411 rev 2
		msg.IDSession = id
	default:
		msg.IDSerial = id
	}
}

func decodeLocation(record []byte, msg *types.RemoteIdMessage) {
	statusAndFlags := record[0]
	opStatus := int(statusAndFlags >> 4)
	msg.OperationalStatus = operationalStatusName(opStatus)

	track := float64(record[1])
	msg.GroundTrack = &track

	speed := speedMeters(record[2], record[3])
	msg.Speed = &speed

	vspeedRaw := int8(record[4])
	vspeed := float64(vspeedRaw) * 0.5
	msg.VerticalSpeed = &vspeed

	lat := float64(int32(binary.LittleEndian.Uint32(record[5:9]))) * 1e-7
	lon := float64(int32(binary.LittleEndian.Uint32(record[9:13]))) * 1e-7
	if lat != 0 || lon != 0 {
		msg.Latitude = &lat
		msg.Longitude = &lon
	}

	pressureAlt := decodeAltitude(record[13:15])
	geodeticAlt := decodeAltitude(record[15:17])
	height := decodeAltitude(record[17:19])
	msg.AltitudePressure = &pressureAlt
	msg.AltitudeGeodetic = &geodeticAlt
	msg.Height = &height

	heightType := int(record[19] & 0x01)
	msg.HeightType = &heightType

	horiz := int(record[20] >> 4)
	vert := int(record[20] & 0x0f)
	msg.AccuracyHorizontal = lookupAccuracy(horiz)
	msg.AccuracyVertical = lookupAccuracy(vert)

	baro := int(record[21] >> 4)
	speedAcc := int(record[21] & 0x0f)
	msg.AccuracyBarometer = lookupAccuracy(baro)
	msg.AccuracySpeed = lookupAccuracy(speedAcc)
}

// decodeAltitude converts a 2-byte little-endian altitude field encoded
// with a +1000m bias and 0.5m resolution, per spec.md §4.C item 1.
func decodeAltitude(b []byte) float64 {
	raw := binary.LittleEndian.Uint16(b)
	return float64(raw)*0.5 - 1000
}

func decodeAuth(record []byte, msg *types.RemoteIdMessage) {
	msg.AuthType = fmt.Sprintf("%d", record[0]>>4)
	msg.AuthData = fmt.Sprintf("%x", record[1:])
}

func decodeSelfID(record []byte, msg *types.RemoteIdMessage) {
	msg.SelfIDType = fmt.Sprintf("%d", record[0])
	msg.SelfIDDescription = trimNulls(record[1:])
}

func decodeSystem(record []byte, msg *types.RemoteIdMessage) {
	flags := record[0]
	locationType := int(flags & 0x03)
	msg.OperatorLocationType = &locationType

	lat := float64(int32(binary.LittleEndian.Uint32(record[1:5]))) * 1e-7
	lon := float64(int32(binary.LittleEndian.Uint32(record[5:9]))) * 1e-7
	if lat != 0 || lon != 0 {
		msg.OperatorLatitude = &lat
		msg.OperatorLongitude = &lon
	}

	areaCount := int(binary.LittleEndian.Uint16(record[9:11]))
	msg.AreaCount = &areaCount

	areaRadius := float64(record[11]) * 10
	msg.AreaRadius = &areaRadius

	areaCeiling := decodeAltitude(record[12:14])
	areaFloor := decodeAltitude(record[14:16])
	msg.AreaCeiling = &areaCeiling
	msg.AreaFloor = &areaFloor

	msg.CategoryEU = fmt.Sprintf("%d", record[16]>>4)
	msg.ClassEU = fmt.Sprintf("%d", record[16]&0x0f)

	operatorAlt := decodeAltitude(record[17:19])
	msg.OperatorAltitude = &operatorAlt
}

func decodeOperatorID(record []byte, msg *types.RemoteIdMessage) {
	msg.OperatorID = trimNulls(record[1:21])
}

func operationalStatusName(v int) string {
	switch v {
	case 0:
		return "Undeclared"
	case 1:
		return "Ground"
	case 2:
		return "Airborne"
	case 3:
		return "Emergency"
	case 4:
		return "RemoteIDSystemFailure"
	default:
		return "Undeclared"
	}
}

func trimNulls(b []byte) string {
	end := len(b)
	for end > 0 && (b[end-1] == 0 || b[end-1] == ' ') {
		end--
	}
	return string(b[:end])
}

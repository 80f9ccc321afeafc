package astm

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wifitap/internal/types"
)

func buildLocationRecord(lat, lon float64, altitudeM float64) []byte {
	record := make([]byte, messageRecordLen)
	record[0] = 2 << 4 // Airborne
	record[1] = 10     // track
	record[2] = 40      // speed = 10 m/s
	record[3] = 0
	record[4] = 0 // vertical speed

	binary.LittleEndian.PutUint32(record[5:9], uint32(int32(lat/1e-7)))
	binary.LittleEndian.PutUint32(record[9:13], uint32(int32(lon/1e-7)))

	altRaw := uint16((altitudeM + 1000) / 0.5)
	binary.LittleEndian.PutUint16(record[13:15], altRaw)
	binary.LittleEndian.PutUint16(record[15:17], altRaw)
	binary.LittleEndian.PutUint16(record[17:19], altRaw)

	record[19] = 0
	record[20] = (1 << 4) | 1
	record[21] = (1 << 4) | 1
	return record
}

func wrapPack(header byte, record []byte) []byte {
	payload := make([]byte, 0, 2+len(record))
	payload = append(payload, 0x00) // pack envelope byte, unused by decoder
	payload = append(payload, header)
	payload = append(payload, record...)
	return payload
}

func TestDecodeMessagePack_Location(t *testing.T) {
	record := buildLocationRecord(37.7749, -122.4194, 120.0)
	payload := wrapPack(byte(types.ASTMMessageLocation)<<4, record)

	msgs, err := DecodeMessagePack(payload)
	require.NoError(t, err)
	require.Len(t, msgs, 1)

	msg := msgs[0]
	assert.Equal(t, types.ASTMMessageLocation, msg.MessageType)
	assert.Equal(t, "Airborne", msg.OperationalStatus)
	require.NotNil(t, msg.Latitude)
	require.NotNil(t, msg.Longitude)
	assert.InDelta(t, 37.7749, *msg.Latitude, 1e-5)
	assert.InDelta(t, -122.4194, *msg.Longitude, 1e-5)
	require.NotNil(t, msg.AltitudeGeodetic)
	assert.InDelta(t, 120.0, *msg.AltitudeGeodetic, 0.5)
	require.NotNil(t, msg.Speed)
	assert.InDelta(t, 10.0, *msg.Speed, 0.01)
}

func TestDecodeMessagePack_BasicID(t *testing.T) {
	record := make([]byte, messageRecordLen)
	record[0] = (1 << 4) | 2 // idType=serial, uaType=2
	copy(record[1:21], []byte("SERIAL123456789"))

	payload := wrapPack(byte(types.ASTMMessageBasicID)<<4, record)

	msgs, err := DecodeMessagePack(payload)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "SERIAL123456789", msgs[0].IDSerial)
}

func TestDecodeMessagePack_TooShort(t *testing.T) {
	_, err := DecodeMessagePack(nil)
	assert.ErrorIs(t, err, ErrTooShort)
}

func TestSpeedMeters_ExtendedRange(t *testing.T) {
	assert.InDelta(t, 25.0, speedMeters(100, 0), 0.01)
	assert.InDelta(t, 63.75, speedMeters(255, 0), 0.01)
	assert.InDelta(t, 64.75, speedMeters(255, 1), 0.01)
}

func TestDecodeAltitude_BiasAndResolution(t *testing.T) {
	b := make([]byte, 2)
	binary.LittleEndian.PutUint16(b, 2000) // (2000 * 0.5) - 1000 = 0
	assert.InDelta(t, 0.0, decodeAltitude(b), 0.01)
}

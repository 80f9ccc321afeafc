package astm

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wifitap/internal/types"
)

func buildDJIPayload(serial string, lat, lon, altitude, height float64) []byte {
	body := make([]byte, 1+16+4+4+4+4)
	body[0] = djiFlightPurposeType
	copy(body[1:17], []byte(serial))

	binary.LittleEndian.PutUint32(body[17:21], uint32(int32(lat/1e-7)))
	binary.LittleEndian.PutUint32(body[21:25], uint32(int32(lon/1e-7)))
	binary.LittleEndian.PutUint32(body[25:29], uint32(int32(altitude/0.1)))
	binary.LittleEndian.PutUint32(body[29:33], uint32(int32(height/0.1)))
	return body
}

func TestDecodeDJI(t *testing.T) {
	payload := buildDJIPayload("DJISERIAL0000001", 48.8566, 2.3522, 95.0, 40.0)

	msgs, err := DecodeDJI(payload)
	require.NoError(t, err)
	require.Len(t, msgs, 2)

	basic := msgs[0]
	assert.Equal(t, types.ASTMMessageBasicID, basic.MessageType)
	assert.Equal(t, "DJISERIAL0000001", basic.IDSerial)

	loc := msgs[1]
	assert.Equal(t, types.ASTMMessageLocation, loc.MessageType)
	require.NotNil(t, loc.Latitude)
	assert.InDelta(t, 48.8566, *loc.Latitude, 1e-5)
	require.NotNil(t, loc.AltitudeGeodetic)
	assert.InDelta(t, 95.0, *loc.AltitudeGeodetic, 0.1)
	require.NotNil(t, loc.Height)
	assert.InDelta(t, 40.0, *loc.Height, 0.1)
}

func TestDecodeDJI_WrongRecordType(t *testing.T) {
	payload := buildDJIPayload("X", 0, 0, 0, 0)
	payload[0] = 0x20

	_, err := DecodeDJI(payload)
	assert.Error(t, err)
}

func TestDecodeDJI_TooShort(t *testing.T) {
	_, err := DecodeDJI([]byte{djiFlightPurposeType, 1, 2, 3})
	assert.Error(t, err)
}

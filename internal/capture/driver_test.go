package capture

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEKLine_SkipsIndexMetadataLine(t *testing.T) {
	line := []byte(`{"index":{"_index":"packets-2026-08-06"}}`)

	_, ok := parseEKLine(line, 6)
	assert.False(t, ok)
}

func TestParseEKLine_SkipsMalformedJSON(t *testing.T) {
	_, ok := parseEKLine([]byte(`not json`), 6)
	assert.False(t, ok)
}

func TestParseEKLine_ExtractsFrameFields(t *testing.T) {
	line := []byte(`{
		"layers": {
			"wlan": {
				"wlan_wlan_sa": "AA:BB:CC:DD:EE:FF",
				"wlan_wlan_fc_type_subtype": "8",
				"wlan_wlan_ssid": "TestSSID"
			},
			"radiotap": {
				"radiotap_radiotap_dbm_antsignal": "-55"
			}
		}
	}`)

	record, ok := parseEKLine(line, 6)
	require.True(t, ok)

	assert.Equal(t, "aa:bb:cc:dd:ee:ff", record.SourceMAC)
	assert.Equal(t, 6, record.Channel)
	require.NotNil(t, record.RSSI)
	assert.Equal(t, -55, *record.RSSI)
	assert.Equal(t, "TestSSID", record.Fields["ssid"])
}

func TestParseEKLine_MissingSourceMACSkipped(t *testing.T) {
	line := []byte(`{"layers":{"wlan":{"wlan_wlan_fc_type_subtype":"8"}}}`)

	_, ok := parseEKLine(line, 1)
	assert.False(t, ok)
}

func TestCurrentChannel_ReadsWiredReader(t *testing.T) {
	d := NewDriver("tshark", "wlan0mon", 0, nil, func() int { return 11 })
	assert.Equal(t, 11, d.currentChannel())
}

func TestCurrentChannel_ZeroWithoutReader(t *testing.T) {
	d := NewDriver("tshark", "wlan0mon", 0, nil, nil)
	assert.Equal(t, 0, d.currentChannel())
}

// Package types holds the data model shared across the capture, parsing,
// correlation, and publishing stages of the tap pipeline.
package types

import "time"

// FrameType enumerates the 802.11 management-frame subtypes the capture
// driver and parser care about.
type FrameType int

const (
	FrameTypeBeacon        FrameType = 0x08
	FrameTypeProbeResponse FrameType = 0x05
	FrameTypeAction        FrameType = 0x0d
)

// FrameRecord is one captured management frame, immutable after creation.
type FrameRecord struct {
	CapturedAt time.Time
	FrameType  FrameType
	SourceMAC  string
	Channel    int
	RSSI       *int
	Fields     map[string]string
	VendorData []byte
}

// ASTM F3411 message types, per spec.md §3.
const (
	ASTMMessageBasicID       = 0
	ASTMMessageLocation      = 1
	ASTMMessageAuth          = 2
	ASTMMessageSelfID        = 3
	ASTMMessageSystem        = 4
	ASTMMessageOperatorID    = 5
	ASTMMessagePack          = 0xF
)

// RemoteIdMessage is one decoded ASTM F3411 message from a frame's message
// pack. Not every field is populated for every message type; unset fields
// remain at their zero value (nil for pointers).
type RemoteIdMessage struct {
	MessageType int

	// Basic-ID (type 0)
	IDType         string
	UAType         string
	IDSerial       string
	IDRegistration string
	IDUTM          string
	IDSession      string

	// Location/Vector (type 1)
	OperationalStatus string
	Latitude          *float64
	Longitude         *float64
	AltitudeGeodetic  *float64
	AltitudePressure  *float64
	Height            *float64
	HeightType        *int
	GroundTrack       *float64
	Speed             *float64
	VerticalSpeed     *float64
	AccuracyHorizontal *float64
	AccuracyVertical   *float64
	AccuracyBarometer  *float64
	AccuracySpeed      *float64

	// Authentication (type 2)
	AuthType string
	AuthData string

	// Self-ID (type 3)
	SelfIDDescription string
	SelfIDType        string

	// System (type 4)
	OperatorLatitude     *float64
	OperatorLongitude    *float64
	OperatorAltitude     *float64
	OperatorLocationType *int
	CategoryEU           string
	ClassEU              string
	AreaCount            *int
	AreaRadius           *float64
	AreaCeiling          *float64
	AreaFloor            *float64

	// Operator-ID (type 5)
	OperatorID string
}

// DetectionSource names which decoding path produced a DetectionEvent.
type DetectionSource string

const (
	DetectionSourceRemoteIDWiFi       DetectionSource = "RemoteIdWiFi"
	DetectionSourceDJIProprietary     DetectionSource = "DJIProprietaryDroneID"
	DetectionSourceWiFiFingerprint    DetectionSource = "WiFiFingerprint"
)

// DetectionEvent is the parser's output: a parsed payload plus source
// attribution, ready for the correlator.
type DetectionEvent struct {
	MAC       string
	Channel   int
	RSSI      *int
	SSID      string
	Source    DetectionSource
	Messages  []RemoteIdMessage
	Timestamp time.Time
	RawFields map[string]string
}

// PositionFix is one (timestamp, lat, lon, alt) sample retained in a
// UavState's position history ring for the spoof detector.
type PositionFix struct {
	Timestamp time.Time
	Latitude  float64
	Longitude float64
	Altitude  float64
}

// HistoryRingSize bounds the number of distinct position fixes retained per
// UavState, per spec.md §3 ("at most N >= 5 most-recent distinct fixes").
const HistoryRingSize = 5

// UavState is the long-lived per-airframe record keyed by source MAC.
type UavState struct {
	MAC       string
	FirstSeen time.Time
	LastSeen  time.Time

	DetectionSource DetectionSource
	Identifier      string
	Designation     string

	IDSerial       string
	IDRegistration string
	IDUTM          string
	IDSession      string
	OperatorID     string
	UAType         string

	OperationalStatus string
	Latitude          *float64
	Longitude         *float64
	AltitudeGeodetic  *float64
	AltitudePressure  *float64
	Height            *float64
	HeightType        *int
	GroundTrack       *float64
	Speed             *float64
	VerticalSpeed     *float64

	OperatorLatitude     *float64
	OperatorLongitude    *float64
	OperatorAltitude     *float64
	OperatorLocationType *int

	AccuracyHorizontal *float64
	AccuracyVertical   *float64
	AccuracyBarometer  *float64
	AccuracySpeed      *float64

	CategoryEU string
	ClassEU    string

	AreaCount   *int
	AreaRadius  *float64
	AreaCeiling *float64
	AreaFloor   *float64

	AuthType string
	AuthData string

	SelfIDDescription string
	SelfIDType        string

	SSID     string
	LastRSSI *int

	MessageTypesSeen map[int]struct{}
	SpoofFlags       map[string]struct{}
	TrustScore       int

	History []PositionFix

	RawFields map[string]string
}

// UavReport is the wire document published on the "uav" topic. Every field
// is always present (possibly null) per spec.md §6's compatibility rule.
type UavReport struct {
	Type            string `msgpack:"type"`
	ProtocolVersion int    `msgpack:"protocol_version"`
	TapUUID         string `msgpack:"tap_uuid"`
	Timestamp       string `msgpack:"timestamp"`
	MAC             string `msgpack:"mac"`
	Identifier      string `msgpack:"identifier"`
	DetectionSource string `msgpack:"detection_source"`

	Latitude         *float64 `msgpack:"latitude"`
	Longitude        *float64 `msgpack:"longitude"`
	AltitudeGeodetic *float64 `msgpack:"altitude_geodetic"`
	AltitudePressure *float64 `msgpack:"altitude_pressure"`
	Height           *float64 `msgpack:"height"`
	HeightType       *int     `msgpack:"height_type"`

	GroundTrack   *float64 `msgpack:"ground_track"`
	Speed         *float64 `msgpack:"speed"`
	VerticalSpeed *float64 `msgpack:"vertical_speed"`

	IDSerial          string `msgpack:"id_serial"`
	IDRegistration    string `msgpack:"id_registration"`
	IDUTM             string `msgpack:"id_utm"`
	IDSession         string `msgpack:"id_session"`
	UAType            string `msgpack:"uav_type"`
	OperationalStatus string `msgpack:"operational_status"`

	OperatorLatitude     *float64 `msgpack:"operator_latitude"`
	OperatorLongitude    *float64 `msgpack:"operator_longitude"`
	OperatorAltitude     *float64 `msgpack:"operator_altitude"`
	OperatorID           string   `msgpack:"operator_id"`
	OperatorLocationType *int     `msgpack:"operator_location_type"`

	RSSI *int   `msgpack:"rssi"`
	SSID string `msgpack:"ssid"`

	AccuracyHorizontal *float64 `msgpack:"accuracy_horizontal"`
	AccuracyVertical   *float64 `msgpack:"accuracy_vertical"`
	AccuracyBarometer  *float64 `msgpack:"accuracy_barometer"`
	AccuracySpeed      *float64 `msgpack:"accuracy_speed"`

	CategoryEU string `msgpack:"category_eu"`
	ClassEU    string `msgpack:"class_eu"`

	AreaCount   *int     `msgpack:"area_count"`
	AreaRadius  *float64 `msgpack:"area_radius"`
	AreaCeiling *float64 `msgpack:"area_ceiling"`
	AreaFloor   *float64 `msgpack:"area_floor"`

	SpoofFlags []string `msgpack:"spoof_flags"`
	TrustScore int      `msgpack:"trust_score"`
	AuthType   string   `msgpack:"auth_type"`
	AuthData   string   `msgpack:"auth_data"`

	Designation        string         `msgpack:"designation"`
	MessageTypesSeen   []int          `msgpack:"message_types_seen"`
	SelfIDDescription  string         `msgpack:"self_id_description"`
	SelfIDType         string         `msgpack:"self_id_type"`
	RawFields          map[string]string `msgpack:"raw_fields"`
}

// Heartbeat is the wire document published on the "heartbeat" topic.
type Heartbeat struct {
	Type            string `msgpack:"type"`
	ProtocolVersion int    `msgpack:"protocol_version"`
	TapUUID         string `msgpack:"tap_uuid"`
	TapName         string `msgpack:"tap_name"`
	Timestamp       string `msgpack:"timestamp"`
	Version         string `msgpack:"version"`
	Interface       string `msgpack:"interface"`

	Channel int `msgpack:"channel"`

	CPULoad        float64  `msgpack:"cpu_load"`
	CPUPercent     float64  `msgpack:"cpu_percent"`
	MemoryUsed     uint64   `msgpack:"memory_used"`
	MemoryPercent  float64  `msgpack:"memory_percent"`
	Temperature    *float64 `msgpack:"temperature"`
	DiskFree       uint64   `msgpack:"disk_free"`
	DiskWritesTotal uint64  `msgpack:"disk_writes_total"`

	Latitude  *float64 `msgpack:"latitude"`
	Longitude *float64 `msgpack:"longitude"`

	FramesTotal    uint64 `msgpack:"frames_total"`
	FramesParsed   uint64 `msgpack:"frames_parsed"`
	TsharkRunning  bool   `msgpack:"tshark_running"`
	TapUptime      float64 `msgpack:"tap_uptime"`
	Channels       []int  `msgpack:"channels"`
	CaptureErrors  uint64 `msgpack:"capture_errors"`
}

package astm

import (
	"fmt"

	"wifitap/internal/types"
)

// RemoteIDOUI is the IEEE-assigned OUI for ASTM F3411 Open Drone ID vendor
// elements, per spec.md §4.C item 1.
var RemoteIDOUI = [3]byte{0xfa, 0x0b, 0xbc}

// Parser decodes FrameRecords into DetectionEvents, trying ASTM Remote-ID
// first, then DJI proprietary, then the WiFi-fingerprint fallback, per
// spec.md §4.C's ordered decoding cases.
type Parser struct {
	fingerprints *FingerprintCache
	ParseErrors  uint64
}

// NewParser returns a Parser with an empty fingerprint cache, loaded from
// the embedded fingerprint table.
func NewParser() (*Parser, error) {
	fingerprints, err := NewFingerprintCache()
	if err != nil {
		return nil, fmt.Errorf("loading fingerprint table: %w", err)
	}
	return &Parser{fingerprints: fingerprints}, nil
}

// Parse attempts to extract a DetectionEvent from one FrameRecord. It
// returns ok=false (never an error) when nothing decodable is present,
// per spec.md §4.C's "never raise out of the parser" rule; malformed
// payloads increment ParseErrors and likewise return ok=false.
func (p *Parser) Parse(frame types.FrameRecord) (types.DetectionEvent, bool) {
	if frame.FrameType != types.FrameTypeBeacon &&
		frame.FrameType != types.FrameTypeProbeResponse &&
		frame.FrameType != types.FrameTypeAction {
		return types.DetectionEvent{}, false
	}

	if len(frame.VendorData) >= 4 {
		oui := [3]byte{frame.VendorData[0], frame.VendorData[1], frame.VendorData[2]}
		payload := frame.VendorData[3:]

		switch oui {
		case RemoteIDOUI:
			messages, err := DecodeMessagePack(payload)
			if err != nil {
				p.ParseErrors++
				return types.DetectionEvent{}, false
			}
			return p.buildEvent(frame, types.DetectionSourceRemoteIDWiFi, messages), true

		case DJIOUI:
			messages, err := DecodeDJI(payload)
			if err != nil {
				p.ParseErrors++
				return types.DetectionEvent{}, false
			}
			return p.buildEvent(frame, types.DetectionSourceDJIProprietary, messages), true
		}
	}

	if match, ok := p.fingerprints.Match(frame.SourceMAC, frame.Fields["ssid"]); ok {
		event := types.DetectionEvent{
			MAC:       frame.SourceMAC,
			Channel:   frame.Channel,
			RSSI:      frame.RSSI,
			SSID:      frame.Fields["ssid"],
			Source:    types.DetectionSourceWiFiFingerprint,
			Timestamp: frame.CapturedAt,
			RawFields: frame.Fields,
			Messages: []types.RemoteIdMessage{{
				MessageType: types.ASTMMessageBasicID,
				IDType:      "fingerprint",
				UAType:      match.Model,
			}},
		}
		return event, true
	}

	return types.DetectionEvent{}, false
}

func (p *Parser) buildEvent(frame types.FrameRecord, source types.DetectionSource, messages []types.RemoteIdMessage) types.DetectionEvent {
	return types.DetectionEvent{
		MAC:       frame.SourceMAC,
		Channel:   frame.Channel,
		RSSI:      frame.RSSI,
		SSID:      frame.Fields["ssid"],
		Source:    source,
		Messages:  messages,
		Timestamp: frame.CapturedAt,
		RawFields: frame.Fields,
	}
}

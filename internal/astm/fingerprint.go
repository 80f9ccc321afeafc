package astm

import (
	"embed"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed data/fingerprints.yaml
var fingerprintFS embed.FS

// fingerprintEntry is one SSID-regex row of the embedded fingerprint table.
type fingerprintEntry struct {
	Pattern string `yaml:"pattern"`
	Model   string `yaml:"model"`
}

// ouiEntry is one MAC-OUI row of the embedded fingerprint table.
type ouiEntry struct {
	OUI   string `yaml:"oui"`
	Model string `yaml:"model"`
}

type fingerprintTable struct {
	SSIDPatterns []fingerprintEntry `yaml:"ssid_patterns"`
	OUIs         []ouiEntry         `yaml:"ouis"`
}

// ssidPattern pairs a compiled regex against a beacon/probe-response SSID
// with the model hint it implies.
type ssidPattern struct {
	re    *regexp.Regexp
	model string
}

// loadFingerprintTable compiles the embedded SSID-pattern/OUI table, per
// original_source/intel/wifi_fingerprint.py's pattern table, loaded once at
// startup the same way DesignationLookup loads its own embedded YAML table.
func loadFingerprintTable() ([]ssidPattern, map[string]string, error) {
	data, err := fingerprintFS.ReadFile("data/fingerprints.yaml")
	if err != nil {
		return nil, nil, err
	}

	var table fingerprintTable
	if err := yaml.Unmarshal(data, &table); err != nil {
		return nil, nil, err
	}

	patterns := make([]ssidPattern, 0, len(table.SSIDPatterns))
	for _, e := range table.SSIDPatterns {
		re, err := regexp.Compile(e.Pattern)
		if err != nil {
			return nil, nil, fmt.Errorf("compiling fingerprint pattern %q: %w", e.Pattern, err)
		}
		patterns = append(patterns, ssidPattern{re: re, model: e.Model})
	}

	ouiModels := make(map[string]string, len(table.OUIs))
	for _, e := range table.OUIs {
		ouiModels[e.OUI] = e.Model
	}

	return patterns, ouiModels, nil
}

// FingerprintMatch is the result of a successful WiFi-fingerprint match.
type FingerprintMatch struct {
	Model string
}

// fingerprintCacheSize bounds the positive/negative match caches so a tap
// observing many distinct SSIDs does not grow them unbounded.
const fingerprintCacheSize = 512

// FingerprintCache provides SSID/OUI heuristic UAV identification with the
// same positive/negative-cache structure as wifi_fingerprint.py's
// WiFiFingerprint class, to avoid re-running the regex/map scan for every
// frame from an already-classified MAC.
type FingerprintCache struct {
	ssidPatterns []ssidPattern
	ouiModels    map[string]string

	mu       sync.Mutex
	positive map[string]FingerprintMatch
	negative map[string]struct{}
}

// NewFingerprintCache loads the embedded fingerprint table and returns an
// empty match cache in front of it.
func NewFingerprintCache() (*FingerprintCache, error) {
	patterns, ouiModels, err := loadFingerprintTable()
	if err != nil {
		return nil, err
	}

	return &FingerprintCache{
		ssidPatterns: patterns,
		ouiModels:    ouiModels,
		positive:     make(map[string]FingerprintMatch),
		negative:     make(map[string]struct{}),
	}, nil
}

// Match attempts to identify a UAV from its SSID and MAC OUI alone, with no
// Remote-ID present. Returns ok=false when neither heuristic fires.
func (c *FingerprintCache) Match(mac, ssid string) (FingerprintMatch, bool) {
	key := mac + "|" + ssid

	c.mu.Lock()
	if m, ok := c.positive[key]; ok {
		c.mu.Unlock()
		return m, true
	}
	if _, ok := c.negative[key]; ok {
		c.mu.Unlock()
		return FingerprintMatch{}, false
	}
	c.mu.Unlock()

	match, ok := c.classify(mac, ssid)

	c.mu.Lock()
	defer c.mu.Unlock()
	if ok {
		evictOneIfFull(c.positive)
		c.positive[key] = match
	} else {
		evictOneIfFull(c.negative)
		c.negative[key] = struct{}{}
	}
	return match, ok
}

// evictOneIfFull drops an arbitrary entry once a cache reaches capacity;
// map iteration order is unspecified so this is a cheap approximation of
// LRU, matching wifi_fingerprint.py's bounded-cache intent without porting
// its explicit LRU bookkeeping.
func evictOneIfFull[V any](m map[string]V) {
	if len(m) < fingerprintCacheSize {
		return
	}
	for k := range m {
		delete(m, k)
		break
	}
}

func (c *FingerprintCache) classify(mac, ssid string) (FingerprintMatch, bool) {
	if ssid != "" {
		for _, p := range c.ssidPatterns {
			if p.re.MatchString(ssid) {
				return FingerprintMatch{Model: p.model}, true
			}
		}
	}

	oui := strings.ToLower(mac)
	if len(oui) >= 8 {
		if model, ok := c.ouiModels[oui[:8]]; ok {
			return FingerprintMatch{Model: model}, true
		}
	}

	return FingerprintMatch{}, false
}

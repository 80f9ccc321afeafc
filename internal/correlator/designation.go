package correlator

import (
	"embed"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed data/designations.yaml
var designationFS embed.FS

type designationEntry struct {
	Prefix      string `yaml:"prefix,omitempty"`
	OUI         string `yaml:"oui,omitempty"`
	Designation string `yaml:"designation"`
}

type designationTable struct {
	SerialPrefixes []designationEntry `yaml:"serial_prefixes"`
	OUIs           []designationEntry `yaml:"ouis"`
}

// DesignationLookup resolves a best-effort model name from a serial-number
// prefix or MAC OUI, per spec.md §4.D item 6. The table is loaded once at
// startup from an embedded YAML document (grounded on
// sgerhart-aegisflux/backend/correlator's own use of gopkg.in/yaml.v3 for
// rule tables) so it can be edited without recompiling the table itself
// into Go source, while still shipping inside a single static binary.
type DesignationLookup struct {
	table designationTable
}

// NewDesignationLookup loads the embedded designation table.
func NewDesignationLookup() (*DesignationLookup, error) {
	data, err := designationFS.ReadFile("data/designations.yaml")
	if err != nil {
		return nil, err
	}

	var table designationTable
	if err := yaml.Unmarshal(data, &table); err != nil {
		return nil, err
	}

	return &DesignationLookup{table: table}, nil
}

// Resolve returns a designation for the given serial and MAC, or "" if no
// table entry matches either.
func (d *DesignationLookup) Resolve(serial, mac string) string {
	for _, e := range d.table.SerialPrefixes {
		if e.Prefix != "" && strings.HasPrefix(strings.ToUpper(serial), strings.ToUpper(e.Prefix)) {
			return e.Designation
		}
	}

	mac = strings.ToLower(mac)
	for _, e := range d.table.OUIs {
		if e.OUI != "" && strings.HasPrefix(mac, strings.ToLower(e.OUI)) {
			return e.Designation
		}
	}

	return ""
}

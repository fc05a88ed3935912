package ccv

import (
	"fmt"
	"strings"
)

// ConfigKind selects which family of cloud-init documents is validated.
type ConfigKind int

const (
	CloudConfig ConfigKind = iota
	NetworkConfig
)

// Kinds lists every ConfigKind.
var Kinds = []ConfigKind{CloudConfig, NetworkConfig}

// ParseConfigKind accepts "cloudconfig" and "networkconfig" in any case, and
// the hyphenated forms used in HTTP routes.
func ParseConfigKind(s string) (ConfigKind, error) {
	switch strings.ToLower(s) {
	case "cloudconfig", "cloud-config":
		return CloudConfig, nil
	case "networkconfig", "network-config":
		return NetworkConfig, nil
	}
	return 0, fmt.Errorf("ccv: unknown config kind %q (want cloudconfig or networkconfig)", s)
}

func (k ConfigKind) String() string {
	switch k {
	case CloudConfig:
		return "cloudconfig"
	case NetworkConfig:
		return "networkconfig"
	}
	return fmt.Sprintf("ConfigKind(%d)", int(k))
}

// Slug returns the hyphenated name used in HTTP routes.
func (k ConfigKind) Slug() string {
	switch k {
	case NetworkConfig:
		return "network-config"
	default:
		return "cloud-config"
	}
}

// Set implements flag.Value.
func (k *ConfigKind) Set(s string) error {
	v, err := ParseConfigKind(s)
	if err != nil {
		return err
	}
	*k = v
	return nil
}

// Package region maps deployment systems and their regions to country codes.
package region

import (
	"errors"
	"fmt"
	"sort"
)

// Supported deployment systems.
const (
	SystemAWS  = "aws"
	SystemNone = "none"
)

// DefaultCountry is reported for runs that are not tied to a cloud provider.
const DefaultCountry = "US"

var (
	// ErrUnsupportedSystem is returned for systems outside the registry.
	ErrUnsupportedSystem = errors.New("unsupported system")
	// ErrUnsupportedRegion is returned when a system does not know the region.
	ErrUnsupportedRegion = errors.New("unsupported region")
)

var systems = []string{SystemAWS, SystemNone}

var awsCountryCodes = map[string]string{
	// US
	"us-east-1": "US",
	"us-east-2": "US",
	"us-west-1": "US",
	"us-west-2": "US",
	// Africa
	"af-south-1": "ZA",
	// Asia Pacific
	"ap-east-1":      "HK",
	"ap-south-1":     "IN",
	"ap-northeast-2": "KR",
	"ap-southeast-1": "SG",
	"ap-southeast-2": "AU",
	"ap-northeast-1": "JP",
	// Europe
	"eu-central-1": "DE",
	"eu-west-1":    "IE",
	"eu-west-2":    "GB",
	"eu-south-1":   "IT",
	"eu-west-3":    "FR",
	"eu-north-1":   "SE",
	// Middle East
	"me-south-1": "BH",
	// South America
	"sa-east-1": "BR",
	// Canada
	"ca-central-1": "CA",
}

// Systems lists the supported deployment systems.
func Systems() []string {
	out := make([]string, len(systems))
	copy(out, systems)
	return out
}

// IsSupportedSystem reports whether system is in the registry.
func IsSupportedSystem(system string) bool {
	for _, s := range systems {
		if s == system {
			return true
		}
	}
	return false
}

// AWSRegions returns the known AWS regions in lexical order.
func AWSRegions() []string {
	out := make([]string, 0, len(awsCountryCodes))
	for r := range awsCountryCodes {
		out = append(out, r)
	}
	sort.Strings(out)
	return out
}

// ValidateRegion checks that region is usable for system. The "none" system
// accepts any region.
func ValidateRegion(system, region string) error {
	switch system {
	case SystemAWS:
		if _, ok := awsCountryCodes[region]; !ok {
			return fmt.Errorf("%w: %q for system %q", ErrUnsupportedRegion, region, system)
		}
		return nil
	case SystemNone:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedSystem, system)
	}
}

// CountryCode returns the ISO country code a region runs in.
func CountryCode(system, region string) (string, error) {
	switch system {
	case SystemAWS:
		code, ok := awsCountryCodes[region]
		if !ok {
			return "", fmt.Errorf("%w: %q for system %q", ErrUnsupportedRegion, region, system)
		}
		return code, nil
	case SystemNone:
		return DefaultCountry, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedSystem, system)
	}
}

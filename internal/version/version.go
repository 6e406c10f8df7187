// Package version holds the engine version and semver helpers for comparing
// against the version recorded in persisted run artifacts.
package version

import (
	"github.com/Masterminds/semver/v3"
	"github.com/quantforge/backtest/pkg/errors"
)

// Version is the engine version recorded into every run's stats file.
const Version = "1.0.0"

// Get returns the engine version as a parsed semver. The constant is known
// valid, so parsing cannot fail.
func Get() *semver.Version {
	return semver.MustParse(Version)
}

// IsCompatible reports whether an artifact written by engine version `other`
// can be read by this engine: same major version, and not newer than us.
func IsCompatible(other string) (bool, error) {
	v, err := semver.NewVersion(other)
	if err != nil {
		return false, errors.Wrapf(errors.ErrCodeInvalidVersion, err, "invalid version string: %s", other)
	}

	current := Get()

	return v.Major() == current.Major() && !v.GreaterThan(current), nil
}

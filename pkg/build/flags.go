// SPDX-License-Identifier: MIT
//
// Package build exposes metadata embedded at link time, for example:
//
//	go build -ldflags "-X airsync/pkg/build.buildVersion=0.1.0 -X airsync/pkg/build.buildCommit=$(git rev-parse --short HEAD)"
//
// Development builds run with "unknown" values.
package build

import (
	"errors"
	"fmt"
	"strings"
)

// Info describes the running binary.
type Info struct {
	Name        string
	Description string
	Time        string
	Commit      string
	Version     string
}

// ErrMissingFlags is returned by Initialize when ldflags were not set.
var ErrMissingFlags = errors.New("build flags missing")

// Package-level variables for build information, populated by -ldflags.
var (
	buildName    string
	buildTime    string
	buildCommit  string
	buildVersion string
	buildInfo    = Info{
		Name:        "airsync",
		Description: "Drift-compensating audio playback engine",
		Time:        "unknown",
		Commit:      "unknown",
		Version:     "unknown",
	}
)

// Initialize copies the ldflags values into Info. Flags that were not set
// keep their defaults and are reported in the returned error.
func Initialize() error {
	var missing []string
	set := func(dst *string, val, flag string) {
		if val == "" {
			missing = append(missing, flag)
			return
		}
		*dst = val
	}
	set(&buildInfo.Name, buildName, "buildName")
	set(&buildInfo.Time, buildTime, "buildTime")
	set(&buildInfo.Commit, buildCommit, "buildCommit")
	set(&buildInfo.Version, buildVersion, "buildVersion")

	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingFlags, strings.Join(missing, ", "))
	}
	return nil
}

// Get returns the current build information.
func Get() Info {
	return buildInfo
}

func (i Info) String() string {
	return fmt.Sprintf("%s %s (commit %s, built %s)", i.Name, i.Version, i.Commit, i.Time)
}

// SPDX-License-Identifier: MIT
//
// Package build exposes the version metadata linked into the binary with
// -ldflags "-X finirig/pkg/build.buildVersion=...". Development builds run
// without it and report "dev" values.
package build

import (
	"errors"
	"fmt"
)

const (
	defaultName        = "finirig"
	defaultDescription = "Real-time guitar overdrive rig"
	unknown            = "dev"
)

// Info describes the running binary.
type Info struct {
	Name        string
	Description string
	Time        string
	Commit      string
	Version     string
}

// String renders the version line printed by --version.
func (i Info) String() string {
	return fmt.Sprintf("%s (commit %s, built %s)", i.Version, i.Commit, i.Time)
}

// Set by -ldflags.
var (
	buildName    string
	buildTime    string
	buildCommit  string
	buildVersion string
	buildInfo    = defaultInfo()
)

func defaultInfo() *Info {
	return &Info{
		Name:        defaultName,
		Description: defaultDescription,
		Time:        unknown,
		Commit:      unknown,
		Version:     unknown,
	}
}

// Initialize copies the linker-provided values into the build info. Values
// that were not linked keep their defaults and are reported in the returned
// error; callers treat it as a warning.
func Initialize() error {
	var errs []error
	set := func(dst *string, v, flag string) {
		if v == "" {
			errs = append(errs, fmt.Errorf("%s is not set", flag))
			return
		}
		*dst = v
	}

	set(&buildInfo.Name, buildName, "BuildName")
	set(&buildInfo.Time, buildTime, "BuildTime")
	set(&buildInfo.Commit, buildCommit, "BuildCommit")
	set(&buildInfo.Version, buildVersion, "BuildVersion")

	return errors.Join(errs...)
}

// GetBuildFlags returns the current build information.
func GetBuildFlags() *Info {
	return buildInfo
}

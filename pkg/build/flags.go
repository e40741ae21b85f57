// SPDX-License-Identifier: MIT
//
// Package build exposes metadata embedded at link time:
//
//	go build -ldflags "-X spectrum/pkg/build.buildName=spectrum \
//	  -X spectrum/pkg/build.buildVersion=0.1.0 ..."
//
// Development builds carry no flags; Initialize reports the first missing one
// and Get keeps returning the "unknown" placeholders.
package build

import (
	"errors"
	"fmt"
)

// Info describes the running binary.
type Info struct {
	Name    string
	Time    string
	Commit  string
	Version string
}

// String renders the banner printed by --version and the startup log line.
func (i Info) String() string {
	return fmt.Sprintf("%s %s (commit %s, built %s)", i.Name, i.Version, i.Commit, i.Time)
}

var (
	buildName    string
	buildTime    string
	buildCommit  string
	buildVersion string
	info         = unknown()
)

func unknown() Info {
	return Info{
		Name:    "spectrum",
		Time:    "unknown",
		Commit:  "unknown",
		Version: "unknown",
	}
}

// Initialize copies the ldflags values into the Info returned by Get.
// Nothing is copied unless every flag is present.
func Initialize() error {
	switch {
	case buildName == "":
		return errors.New("BuildName is required")
	case buildTime == "":
		return errors.New("BuildTime is required")
	case buildCommit == "":
		return errors.New("BuildCommit is required")
	case buildVersion == "":
		return errors.New("BuildVersion is required")
	}

	info = Info{
		Name:    buildName,
		Time:    buildTime,
		Commit:  buildCommit,
		Version: buildVersion,
	}
	return nil
}

// Get returns the build information.
func Get() Info {
	return info
}

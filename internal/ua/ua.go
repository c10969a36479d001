// internal/ua/ua.go
//
// User‑Agent parsing helpers.
//
// This wrapper isolates the third‑party `github.com/avct/uasurfer` API so
// the rest of the codebase never sees its enums or structs.  Signup only
// needs a coarse device class and a bot flag for submission logs, plus the
// browser and OS names when debugging a visitor's report.
package ua

import (
	"fmt"
	"strconv"
	"strings"

	surfer "github.com/avct/uasurfer"
)

// Device classes.
const (
	DeviceDesktop = "Desktop"
	DeviceMobile  = "Mobile"
	DeviceTablet  = "Tablet"
	DeviceBot     = "Bot"
	DeviceOther   = "Other"
)

// Info carries the parsed UA attributes.
//
// Example (Chrome on Android):
//
//	Browser   "Chrome"
//	Version   "125.0.6422"
//	OS        "Android"
//	OSVersion "14"
//	Device    "Mobile"
type Info struct {
	Browser   string `json:"browser,omitempty"`
	Version   string `json:"version,omitempty"`
	OS        string `json:"os,omitempty"`
	OSVersion string `json:"os_version,omitempty"`
	Device    string `json:"device"`
	IsBot     bool   `json:"bot,omitempty"`
}

// Parse converts a raw header into an Info struct.  An empty header yields
// Device "Other".
func Parse(raw string) Info {
	u := surfer.Parse(raw)

	info := Info{
		Browser:   strings.TrimPrefix(u.Browser.Name.String(), "Browser"),
		Version:   versionToString(u.Browser.Version),
		OS:        strings.TrimPrefix(u.OS.Name.String(), "OS"),
		OSVersion: versionToString(u.OS.Version),
		IsBot:     u.IsBot(),
	}
	if info.Browser == "Unknown" {
		info.Browser = ""
	}
	if info.OS == "Unknown" {
		info.OS = ""
	}

	switch {
	case info.IsBot:
		info.Device = DeviceBot
	case u.DeviceType == surfer.DeviceComputer:
		info.Device = DeviceDesktop
	case u.DeviceType == surfer.DeviceTablet:
		info.Device = DeviceTablet
	case u.DeviceType == surfer.DevicePhone, u.DeviceType == surfer.DeviceWearable:
		info.Device = DeviceMobile
	default:
		info.Device = DeviceOther
	}

	return info
}

// versionToString renders a semantic version in dotted form while trimming
// trailing zeros, e.g. 17.0.0 → "17", 17.3.0 → "17.3", 17.3.1 → "17.3.1".
func versionToString(v surfer.Version) string {
	if v.Major == 0 && v.Minor == 0 && v.Patch == 0 {
		return ""
	}
	if v.Patch != 0 {
		return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
	}
	if v.Minor != 0 {
		return fmt.Sprintf("%d.%d", v.Major, v.Minor)
	}
	return strconv.Itoa(int(v.Major))
}

package installer

import (
	"strings"

	goversion "github.com/hashicorp/go-version"
)

// CompareVersions compares two version strings.
// Returns negative if v1 < v2, zero if equal and positive if v1 > v2.
// Windows four-part versions ("5.9.2.1") and a leading "v" are accepted.
// Unparseable versions sort before parseable ones and compare equal to each other.
func CompareVersions(v1, v2 string) int {
	a, errA := parseVersion(v1)
	b, errB := parseVersion(v2)
	switch {
	case errA != nil && errB != nil:
		return 0
	case errA != nil:
		return -1
	case errB != nil:
		return 1
	}
	return a.Compare(b)
}

func parseVersion(v string) (*goversion.Version, error) {
	v = strings.TrimSpace(v)
	v = strings.ReplaceAll(v, ", ", ".")
	return goversion.NewVersion(v)
}

// InstallAction classifies what deploying over an existing module means.
type InstallAction int

const (
	ActionFreshInstall InstallAction = iota
	ActionUpgrade
	ActionDowngrade
	ActionReinstall
)

// String returns the action name.
func (a InstallAction) String() string {
	switch a {
	case ActionFreshInstall:
		return "Fresh Install"
	case ActionUpgrade:
		return "Upgrade"
	case ActionDowngrade:
		return "Downgrade"
	case ActionReinstall:
		return "Reinstall"
	default:
		return "Install"
	}
}

// DetermineAction determines the installation action based on versions.
// An unknown existing version is treated as a reinstall.
func DetermineAction(existingVersion, newVersion string) InstallAction {
	if existingVersion == "" {
		return ActionFreshInstall
	}
	if _, err := parseVersion(existingVersion); err != nil {
		return ActionReinstall
	}

	cmp := CompareVersions(newVersion, existingVersion)
	switch {
	case cmp > 0:
		return ActionUpgrade
	case cmp < 0:
		return ActionDowngrade
	default:
		return ActionReinstall
	}
}

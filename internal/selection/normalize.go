package selection

import "strings"

// Normalize reduces a version to the form used in runtime image tags:
// versions with three or more dotted components keep only major.minor,
// shorter versions are returned unchanged.
//
//	Normalize("10")      == "10"
//	Normalize("3.8")     == "3.8"
//	Normalize("3.8.1")   == "3.8"
//	Normalize("3.8.1.2") == "3.8"
func Normalize(version string) string {
	parts := strings.Split(version, ".")
	if len(parts) < 3 {
		return version
	}
	return parts[0] + "." + parts[1]
}

package compatibility

import (
	"fmt"
	"strings"

	"bloodlink/pkg/platform/sentinel"
)

// BloodGroup is one of the eight ABO/Rh groups.
type BloodGroup string

const (
	OPositive  BloodGroup = "O+"
	ONegative  BloodGroup = "O-"
	APositive  BloodGroup = "A+"
	ANegative  BloodGroup = "A-"
	BPositive  BloodGroup = "B+"
	BNegative  BloodGroup = "B-"
	ABPositive BloodGroup = "AB+"
	ABNegative BloodGroup = "AB-"
)

// Canonicalize trims and upper-cases raw input. The result is not
// necessarily a valid group.
func Canonicalize(raw string) string {
	return strings.ToUpper(strings.TrimSpace(raw))
}

// ParseBloodGroup canonicalizes raw and rejects anything outside the
// enumeration with a validation error.
func ParseBloodGroup(raw string) (BloodGroup, error) {
	g := BloodGroup(Canonicalize(raw))
	if _, ok := rules[g]; !ok {
		return "", fmt.Errorf("%w: invalid blood group %q (valid groups: %s)",
			sentinel.ErrValidation, raw, joinGroups(ValidBloodGroups()))
	}
	return g, nil
}

// Valid reports whether g is a member of the enumeration.
func (g BloodGroup) Valid() bool {
	_, ok := rules[g]
	return ok
}

func (g BloodGroup) String() string {
	return string(g)
}

func joinGroups(groups []BloodGroup) string {
	parts := make([]string, len(groups))
	for i, g := range groups {
		parts[i] = string(g)
	}
	return strings.Join(parts, ", ")
}

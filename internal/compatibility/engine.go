// Package compatibility encodes the donor/recipient blood group rules.
//
// The rule table is fixed at process start and never mutated, so every
// function here is safe for concurrent use without locking. Functions hand
// out copies of table entries.
package compatibility

import "fmt"

// order is the enumeration order; it is also the key order of rules.
var order = []BloodGroup{
	OPositive, ONegative,
	APositive, ANegative,
	BPositive, BNegative,
	ABPositive, ABNegative,
}

// rules maps a requested (recipient) group to the donor groups that may
// supply it, in display order.
var rules = map[BloodGroup][]BloodGroup{
	OPositive:  {OPositive, ONegative},
	ONegative:  {ONegative},
	APositive:  {APositive, ANegative, OPositive, ONegative},
	ANegative:  {ANegative, ONegative},
	BPositive:  {BPositive, BNegative, OPositive, ONegative},
	BNegative:  {BNegative, ONegative},
	ABPositive: {APositive, ANegative, BPositive, BNegative, OPositive, ONegative, ABPositive, ABNegative},
	ABNegative: {ANegative, BNegative, ONegative, ABNegative},
}

// CompatibleDonors returns the donor groups allowed to supply requested.
// Unrecognized input yields an empty slice; that is the only error signal.
func CompatibleDonors(requested string) []BloodGroup {
	donors, ok := rules[BloodGroup(Canonicalize(requested))]
	if !ok {
		return []BloodGroup{}
	}
	out := make([]BloodGroup, len(donors))
	copy(out, donors)
	return out
}

// IsCompatible reports whether a donor of group donor may supply a request
// for group requested.
func IsCompatible(donor, requested string) bool {
	d := BloodGroup(Canonicalize(donor))
	for _, g := range rules[BloodGroup(Canonicalize(requested))] {
		if g == d {
			return true
		}
	}
	return false
}

// Candidate is anything that carries a donor blood group.
type Candidate interface {
	DonorBloodGroup() string
}

// FilterCompatibleDonors keeps the candidates whose blood group may supply
// requested, preserving input order.
func FilterCompatibleDonors[C Candidate](requested string, candidates []C) []C {
	out := make([]C, 0, len(candidates))
	if len(rules[BloodGroup(Canonicalize(requested))]) == 0 {
		return out
	}
	for _, c := range candidates {
		if IsCompatible(c.DonorBloodGroup(), requested) {
			out = append(out, c)
		}
	}
	return out
}

// ValidBloodGroups returns the full enumeration.
func ValidBloodGroups() []BloodGroup {
	out := make([]BloodGroup, len(order))
	copy(out, order)
	return out
}

// Explain renders the compatible donor groups of requested as a sentence.
func Explain(requested string) string {
	donors := CompatibleDonors(requested)
	if len(donors) == 0 {
		return fmt.Sprintf("Invalid blood group: %s", requested)
	}
	return fmt.Sprintf("Blood Group %s can receive from: %s", Canonicalize(requested), joinGroups(donors))
}

// Statistics summarises the rule table.
type Statistics struct {
	UniversalDonor     BloodGroup `json:"universal_donor"`
	UniversalRecipient BloodGroup `json:"universal_recipient"`
	TotalBloodGroups   int        `json:"total_blood_groups"`
	CompatibilityRules int        `json:"compatibility_rules"`
}

// Stats derives the universal donor and recipient from the table.
func Stats() Statistics {
	stats := Statistics{
		TotalBloodGroups:   len(order),
		CompatibilityRules: len(rules),
	}
	for _, g := range order {
		if len(rules[g]) == len(order) {
			stats.UniversalRecipient = g
		}
		if suppliesAll(g) {
			stats.UniversalDonor = g
		}
	}
	return stats
}

func suppliesAll(donor BloodGroup) bool {
	for _, recipient := range order {
		if !IsCompatible(string(donor), string(recipient)) {
			return false
		}
	}
	return true
}

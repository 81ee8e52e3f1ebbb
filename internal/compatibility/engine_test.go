package compatibility

import (
	"strings"
	"testing"

	"bloodlink/pkg/platform/sentinel"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

type donor struct {
	email string
	bg    string
}

func (d donor) DonorBloodGroup() string { return d.bg }

func TestCompatibleDonors_Table(t *testing.T) {
	tests := []struct {
		requested string
		want      []BloodGroup
	}{
		{"O+", []BloodGroup{OPositive, ONegative}},
		{"O-", []BloodGroup{ONegative}},
		{"A+", []BloodGroup{APositive, ANegative, OPositive, ONegative}},
		{"A-", []BloodGroup{ANegative, ONegative}},
		{"B+", []BloodGroup{BPositive, BNegative, OPositive, ONegative}},
		{"B-", []BloodGroup{BNegative, ONegative}},
		{"AB+", []BloodGroup{APositive, ANegative, BPositive, BNegative, OPositive, ONegative, ABPositive, ABNegative}},
		{"AB-", []BloodGroup{ANegative, BNegative, ONegative, ABNegative}},
	}
	for _, tt := range tests {
		t.Run(tt.requested, func(t *testing.T) {
			assert.Equal(t, tt.want, CompatibleDonors(tt.requested))
		})
	}
}

func TestCompatibleDonors_UniversalRecipientAndDonor(t *testing.T) {
	assert.ElementsMatch(t, ValidBloodGroups(), CompatibleDonors("AB+"))
	assert.Equal(t, []BloodGroup{ONegative}, CompatibleDonors("O-"))
}

func TestCompatibleDonors_UnknownInputIsEmpty(t *testing.T) {
	for _, in := range []string{"X+", "", "A", "ABO", "O+-", "  "} {
		got := CompatibleDonors(in)
		assert.NotNil(t, got, in)
		assert.Empty(t, got, in)
	}
}

func TestCompatibleDonors_CaseAndWhitespaceInsensitive(t *testing.T) {
	assert.Equal(t, CompatibleDonors("A+"), CompatibleDonors("a+"))
	assert.Equal(t, CompatibleDonors("AB-"), CompatibleDonors("  ab- \t"))
	assert.Equal(t, CompatibleDonors("O+"), CompatibleDonors("o+"))
}

func TestCompatibleDonors_ReturnsCopy(t *testing.T) {
	got := CompatibleDonors("A+")
	got[0] = ABPositive

	assert.Equal(t, APositive, CompatibleDonors("A+")[0])
}

func TestIsCompatible(t *testing.T) {
	assert.True(t, IsCompatible("O+", "A+"))
	assert.False(t, IsCompatible("B+", "A+"))
	assert.True(t, IsCompatible("b-", "AB-"))
	assert.False(t, IsCompatible("A+", "AB-"))
	assert.False(t, IsCompatible("O-", "X+"))
	assert.False(t, IsCompatible("Z", "A+"))
}

func TestFilterCompatibleDonors_PreservesOrder(t *testing.T) {
	candidates := []donor{
		{email: "a@test.com", bg: "A+"},
		{email: "ab@test.com", bg: "AB+"},
		{email: "b@test.com", bg: "B+"},
		{email: "o@test.com", bg: "O-"},
	}

	got := FilterCompatibleDonors("A+", candidates)

	require.Len(t, got, 2)
	assert.Equal(t, "a@test.com", got[0].email)
	assert.Equal(t, "o@test.com", got[1].email)
}

func TestFilterCompatibleDonors_InvalidRequestedIsEmpty(t *testing.T) {
	got := FilterCompatibleDonors("Q", []donor{{bg: "O-"}})
	assert.Empty(t, got)
}

func TestValidBloodGroups(t *testing.T) {
	assert.Equal(t,
		[]BloodGroup{OPositive, ONegative, APositive, ANegative, BPositive, BNegative, ABPositive, ABNegative},
		ValidBloodGroups())
}

func TestExplain(t *testing.T) {
	assert.Equal(t, "Invalid blood group: X+", Explain("X+"))
	assert.Equal(t, "Blood Group A- can receive from: A-, O-", Explain(" a- "))
	assert.Equal(t, "Blood Group AB+ can receive from: A+, A-, B+, B-, O+, O-, AB+, AB-", Explain("AB+"))
}

func TestParseBloodGroup(t *testing.T) {
	g, err := ParseBloodGroup(" ab+ ")
	require.NoError(t, err)
	assert.Equal(t, ABPositive, g)

	_, err = ParseBloodGroup("C+")
	require.ErrorIs(t, err, sentinel.ErrValidation)
}

func TestStats(t *testing.T) {
	assert.Equal(t, Statistics{
		UniversalDonor:     ONegative,
		UniversalRecipient: ABPositive,
		TotalBloodGroups:   8,
		CompatibilityRules: 8,
	}, Stats())
}

func TestProperty_SelfAndUniversalDonor(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		g := rapid.SampledFrom(ValidBloodGroups()).Draw(t, "group")
		donors := CompatibleDonors(string(g))
		if !contains(donors, g) {
			t.Fatalf("%s is not self-compatible: %v", g, donors)
		}
		if !contains(donors, ONegative) {
			t.Fatalf("O- missing from %s: %v", g, donors)
		}
	})
}

func TestProperty_CanonicalizationAndIdempotence(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		g := rapid.SampledFrom(ValidBloodGroups()).Draw(t, "group")
		pad := rapid.StringMatching(`[ \t]{0,3}`).Draw(t, "pad")
		lower := rapid.Bool().Draw(t, "lower")

		in := string(g)
		if lower {
			in = strings.ToLower(in)
		}
		in = pad + in + pad

		first := CompatibleDonors(in)
		second := CompatibleDonors(in)
		if len(first) != len(second) {
			t.Fatalf("not idempotent for %q", in)
		}
		for i := range first {
			if first[i] != second[i] {
				t.Fatalf("not idempotent for %q", in)
			}
		}
		want := CompatibleDonors(string(g))
		if len(first) != len(want) {
			t.Fatalf("%q resolved to %v, want %v", in, first, want)
		}
	})
}

func TestProperty_UnknownGroupsNeverMatch(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		in := rapid.String().Draw(t, "input")
		if BloodGroup(Canonicalize(in)).Valid() {
			t.Skip("valid group drawn")
		}
		if len(CompatibleDonors(in)) != 0 {
			t.Fatalf("unknown group %q produced donors", in)
		}
		donorGroup := rapid.SampledFrom(ValidBloodGroups()).Draw(t, "donor")
		if IsCompatible(string(donorGroup), in) {
			t.Fatalf("%s reported compatible with unknown %q", donorGroup, in)
		}
	})
}

func TestProperty_FilterMatchesIsCompatible(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		requested := rapid.SampledFrom(ValidBloodGroups()).Draw(t, "requested")
		groups := rapid.SliceOf(rapid.SampledFrom(ValidBloodGroups())).Draw(t, "candidates")

		candidates := make([]donor, len(groups))
		for i, g := range groups {
			candidates[i] = donor{bg: string(g)}
		}

		got := FilterCompatibleDonors(string(requested), candidates)

		want := 0
		for _, c := range candidates {
			if IsCompatible(c.bg, string(requested)) {
				want++
			}
		}
		if len(got) != want {
			t.Fatalf("filter kept %d, want %d", len(got), want)
		}
	})
}

func contains(groups []BloodGroup, g BloodGroup) bool {
	for _, x := range groups {
		if x == g {
			return true
		}
	}
	return false
}

package donors

import (
	"bloodlink/internal/membership"
	"bloodlink/internal/requests"
)

// Profile is a donor together with what they have given and what they could
// give next.
type Profile struct {
	Donor              *membership.Person        `json:"donor"`
	Donations          []requests.DonationRecord `json:"donations"`
	CompatibleRequests []*requests.BloodRequest  `json:"compatible_requests"`
}

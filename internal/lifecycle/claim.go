// claim.go defines the Claim status set and its transition table.
package lifecycle

// Claim statuses.
const (
	ClaimSubmitted     Status = "SUBMITTED"
	ClaimUnderReview   Status = "UNDER_REVIEW"
	ClaimInfoRequested Status = "INFO_REQUESTED"
	ClaimApproved      Status = "APPROVED"
	ClaimPaid          Status = "PAID"
	ClaimRejected      Status = "REJECTED"
	ClaimCancelled     Status = "CANCELLED"
)

// ClaimMachine governs the claim lifecycle. PAID, REJECTED, and CANCELLED are
// terminal. Rejections and information requests must carry a reason, and any
// cancellation requires one regardless of the current status.
var ClaimMachine = New("claim",
	map[Status][]Status{
		ClaimSubmitted:     {ClaimUnderReview, ClaimCancelled},
		ClaimUnderReview:   {ClaimApproved, ClaimRejected, ClaimInfoRequested, ClaimCancelled},
		ClaimInfoRequested: {ClaimUnderReview, ClaimCancelled},
		ClaimApproved:      {ClaimPaid},
		ClaimPaid:          {},
		ClaimRejected:      {},
		ClaimCancelled:     {},
	},
	[]ReasonRule{
		{From: ClaimUnderReview, To: ClaimRejected},
		{From: ClaimUnderReview, To: ClaimInfoRequested},
		{From: Wildcard, To: ClaimCancelled},
	},
)

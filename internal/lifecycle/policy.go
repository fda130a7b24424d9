// policy.go defines the Policy status set and its transition table.
package lifecycle

// Policy statuses.
const (
	PolicyDraft     Status = "DRAFT"
	PolicyActive    Status = "ACTIVE"
	PolicySuspended Status = "SUSPENDED"
	PolicyExpired   Status = "EXPIRED"
	PolicyCancelled Status = "CANCELLED"
)

// PolicyMachine governs the policy lifecycle. EXPIRED and CANCELLED are
// terminal. Suspending an active policy and any cancellation require a reason.
var PolicyMachine = New("policy",
	map[Status][]Status{
		PolicyDraft:     {PolicyActive, PolicyCancelled},
		PolicyActive:    {PolicySuspended, PolicyExpired, PolicyCancelled},
		PolicySuspended: {PolicyActive, PolicyCancelled},
		PolicyExpired:   {},
		PolicyCancelled: {},
	},
	[]ReasonRule{
		{From: PolicyActive, To: PolicySuspended},
		{From: Wildcard, To: PolicyCancelled},
	},
)

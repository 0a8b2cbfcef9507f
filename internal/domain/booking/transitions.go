package booking

// Transition is one edge of the booking state machine.
type Transition struct {
	From               BookingStatus
	To                 BookingStatus
	AllowedActors      []ActorRole
	RequiresPayment    bool
	RequiresInspection bool
	Label              string
}

// Allows reports whether actor may trigger the transition.
func (t Transition) Allows(actor ActorRole) bool {
	for _, a := range t.AllowedActors {
		if a == actor {
			return true
		}
	}
	return false
}

// transitionTable holds the outgoing edges for every status. Terminal
// statuses map to an empty slice; a status missing from the map is unknown.
var transitionTable = map[BookingStatus][]Transition{
	StatusPending: {
		{From: StatusPending, To: StatusAccepted, AllowedActors: []ActorRole{ActorOwner, ActorAdmin}, Label: "Accept booking"},
		{From: StatusPending, To: StatusDeclined, AllowedActors: []ActorRole{ActorOwner, ActorAdmin}, Label: "Decline booking"},
		{From: StatusPending, To: StatusCancelled, AllowedActors: []ActorRole{ActorRenter, ActorAdmin}, Label: "Cancel booking"},
	},
	StatusAccepted: {
		{From: StatusAccepted, To: StatusAwaitingPickup, AllowedActors: []ActorRole{ActorSystem, ActorAdmin}, RequiresPayment: true, Label: "Mark ready for pickup"},
		{From: StatusAccepted, To: StatusCancelled, AllowedActors: []ActorRole{ActorRenter, ActorOwner, ActorAdmin}, Label: "Cancel booking"},
	},
	StatusAwaitingPickup: {
		{From: StatusAwaitingPickup, To: StatusInUse, AllowedActors: []ActorRole{ActorOwner, ActorAdmin}, Label: "Start rental"},
		{From: StatusAwaitingPickup, To: StatusCancelled, AllowedActors: []ActorRole{ActorAdmin}, Label: "Cancel booking"},
	},
	StatusInUse: {
		{From: StatusInUse, To: StatusAwaitingReturnInspection, AllowedActors: []ActorRole{ActorOwner, ActorRenter, ActorAdmin}, Label: "Mark returned"},
	},
	StatusAwaitingReturnInspection: {
		{From: StatusAwaitingReturnInspection, To: StatusCompleted, AllowedActors: []ActorRole{ActorOwner, ActorAdmin}, RequiresInspection: true, Label: "Complete booking"},
		{From: StatusAwaitingReturnInspection, To: StatusInDispute, AllowedActors: []ActorRole{ActorOwner, ActorRenter, ActorAdmin}, Label: "Raise dispute"},
	},
	StatusInDispute: {
		{From: StatusInDispute, To: StatusCompleted, AllowedActors: []ActorRole{ActorAdmin}, Label: "Resolve dispute"},
		{From: StatusInDispute, To: StatusAwaitingReturnInspection, AllowedActors: []ActorRole{ActorAdmin}, Label: "Return to inspection"},
	},
	StatusDeclined:  {},
	StatusCancelled: {},
	StatusCompleted: {},
}

// LookupTransition returns the edge from -> to if the graph has one.
func LookupTransition(from, to BookingStatus) (Transition, bool) {
	for _, t := range transitionTable[from] {
		if t.To == to {
			return t, true
		}
	}
	return Transition{}, false
}

// TransitionsFrom returns a copy of the outgoing edges of from.
func TransitionsFrom(from BookingStatus) []Transition {
	edges := transitionTable[from]
	out := make([]Transition, len(edges))
	copy(out, edges)
	return out
}

// ValidNextStates returns the graph-legal targets from the given status.
func ValidNextStates(from BookingStatus) []BookingStatus {
	edges := transitionTable[from]
	next := make([]BookingStatus, 0, len(edges))
	for _, t := range edges {
		next = append(next, t.To)
	}
	return next
}

// AvailableTransitions returns the edges from the given status that actor may trigger.
// It applies the same actor check as Validate.
func AvailableTransitions(from BookingStatus, actor ActorRole) []Transition {
	var out []Transition
	for _, t := range transitionTable[from] {
		if t.Allows(actor) {
			out = append(out, t)
		}
	}
	return out
}

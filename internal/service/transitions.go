package service

import "homeserve/internal/models"

type edge struct {
	from string
	to   string
}

// transitionActors is the single authority on which edges exist and which
// role may drive each of them. Every status mutation goes through this
// table; there is no other mutation path.
var transitionActors = map[edge]string{
	{models.StatusPending, models.StatusConfirmed}:           models.RoleAdmin,
	{models.StatusPending, models.StatusCancelledByCustomer}: models.RoleCustomer,
	{models.StatusPending, models.StatusCancelledByAdmin}:    models.RoleAdmin,

	{models.StatusConfirmed, models.StatusProviderOnWay}:       models.RoleProvider,
	{models.StatusConfirmed, models.StatusCancelledByProvider}: models.RoleProvider,
	{models.StatusConfirmed, models.StatusCancelledByCustomer}: models.RoleCustomer,

	{models.StatusProviderOnWay, models.StatusInProgress}:          models.RoleProvider,
	{models.StatusProviderOnWay, models.StatusCancelledByProvider}: models.RoleProvider,

	{models.StatusInProgress, models.StatusWorkCompleted}: models.RoleProvider,

	// The completed edge is applied exclusively through completion code
	// verification; Transition rejects it (see lifecycle.go).
	{models.StatusWorkCompleted, models.StatusCompleted}: models.RoleProvider,
}

// statusOrder keeps allowed-successor lists deterministic for errors and tests.
var statusOrder = []string{
	models.StatusPending,
	models.StatusConfirmed,
	models.StatusProviderOnWay,
	models.StatusInProgress,
	models.StatusWorkCompleted,
	models.StatusCompleted,
	models.StatusCancelledByCustomer,
	models.StatusCancelledByProvider,
	models.StatusCancelledByAdmin,
}

// requiredRole returns the role permitted to drive the edge, if the edge exists.
func requiredRole(from, to string) (string, bool) {
	role, ok := transitionActors[edge{from, to}]
	return role, ok
}

// directTargets lists successors reachable through Transition. The completed
// status is excluded: it is only reachable through code verification.
func directTargets(from string) []string {
	var out []string
	for _, to := range statusOrder {
		if to == models.StatusCompleted {
			continue
		}
		if _, ok := transitionActors[edge{from, to}]; ok {
			out = append(out, to)
		}
	}
	return out
}

// IsValidStatus reports whether s is a known booking status.
func IsValidStatus(s string) bool {
	for _, known := range statusOrder {
		if s == known {
			return true
		}
	}
	return false
}

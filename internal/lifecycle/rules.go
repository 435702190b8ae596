// Package lifecycle implements the sale lifecycle state machine: the
// transition rule table, the service that executes validated transitions
// inside row-locked transactions, and the scheduler that drives deferred
// automatic completion. Everything else in the application mutates sales
// exclusively through this package.
package lifecycle

import (
	"fmt"
	"strings"

	"github.com/tradebinder/card-market/internal/model"
)

// TransitionRule describes one legal edge of the state machine. A rule
// matches a (From, To) pair, restricts which roles may take it, lists the
// payload fields that must be present, and optionally checks a predicate
// against the current sale snapshot.
type TransitionRule struct {
	From           model.SaleStatus
	To             model.SaleStatus
	AllowedRoles   []model.Role
	RequiredFields []string
	Validate       func(s *model.Sale) bool
}

// Allows reports whether the given role may take this transition.
func (r TransitionRule) Allows(role model.Role) bool {
	for _, a := range r.AllowedRoles {
		if a == role {
			return true
		}
	}
	return false
}

func hasBuyer(s *model.Sale) bool { return s.HasBuyer() }

// ruleTable is the immutable, process-wide transition table. Order is
// not significant; at most one rule exists per (From, To) pair.
var ruleTable = []TransitionRule{
	{
		From:           model.StatusAvailable,
		To:             model.StatusReserved,
		AllowedRoles:   []model.Role{model.RoleBuyer},
		RequiredFields: []string{"quantity"},
		Validate:       func(s *model.Sale) bool { return s.Quantity > 0 },
	},
	{
		From:           model.StatusReserved,
		To:             model.StatusShipped,
		AllowedRoles:   []model.Role{model.RoleSeller},
		RequiredFields: []string{"shipping_proof_url"},
		Validate:       hasBuyer,
	},
	{
		From:           model.StatusShipped,
		To:             model.StatusDelivered,
		AllowedRoles:   []model.Role{model.RoleBuyer},
		RequiredFields: []string{"delivery_proof_url"},
		Validate:       hasBuyer,
	},
	{
		From:         model.StatusDelivered,
		To:           model.StatusCompleted,
		AllowedRoles: []model.Role{model.RoleSystem, model.RoleSeller},
		Validate:     hasBuyer,
	},
	{
		From:           model.StatusAvailable,
		To:             model.StatusCancelled,
		AllowedRoles:   []model.Role{model.RoleSeller},
		RequiredFields: []string{"reason"},
	},
	{
		From:           model.StatusReserved,
		To:             model.StatusCancelled,
		AllowedRoles:   []model.Role{model.RoleSeller, model.RoleBuyer},
		RequiredFields: []string{"reason"},
	},
	{
		From:           model.StatusShipped,
		To:             model.StatusCancelled,
		AllowedRoles:   []model.Role{model.RoleSeller, model.RoleBuyer},
		RequiredFields: []string{"reason"},
	},
}

// RuleFor returns the rule matching the (from, to) pair, if any.
func RuleFor(from, to model.SaleStatus) (TransitionRule, bool) {
	for _, r := range ruleTable {
		if r.From == from && r.To == to {
			return r, true
		}
	}
	return TransitionRule{}, false
}

// ValidTransitions returns every target status the given role may reach
// from the current status. The API layer uses this to report legal next
// actions without mutating state; invalid-state errors embed it so a
// client can self-correct.
func ValidTransitions(from model.SaleStatus, role model.Role) []model.SaleStatus {
	out := make([]model.SaleStatus, 0, 2)
	for _, r := range ruleTable {
		if r.From == from && r.Allows(role) {
			out = append(out, r.To)
		}
	}
	return out
}

// ValidationResult carries the outcome of ValidateTransition. Errors
// holds every violation found, not just the first one.
type ValidationResult struct {
	Valid  bool
	Errors []string
}

// ValidateTransition checks a proposed transition against the rule table
// without performing it. All failing conditions are collected so the
// caller can report every violation at once: unknown transition, role
// mismatch, the exact set of missing required fields, and a failed
// snapshot predicate.
func ValidateTransition(from, to model.SaleStatus, role model.Role, sale *model.Sale, provided map[string]bool) ValidationResult {
	rule, ok := RuleFor(from, to)
	if !ok {
		return ValidationResult{Errors: []string{
			fmt.Sprintf("no transition from %s to %s", from, to),
		}}
	}
	var errs []string
	if !rule.Allows(role) {
		errs = append(errs, fmt.Sprintf("role %s is not allowed to move a sale from %s to %s", role, from, to))
	}
	var missing []string
	for _, f := range rule.RequiredFields {
		if !provided[f] {
			missing = append(missing, f)
		}
	}
	if len(missing) > 0 {
		errs = append(errs, "missing required fields: "+strings.Join(missing, ", "))
	}
	if rule.Validate != nil && sale != nil && !rule.Validate(sale) {
		errs = append(errs, fmt.Sprintf("sale does not satisfy the conditions for %s", to))
	}
	return ValidationResult{Valid: len(errs) == 0, Errors: errs}
}

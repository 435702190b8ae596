package lifecycle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradebinder/card-market/internal/model"
)

func TestRuleForKnownEdges(t *testing.T) {
	cases := []struct {
		from, to model.SaleStatus
		exists   bool
	}{
		{model.StatusAvailable, model.StatusReserved, true},
		{model.StatusReserved, model.StatusShipped, true},
		{model.StatusShipped, model.StatusDelivered, true},
		{model.StatusDelivered, model.StatusCompleted, true},
		{model.StatusAvailable, model.StatusCancelled, true},
		{model.StatusReserved, model.StatusCancelled, true},
		{model.StatusShipped, model.StatusCancelled, true},
		{model.StatusDelivered, model.StatusCancelled, false},
		{model.StatusAvailable, model.StatusShipped, false},
		{model.StatusCompleted, model.StatusCancelled, false},
		{model.StatusCancelled, model.StatusAvailable, false},
	}
	for _, tc := range cases {
		_, ok := RuleFor(tc.from, tc.to)
		assert.Equal(t, tc.exists, ok, "%s -> %s", tc.from, tc.to)
	}
}

func TestValidTransitionsPerRole(t *testing.T) {
	cases := []struct {
		name string
		from model.SaleStatus
		role model.Role
		want []model.SaleStatus
	}{
		{"seller on available can only cancel", model.StatusAvailable, model.RoleSeller,
			[]model.SaleStatus{model.StatusCancelled}},
		{"buyer on available can only reserve", model.StatusAvailable, model.RoleBuyer,
			[]model.SaleStatus{model.StatusReserved}},
		{"seller on reserved ships or cancels", model.StatusReserved, model.RoleSeller,
			[]model.SaleStatus{model.StatusShipped, model.StatusCancelled}},
		{"buyer on reserved can only cancel", model.StatusReserved, model.RoleBuyer,
			[]model.SaleStatus{model.StatusCancelled}},
		{"buyer on shipped confirms or cancels", model.StatusShipped, model.RoleBuyer,
			[]model.SaleStatus{model.StatusDelivered, model.StatusCancelled}},
		{"system on delivered completes", model.StatusDelivered, model.RoleSystem,
			[]model.SaleStatus{model.StatusCompleted}},
		{"seller on delivered completes", model.StatusDelivered, model.RoleSeller,
			[]model.SaleStatus{model.StatusCompleted}},
		{"buyer on delivered has nothing", model.StatusDelivered, model.RoleBuyer,
			[]model.SaleStatus{}},
		{"completed is terminal", model.StatusCompleted, model.RoleSeller,
			[]model.SaleStatus{}},
		{"no role no transitions", model.StatusReserved, model.RoleNone,
			[]model.SaleStatus{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ValidTransitions(tc.from, tc.role))
		})
	}
}

func TestValidateTransitionCollectsAllViolations(t *testing.T) {
	// A buyerless sale, shipped by the wrong role with no proof, must
	// report the role violation, the missing field and the failed
	// snapshot check together.
	sale := &model.Sale{Status: model.StatusReserved, Quantity: 1}
	res := ValidateTransition(model.StatusReserved, model.StatusShipped, model.RoleBuyer, sale, nil)
	require.False(t, res.Valid)
	require.Len(t, res.Errors, 3)
	assert.Contains(t, res.Errors[0], "role BUYER is not allowed")
	assert.Contains(t, res.Errors[1], "shipping_proof_url")
	assert.Contains(t, res.Errors[2], "conditions for SHIPPED")
}

func TestValidateTransitionUnknownEdge(t *testing.T) {
	res := ValidateTransition(model.StatusAvailable, model.StatusDelivered, model.RoleSeller, nil, nil)
	require.False(t, res.Valid)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], "no transition from AVAILABLE to DELIVERED")
}

func TestValidateTransitionHappyPath(t *testing.T) {
	buyer := uint64(7)
	sale := &model.Sale{Status: model.StatusReserved, Quantity: 2, BuyerID: &buyer}
	res := ValidateTransition(model.StatusReserved, model.StatusShipped, model.RoleSeller, sale,
		map[string]bool{"shipping_proof_url": true})
	assert.True(t, res.Valid)
	assert.Empty(t, res.Errors)
}

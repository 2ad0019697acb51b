package orders

import (
	"fmt"

	"github.com/Shahir-47/sarva-backend/pkg/enums"
	pkgerrors "github.com/Shahir-47/sarva-backend/pkg/errors"
)

// transition names one edge of the order lifecycle and who may walk it.
type transition struct {
	from  enums.OrderStatus
	to    enums.OrderStatus
	roles map[enums.ActorRole]struct{}
}

func roles(rs ...enums.ActorRole) map[enums.ActorRole]struct{} {
	out := make(map[enums.ActorRole]struct{}, len(rs))
	for _, r := range rs {
		out[r] = struct{}{}
	}
	return out
}

var transitions = []transition{
	{from: enums.OrderStatusPendingPayment, to: enums.OrderStatusPreparing, roles: roles(enums.ActorRoleSystem)},
	{from: enums.OrderStatusPreparing, to: enums.OrderStatusWaitingForDriver, roles: roles(enums.ActorRoleVendor, enums.ActorRoleSystem)},
	{from: enums.OrderStatusWaitingForDriver, to: enums.OrderStatusDriverComingToPickup, roles: roles(enums.ActorRoleDriver)},
	{from: enums.OrderStatusDriverComingToPickup, to: enums.OrderStatusDriverDelivering, roles: roles(enums.ActorRoleDriver)},
	{from: enums.OrderStatusDriverDelivering, to: enums.OrderStatusDelivered, roles: roles(enums.ActorRoleDriver)},
}

// cancellableBy lists who may cancel from each non-terminal status. Customers
// may only cancel while the hold is uncaptured; vendors may also cancel
// before a driver picks the order up.
var cancellableBy = map[enums.OrderStatus][]enums.ActorRole{
	enums.OrderStatusPendingPayment:       {enums.ActorRoleCustomer, enums.ActorRoleVendor, enums.ActorRoleSystem},
	enums.OrderStatusPreparing:            {enums.ActorRoleVendor, enums.ActorRoleSystem},
	enums.OrderStatusWaitingForDriver:     {enums.ActorRoleVendor, enums.ActorRoleSystem},
	enums.OrderStatusDriverComingToPickup: {enums.ActorRoleVendor, enums.ActorRoleSystem},
}

// validateTransition checks the lifecycle edge and the acting role.
func validateTransition(from, to enums.OrderStatus, role enums.ActorRole) error {
	if from.IsTerminal() {
		return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("order is %s and accepts no further transitions", from))
	}
	for _, t := range transitions {
		if t.from != from || t.to != to {
			continue
		}
		if _, ok := t.roles[role]; !ok {
			return pkgerrors.New(pkgerrors.CodeForbidden, fmt.Sprintf("%s may not move order from %s to %s", role, from, to))
		}
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("cannot move order from %s to %s", from, to))
}

// validateCancel checks whether the acting role may cancel from the status.
func validateCancel(from enums.OrderStatus, role enums.ActorRole) error {
	if from.IsTerminal() {
		return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("order is %s and accepts no further transitions", from))
	}
	allowed, ok := cancellableBy[from]
	if !ok {
		return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("order cannot be cancelled while %s", from))
	}
	for _, r := range allowed {
		if r == role {
			return nil
		}
	}
	return pkgerrors.New(pkgerrors.CodeForbidden, fmt.Sprintf("%s may not cancel an order that is %s", role, from))
}

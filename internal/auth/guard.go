package auth

import (
	apperrors "parksync/internal/errors"
)

// Op names an operation checked by Authorize.
type Op string

const (
	OpBook            Op = "book"
	OpCheckout        Op = "checkout"
	OpViewReservation Op = "view_reservation"
	OpViewPayment     Op = "view_payment"
	OpPayPayment      Op = "pay_payment"
	OpSnapshot        Op = "snapshot"
	OpManageLots      Op = "manage_lots"
	OpViewReports     Op = "view_reports"
)

// Resource describes what an operation touches. The zero value has no owner.
type Resource struct {
	OwnerID  int64
	HasOwner bool
}

func OwnedBy(userID int64) Resource {
	return Resource{OwnerID: userID, HasOwner: true}
}

// Authorize returns nil when actor may perform op on res. Admin operations
// require the admin role. Customer operations require the user role and, for
// owned resources, ownership. The system actor may settle payments and take
// snapshots.
func Authorize(actor Actor, op Op, res Resource) error {
	const fn = "auth.Authorize"

	switch actor.Role {
	case RoleUser, RoleAdmin, RoleSystem:
	default:
		return apperrors.Unauthenticated(fn, "authentication required")
	}

	switch op {
	case OpManageLots, OpViewReports:
		if actor.Role != RoleAdmin {
			return apperrors.Forbidden(fn, "admin access required")
		}
		return nil
	case OpSnapshot:
		if actor.Role == RoleAdmin || actor.Role == RoleSystem {
			return nil
		}
		return apperrors.Forbidden(fn, "not allowed to snapshot reservations")
	case OpPayPayment:
		if actor.Role == RoleSystem {
			return nil
		}
	case OpBook, OpCheckout, OpViewReservation, OpViewPayment:
	default:
		return apperrors.Forbidden(fn, "unknown operation %q", op)
	}

	if actor.Role != RoleUser {
		return apperrors.Forbidden(fn, "only customers can %s", op)
	}
	if res.HasOwner && res.OwnerID != actor.UserID {
		return apperrors.Forbidden(fn, "not the owner")
	}
	return nil
}

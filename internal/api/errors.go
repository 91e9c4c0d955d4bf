package api

import (
	"net/http"

	respond "github.com/r-ddle/exile-ledger/internal/api/respond"
	"github.com/r-ddle/exile-ledger/internal/ledger"
)

// statusFor maps ledger error kinds onto HTTP statuses. Anything unrecognized
// is treated as a persistence-level failure.
func statusFor(err error) int {
	switch {
	case ledger.IsNotFoundError(err):
		return http.StatusNotFound
	case ledger.IsValidationError(err), ledger.IsInvalidAmountError(err):
		return http.StatusBadRequest
	case ledger.IsInsufficientFundsError(err):
		return http.StatusPaymentRequired
	case ledger.IsAlreadyClaimedError(err), ledger.IsConflictError(err):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeDomainError(w http.ResponseWriter, err error) {
	respond.WriteError(w, statusFor(err), err.Error())
}

package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/void1100/Bank-management-system/api/responses"
	"github.com/void1100/Bank-management-system/api/validators"
	"github.com/void1100/Bank-management-system/internal/ledger"
	"github.com/void1100/Bank-management-system/internal/otp"
	pkgerrors "github.com/void1100/Bank-management-system/pkg/errors"
	"github.com/void1100/Bank-management-system/pkg/logger"
)

type mutationRequest struct {
	AccountID string          `json:"account_id" validate:"required,uuid"`
	Amount    decimal.Decimal `json:"amount" validate:"amount"`
}

type transferRequest struct {
	FromAccountID string          `json:"from_account_id" validate:"required,uuid"`
	ToAccountID   string          `json:"to_account_id" validate:"required,uuid"`
	Amount        decimal.Decimal `json:"amount" validate:"amount"`
}

type verifyOTPRequest struct {
	RequestID string `json:"request_id" validate:"required,uuid"`
	OTP       string `json:"otp" validate:"required,numeric"`
}

// otpVerifier is the surface of the OTP gate the API needs.
type otpVerifier interface {
	Verify(ctx context.Context, p otp.VerifyParams) (otp.Result, error)
	Pending(ctx context.Context, userID uuid.UUID) ([]otp.PendingChallenge, error)
}

type mutationFunc func(ctx context.Context, input ledger.MutationInput) (*ledger.MutationResult, error)

// Deposit credits an owned account and queues the event for review.
func Deposit(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	if svc == nil {
		return unavailable("ledger service unavailable", logg)
	}
	return mutation(svc.Deposit, logg)
}

// Withdraw debits an owned account, or queues it for OTP step-up when the
// amount crosses the threshold. The response code is 202 in that case.
func Withdraw(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	if svc == nil {
		return unavailable("ledger service unavailable", logg)
	}
	return mutation(svc.Withdraw, logg)
}

func mutation(apply mutationFunc, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := callerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body mutationRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := apply(r.Context(), ledger.MutationInput{
			UserID:    userID,
			AccountID: uuid.MustParse(body.AccountID),
			Amount:    body.Amount,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		status := http.StatusOK
		if result.OTPRequired {
			status = http.StatusAccepted
		}
		responses.WriteSuccessStatus(w, status, result)
	}
}

// Transfer moves money between two accounts owned by the caller.
func Transfer(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "ledger service unavailable"))
			return
		}
		userID, err := callerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body transferRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Transfer(r.Context(), ledger.TransferInput{
			UserID:        userID,
			FromAccountID: uuid.MustParse(body.FromAccountID),
			ToAccountID:   uuid.MustParse(body.ToAccountID),
			Amount:        body.Amount,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// VerifyOTP checks a one-time code; success releases the held withdrawal to
// the dispatcher.
func VerifyOTP(gate otpVerifier, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if gate == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "otp gate unavailable"))
			return
		}
		userID, err := callerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body verifyOTPRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := gate.Verify(r.Context(), otp.VerifyParams{
			RequestID: uuid.MustParse(body.RequestID),
			Code:      body.OTP,
			UserID:    userID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := otp.ResultError(result); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"status": result, "message": "OTP verified. Withdrawal will be executed shortly."})
	}
}

// PendingOTP lists the caller's active OTP challenges.
func PendingOTP(gate otpVerifier, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if gate == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "otp gate unavailable"))
			return
		}
		userID, err := callerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		rows, err := gate.Pending(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toPendingDTOs(rows))
	}
}

func unavailable(msg string, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, msg))
	}
}

package controllers

import (
	"net/http"

	"github.com/void1100/Bank-management-system/api/responses"
	"github.com/void1100/Bank-management-system/api/validators"
	"github.com/void1100/Bank-management-system/internal/accounts"
	"github.com/void1100/Bank-management-system/pkg/enums"
	pkgerrors "github.com/void1100/Bank-management-system/pkg/errors"
	"github.com/void1100/Bank-management-system/pkg/logger"
)

type openAccountRequest struct {
	AccountType string `json:"account_type" validate:"required,oneof=savings current"`
}

// AccountOpen opens a new account for the caller.
func AccountOpen(svc accounts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "accounts service unavailable"))
			return
		}
		userID, err := callerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body openAccountRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		account, err := svc.Open(r.Context(), userID, enums.AccountType(body.AccountType))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, toAccountDTO(*account))
	}
}

// AccountList returns the caller's accounts.
func AccountList(svc accounts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "accounts service unavailable"))
			return
		}
		userID, err := callerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		rows, err := svc.List(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		out := make([]accountDTO, 0, len(rows))
		for _, a := range rows {
			out = append(out, toAccountDTO(a))
		}
		responses.WriteSuccess(w, out)
	}
}

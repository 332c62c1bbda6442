package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/jrsmidia8602-ctrl/remix-of-pixel-perfect-sub001/api/apicommon"
	"github.com/jrsmidia8602-ctrl/remix-of-pixel-perfect-sub001/db"
	"github.com/jrsmidia8602-ctrl/remix-of-pixel-perfect-sub001/errors"
	"github.com/jrsmidia8602-ctrl/remix-of-pixel-perfect-sub001/internal"
)

// dashboardMetricsHandler godoc
//
//	@Summary		Get dashboard metrics
//	@Description	Aggregated payments, agent budgets, demand ranking and the latest audit.
//	@Description	Metrics are cached for a few seconds, fresh=true recomputes them.
//	@Tags			dashboard
//	@Produce		json
//	@Security		BearerAuth
//	@Param			fresh	query		bool	false	"Bypass the cache"
//	@Success		200		{object}	dashboard.Metrics
//	@Failure		400		{object}	errors.Error	"Invalid fresh parameter"
//	@Failure		401		{object}	errors.Error	"Unauthorized"
//	@Failure		500		{object}	errors.Error	"Internal server error"
//	@Router			/dashboard/metrics [get]
func (a *API) dashboardMetricsHandler(w http.ResponseWriter, r *http.Request) {
	if a.dashboard == nil {
		errors.ErrGenericInternalServerError.With("dashboard not available").Write(w)
		return
	}
	fresh := false
	if raw := r.URL.Query().Get("fresh"); raw != "" {
		var err error
		if fresh, err = strconv.ParseBool(raw); err != nil {
			errors.ErrMalformedURLParam.Withf("invalid fresh value %q", raw).Write(w)
			return
		}
	}
	metrics, err := a.dashboard.Metrics(r.Context(), fresh)
	if err != nil {
		errors.ErrInternalStorageError.WithErr(err).Write(w)
		return
	}
	apicommon.HTTPWriteJSON(w, metrics)
}

// dashboardPaymentsHandler godoc
//
//	@Summary		List stored payments
//	@Description	Latest payments, newest first, optionally filtered by status and provider.
//	@Tags			dashboard
//	@Produce		json
//	@Security		BearerAuth
//	@Param			limit		query		int		false	"Number of payments, defaults to 50"
//	@Param			status		query		string	false	"pending, succeeded, failed, expired or refunded"
//	@Param			provider	query		string	false	"stripe or crypto"
//	@Success		200			{object}	apicommon.PaymentsResponse
//	@Failure		400			{object}	errors.Error	"Invalid query parameter"
//	@Failure		401			{object}	errors.Error	"Unauthorized"
//	@Failure		500			{object}	errors.Error	"Internal server error"
//	@Router			/dashboard/payments [get]
func (a *API) dashboardPaymentsHandler(w http.ResponseWriter, r *http.Request) {
	if a.dashboard == nil {
		errors.ErrGenericInternalServerError.With("dashboard not available").Write(w)
		return
	}
	limit, err := apicommon.LimitFromQuery(r)
	if err != nil || limit < 0 {
		errors.ErrMalformedURLParam.Withf("invalid limit %q", r.URL.Query().Get("limit")).Write(w)
		return
	}
	payments, err := a.dashboard.Payments(r.Context(), db.PaymentFilter{
		Limit:    internal.ClampLimit(limit, apicommon.DefaultListLimit, apicommon.MaxListLimit),
		Status:   r.URL.Query().Get("status"),
		Provider: r.URL.Query().Get("provider"),
	})
	if err != nil {
		writeError(w, engineError(err, errors.ErrMalformedURLParam, errors.ErrPaymentNotFound))
		return
	}
	apicommon.HTTPWriteJSON(w, &apicommon.PaymentsResponse{Payments: payments})
}

// dashboardPaymentHandler godoc
//
//	@Summary		Get a stored payment
//	@Tags			dashboard
//	@Produce		json
//	@Security		BearerAuth
//	@Param			paymentID	path		string	true	"Payment id"
//	@Success		200			{object}	db.Payment
//	@Failure		401			{object}	errors.Error	"Unauthorized"
//	@Failure		404			{object}	errors.Error	"Payment not found"
//	@Failure		500			{object}	errors.Error	"Internal server error"
//	@Router			/dashboard/payments/{paymentID} [get]
func (a *API) dashboardPaymentHandler(w http.ResponseWriter, r *http.Request) {
	if a.dashboard == nil {
		errors.ErrGenericInternalServerError.With("dashboard not available").Write(w)
		return
	}
	payment, err := a.dashboard.Payment(r.Context(), chi.URLParam(r, "paymentID"))
	if err != nil {
		writeError(w, engineError(err, errors.ErrMalformedURLParam, errors.ErrPaymentNotFound))
		return
	}
	apicommon.HTTPWriteJSON(w, payment)
}

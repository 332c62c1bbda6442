package api

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"io"
	"net/http"
	"slices"

	"github.com/go-chi/chi/v5"
	"github.com/jrsmidia8602-ctrl/remix-of-pixel-perfect-sub001/api/apicommon"
	"github.com/jrsmidia8602-ctrl/remix-of-pixel-perfect-sub001/errors"
	"github.com/jrsmidia8602-ctrl/remix-of-pixel-perfect-sub001/validator"
)

// call is a decoded function invocation.
type call struct {
	action string
	body   []byte
	caller *apicommon.Caller
	v      *validator.Validator
}

// decode unmarshals the call body into dst and validates it. An empty body
// leaves dst with its zero values.
func (c *call) decode(dst any) error {
	if len(c.body) > 0 {
		if err := json.Unmarshal(c.body, dst); err != nil {
			return errors.ErrMalformedBody.WithErr(err)
		}
	}
	if err := c.v.Check(dst); err != nil {
		return errors.ErrInvalidData.WithErr(err).WithData(err)
	}
	return nil
}

// action is one operation of a function. Mutating actions are restricted to
// privileged roles.
type action struct {
	mutating bool
	run      func(ctx context.Context, c *call) (any, error)
}

// function groups the actions served under a function name. Functions with a
// direct action ignore the action field of the envelope.
type function struct {
	actions map[string]action
	direct  *action
}

func (f *function) actionNames() []string {
	names := make([]string, 0, len(f.actions))
	for name := range f.actions {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// registerFunctions builds the function table. Engines that are not
// configured are left out and answer as unknown functions.
func (a *API) registerFunctions() map[string]*function {
	fns := map[string]*function{
		createCheckoutFunction:       {direct: &action{run: a.createCheckout}},
		checkConnectStatusFunction:   {direct: &action{run: a.checkConnectStatus}},
		listStripePaymentsFunction:   {direct: &action{run: a.listStripePayments}},
		createConnectAccountFunction: {direct: &action{run: a.createConnectAccount}},
		neuralBrainFunction:          a.brainFunction(),
	}
	if a.scheduler != nil {
		fns[agentSchedulerFunction] = a.schedulerFunction()
	}
	if a.auditor != nil {
		fns[systemAuditFunction] = a.auditFunction()
	}
	if a.radar != nil {
		fns[demandRadarFunction] = a.radarFunction()
	}
	if a.orchestrator != nil {
		fns[orchestratorFunction] = a.orchestratorFunction()
	}
	return fns
}

// functionHandler godoc
//
//	@Summary		Run a function
//	@Description	Runs an engine or payment function. Engine functions take an
//	@Description	{"action": ...} envelope with the action parameters inline.
//	@Tags			functions
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			name	path		string	true	"Function name"
//	@Success		200		{object}	any
//	@Failure		400		{object}	errors.Error	"Missing or unsupported action, invalid data"
//	@Failure		401		{object}	errors.Error	"Unauthorized"
//	@Failure		403		{object}	errors.Error	"Role not allowed"
//	@Failure		404		{object}	errors.Error	"Function not found"
//	@Failure		409		{object}	errors.Error	"Run already in progress"
//	@Failure		500		{object}	errors.Error	"Internal server error"
//	@Router			/functions/{name} [post]
func (a *API) functionHandler(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	fn, ok := a.functions[name]
	if !ok {
		errors.ErrFunctionNotFound.Withf("%q", name).Write(w)
		return
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		errors.ErrMalformedBody.WithErr(err).Write(w)
		return
	}
	envelope := &apicommon.FunctionRequest{}
	if len(body) > 0 {
		if err := json.Unmarshal(body, envelope); err != nil {
			errors.ErrMalformedBody.WithErr(err).Write(w)
			return
		}
	}
	caller, ok := apicommon.CallerFromContext(r.Context())
	if !ok {
		errors.ErrUnauthorized.Write(w)
		return
	}

	act := fn.direct
	if act == nil {
		if envelope.Action == "" {
			errors.ErrMissingAction.WithData(fn.actionNames()).Write(w)
			return
		}
		found, ok := fn.actions[envelope.Action]
		if !ok {
			errors.ErrInvalidAction.Withf("%q is not an action of %s", envelope.Action, name).
				WithData(fn.actionNames()).Write(w)
			return
		}
		act = &found
	}
	if act.mutating && !caller.Privileged() {
		errors.ErrForbiddenRole.Withf("%s %s requires role %s or %s",
			name, envelope.Action, apicommon.RoleServiceRole, apicommon.RoleAdmin).Write(w)
		return
	}

	resp, err := act.run(r.Context(), &call{
		action: envelope.Action,
		body:   body,
		caller: caller,
		v:      a.validator,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	apicommon.HTTPWriteJSON(w, resp)
}

// writeError writes err, falling back to a generic internal error when it is
// not a coded error.
func writeError(w http.ResponseWriter, err error) {
	var apiErr errors.Error
	if stderrors.As(err, &apiErr) {
		apiErr.Write(w)
		return
	}
	errors.ErrGenericInternalServerError.WithErr(err).Write(w)
}

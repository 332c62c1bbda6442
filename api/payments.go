package api

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/jrsmidia8602-ctrl/remix-of-pixel-perfect-sub001/api/apicommon"
	"github.com/jrsmidia8602-ctrl/remix-of-pixel-perfect-sub001/db"
	"github.com/jrsmidia8602-ctrl/remix-of-pixel-perfect-sub001/errors"
	"github.com/jrsmidia8602-ctrl/remix-of-pixel-perfect-sub001/internal"
	"github.com/jrsmidia8602-ctrl/remix-of-pixel-perfect-sub001/validator"
	"go.vocdoni.io/dvote/log"
)

const defaultCryptoCurrency = "usd"

// usdStablecoins are valued one to one in usd when no fiat amount is given.
var usdStablecoins = map[string]bool{"USDC": true, "USDT": true, "DAI": true}

var (
	errMissingFiatValue = stderrors.New("amount_cents is required for non stablecoin payments")
	errInvalidFiatValue = stderrors.New("token_amount has no valid fiat value")
)

var cryptoPaymentModel = apicommon.CryptoPaymentRequest{}

// InputValidator is a middleware that validates the request body against the
// model stored in the context. It uses the validator package to validate the model.
func (a *API) InputValidator(next http.Handler) http.Handler {
	return a.validator.InputValidator(next)
}

// validateInputModel is a middleware that adds the model to the request context
// for validation by the InputValidator middleware.
func (a *API) validateInputModel(model any) func(http.Handler) http.Handler {
	return a.validator.AddModelMiddleware(model)
}

// cryptoPaymentHandler godoc
//
//	@Summary		Record a crypto payment
//	@Description	Stores an on-chain payment as succeeded. Addresses and the transaction hash are
//	@Description	validated and normalized; a transaction hash can only be recorded once.
//	@Tags			payments
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			request	body		apicommon.CryptoPaymentRequest	true	"Payment information"
//	@Success		200		{object}	db.Payment
//	@Failure		400		{object}	errors.Error	"Invalid input data"
//	@Failure		401		{object}	errors.Error	"Unauthorized"
//	@Failure		409		{object}	errors.Error	"Transaction already recorded"
//	@Failure		500		{object}	errors.Error	"Internal server error"
//	@Router			/payments/crypto [post]
func (a *API) cryptoPaymentHandler(w http.ResponseWriter, r *http.Request) {
	if a.payments == nil {
		errors.ErrGenericInternalServerError.With("payments storage not available").Write(w)
		return
	}
	model, ok := validator.GetValidatedModel(r.Context())
	if !ok {
		errors.ErrMalformedBody.With("expected a JSON body").Write(w)
		return
	}
	req := model.(*apicommon.CryptoPaymentRequest)

	payment, err := cryptoPayment(req)
	if err != nil {
		if stderrors.Is(err, errMissingFiatValue) || stderrors.Is(err, errInvalidFiatValue) {
			errors.ErrInvalidPaymentData.WithErr(err).Write(w)
			return
		}
		errors.ErrInvalidWallet.WithErr(err).Write(w)
		return
	}
	if err := a.payments.CreatePayment(r.Context(), payment); err != nil {
		if stderrors.Is(err, db.ErrAlreadyExists) {
			errors.ErrDuplicateConflict.Withf("transaction %s already recorded", payment.TxHash).Write(w)
			return
		}
		errors.ErrInternalStorageError.WithErr(err).Write(w)
		return
	}
	if a.dashboard != nil {
		a.dashboard.Invalidate()
	}
	log.Infow("crypto payment recorded", "id", payment.ID, "network", payment.Network,
		"token", payment.Token, "amount", internal.FormatCents(payment.AmountCents, payment.Currency))
	apicommon.HTTPWriteJSON(w, payment)
}

// cryptoPayment normalizes a validated request into a succeeded payment.
func cryptoPayment(req *apicommon.CryptoPaymentRequest) (*db.Payment, error) {
	txHash, err := internal.ParseTxHash(req.TxHash)
	if err != nil {
		return nil, err
	}
	from, err := internal.ParseAddress(req.From)
	if err != nil {
		return nil, fmt.Errorf("from: %w", err)
	}
	to, err := internal.ParseAddress(req.To)
	if err != nil {
		return nil, fmt.Errorf("to: %w", err)
	}
	if from == to {
		return nil, fmt.Errorf("from and to must be different wallets")
	}
	amount, err := internal.ParseTokenAmount(req.TokenAmount)
	if err != nil {
		return nil, err
	}
	currency := strings.ToLower(req.Currency)
	if currency == "" {
		currency = defaultCryptoCurrency
	}
	token := strings.ToUpper(strings.TrimSpace(req.Token))
	cents := req.AmountCents
	if cents == 0 {
		if !usdStablecoins[token] || currency != defaultCryptoCurrency {
			return nil, errMissingFiatValue
		}
		if cents, err = internal.DecimalToCents(amount, currency); err != nil {
			return nil, fmt.Errorf("%w: %v", errInvalidFiatValue, err)
		}
		if cents <= 0 {
			return nil, fmt.Errorf("%w: %s %s is below one cent", errInvalidFiatValue, amount.String(), token)
		}
	}
	return &db.Payment{
		Provider:      db.ProviderCrypto,
		Status:        db.PaymentSucceeded,
		AmountCents:   cents,
		Currency:      currency,
		CustomerEmail: req.CustomerEmail,
		WalletAddress: from.Hex(),
		TxHash:        txHash.Hex(),
		Network:       strings.ToLower(strings.TrimSpace(req.Network)),
		Token:         token,
		TokenAmount:   amount.String(),
		Description:   fmt.Sprintf("%s %s to %s", amount.String(), token, to.Hex()),
	}, nil
}

package stripeconnect

import (
	stripe "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"
)

// API is the slice of the Stripe surface this service calls. Tests substitute
// a stub; production wraps client.API.
type API interface {
	NewAccount(params *stripe.AccountParams) (*stripe.Account, error)
	GetAccount(accountID string, params *stripe.AccountParams) (*stripe.Account, error)
	NewAccountLink(params *stripe.AccountLinkParams) (*stripe.AccountLink, error)
	GetPrice(priceID string, params *stripe.PriceParams) (*stripe.Price, error)
	NewCheckoutSession(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
	NewPaymentIntent(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
}

type stripeAPI struct {
	api *client.API
}

// NewAPI returns the production API bound to a secret key.
func NewAPI(secretKey string) API {
	return &stripeAPI{api: client.New(secretKey, nil)}
}

func (wrapper *stripeAPI) NewAccount(params *stripe.AccountParams) (*stripe.Account, error) {
	return wrapper.api.Accounts.New(params)
}

func (wrapper *stripeAPI) GetAccount(accountID string, params *stripe.AccountParams) (*stripe.Account, error) {
	return wrapper.api.Accounts.GetByID(accountID, params)
}

func (wrapper *stripeAPI) NewAccountLink(params *stripe.AccountLinkParams) (*stripe.AccountLink, error) {
	return wrapper.api.AccountLinks.New(params)
}

func (wrapper *stripeAPI) GetPrice(priceID string, params *stripe.PriceParams) (*stripe.Price, error) {
	return wrapper.api.Prices.Get(priceID, params)
}

func (wrapper *stripeAPI) NewCheckoutSession(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	return wrapper.api.CheckoutSessions.New(params)
}

func (wrapper *stripeAPI) NewPaymentIntent(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
	return wrapper.api.PaymentIntents.New(params)
}

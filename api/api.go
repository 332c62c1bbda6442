// Package api provides the HTTP API of the dashboard backend
//
//	@title						Dashboard Backend API
//	@version					1.0
//	@description				Agents, demand analytics and payments backend
//
//	@host						localhost:8080
//	@BasePath					/
//	@schemes					http https
//
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				Type "Bearer" followed by a space and the JWT token.
//
//	@tag.name					functions
//	@tag.description			Engine and payment functions
//
//	@tag.name					dashboard
//	@tag.description			Aggregated metrics
//
//	@tag.name					payments
//	@tag.description			Payment recording
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/jwtauth/v5"
	"github.com/jrsmidia8602-ctrl/remix-of-pixel-perfect-sub001/audit"
	"github.com/jrsmidia8602-ctrl/remix-of-pixel-perfect-sub001/brain"
	"github.com/jrsmidia8602-ctrl/remix-of-pixel-perfect-sub001/dashboard"
	"github.com/jrsmidia8602-ctrl/remix-of-pixel-perfect-sub001/db"
	"github.com/jrsmidia8602-ctrl/remix-of-pixel-perfect-sub001/orchestrator"
	"github.com/jrsmidia8602-ctrl/remix-of-pixel-perfect-sub001/radar"
	"github.com/jrsmidia8602-ctrl/remix-of-pixel-perfect-sub001/realtime"
	"github.com/jrsmidia8602-ctrl/remix-of-pixel-perfect-sub001/scheduler"
	"github.com/jrsmidia8602-ctrl/remix-of-pixel-perfect-sub001/stripe"
	"github.com/jrsmidia8602-ctrl/remix-of-pixel-perfect-sub001/validator"
	"go.vocdoni.io/dvote/log"
)

const (
	requestTimeout = 45 * time.Second
	// maxBodyBytes limits the body of function calls.
	maxBodyBytes = int64(1 << 20)
)

// PaymentStore is the storage used to record crypto payments.
type PaymentStore interface {
	CreatePayment(ctx context.Context, p *db.Payment) error
}

// Config holds the components served by the API. Nil engines are not
// exposed; a nil Stripe service makes the payment functions answer 503.
type Config struct {
	Host           string
	Port           int
	Secret         string
	AllowedOrigins []string

	Payments     PaymentStore
	Stripe       *stripe.Service
	Scheduler    *scheduler.Scheduler
	Radar        *radar.Radar
	Auditor      *audit.Auditor
	Brain        *brain.Brain
	Orchestrator *orchestrator.Orchestrator
	Dashboard    *dashboard.Dashboard
	Hub          *realtime.Hub
}

// API type represents the API HTTP server with JWT authentication capabilities.
type API struct {
	auth           *jwtauth.JWTAuth
	host           string
	port           int
	router         *chi.Mux
	server         *http.Server
	allowedOrigins []string
	validator      *validator.Validator
	functions      map[string]*function

	payments     PaymentStore
	stripe       *stripe.Service
	scheduler    *scheduler.Scheduler
	radar        *radar.Radar
	auditor      *audit.Auditor
	brain        *brain.Brain
	orchestrator *orchestrator.Orchestrator
	dashboard    *dashboard.Dashboard
	hub          *realtime.Hub
}

// New creates a new API HTTP server. It does not start the server. Use Start() for that.
func New(conf *Config) *API {
	if conf == nil {
		return nil
	}
	origins := conf.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	a := &API{
		auth:           jwtauth.New("HS256", []byte(conf.Secret), nil),
		host:           conf.Host,
		port:           conf.Port,
		allowedOrigins: origins,
		validator:      validator.New(),
		payments:       conf.Payments,
		stripe:         conf.Stripe,
		scheduler:      conf.Scheduler,
		radar:          conf.Radar,
		auditor:        conf.Auditor,
		brain:          conf.Brain,
		orchestrator:   conf.Orchestrator,
		dashboard:      conf.Dashboard,
		hub:            conf.Hub,
	}
	a.functions = a.registerFunctions()
	return a
}

// Start starts the API HTTP server (non blocking).
func (a *API) Start() {
	a.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", a.host, a.port),
		Handler:           a.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("failed to start the API server: %v", err)
		}
	}()
	log.Infow("API server listening", "address", a.server.Addr)
}

// Shutdown stops accepting connections and waits for the in flight requests.
func (a *API) Shutdown(ctx context.Context) error {
	if a.server == nil {
		return nil
	}
	return a.server.Shutdown(ctx)
}

// Router returns the router with all the routes and middleware, building it
// on first use.
func (a *API) Router() http.Handler {
	if a.router == nil {
		a.router = a.initRouter()
	}
	return a.router
}

// initRouter creates the router with all the routes and middleware.
func (a *API) initRouter() *chi.Mux {
	r := chi.NewRouter()
	r.Use(cors.New(cors.Options{
		AllowedOrigins:   a.allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token", "Stripe-Signature"},
		AllowCredentials: true,
		MaxAge:           300, // Maximum value not ignored by any of major browsers
	}).Handler)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// websocket connections outlive the request timeout
	if a.hub != nil {
		r.Group(func(r chi.Router) {
			r.Use(jwtauth.Verify(a.auth, jwtauth.TokenFromHeader, tokenFromQuery))
			r.Use(a.authenticator)
			log.Infow("new route", "method", "GET", "path", realtimeEndpoint)
			r.Get(realtimeEndpoint, a.hub.ServeWS)
		})
	}

	r.Group(func(r chi.Router) {
		r.Use(middleware.Throttle(100))
		r.Use(middleware.ThrottleBacklog(5000, 40000, 60*time.Second))
		r.Use(middleware.Timeout(requestTimeout))

		// protected routes
		r.Group(func(r chi.Router) {
			// seek, verify and validate JWT tokens
			r.Use(jwtauth.Verifier(a.auth))
			// handle valid JWT tokens
			r.Use(a.authenticator)
			// run an engine or payment function
			log.Infow("new route", "method", "POST", "path", functionEndpoint)
			r.Post(functionEndpoint, a.functionHandler)
			// dashboard aggregates
			log.Infow("new route", "method", "GET", "path", dashboardMetricsEndpoint)
			r.Get(dashboardMetricsEndpoint, a.dashboardMetricsHandler)
			log.Infow("new route", "method", "GET", "path", dashboardPaymentsEndpoint)
			r.Get(dashboardPaymentsEndpoint, a.dashboardPaymentsHandler)
			log.Infow("new route", "method", "GET", "path", dashboardPaymentEndpoint)
			r.Get(dashboardPaymentEndpoint, a.dashboardPaymentHandler)
			// record a crypto payment
			log.Infow("new route", "method", "POST", "path", cryptoPaymentsEndpoint)
			r.With(a.validateInputModel(cryptoPaymentModel), a.InputValidator).
				Post(cryptoPaymentsEndpoint, a.cryptoPaymentHandler)
		})

		// public routes
		r.Group(func(r chi.Router) {
			log.Infow("new route", "method", "GET", "path", pingEndpoint)
			r.Get(pingEndpoint, func(w http.ResponseWriter, _ *http.Request) {
				if _, err := w.Write([]byte(".")); err != nil {
					log.Warnw("failed to write ping response", "error", err)
				}
			})
			// handle stripe webhook
			log.Infow("new route", "method", "POST", "path", stripeWebhookEndpoint)
			r.Post(stripeWebhookEndpoint, a.stripeWebhookHandler)
		})
	})
	return r
}

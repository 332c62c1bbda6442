package api

const (
	// ping route
	pingEndpoint = "/ping"

	// functions routes
	functionEndpoint      = "/functions/{name}"
	stripeWebhookEndpoint = "/functions/stripe-webhook"

	// dashboard routes
	dashboardMetricsEndpoint  = "/dashboard/metrics"
	dashboardPaymentsEndpoint = "/dashboard/payments"
	dashboardPaymentEndpoint  = "/dashboard/payments/{paymentID}"

	// payments routes
	cryptoPaymentsEndpoint = "/payments/crypto"

	// realtime route
	realtimeEndpoint = "/realtime"
)

// Function names served under functionEndpoint.
const (
	agentSchedulerFunction       = "agent-scheduler"
	systemAuditFunction          = "system-audit"
	demandRadarFunction          = "demand-radar"
	orchestratorFunction         = "full-power-orchestrator"
	neuralBrainFunction          = "neural-brain"
	createCheckoutFunction       = "create-checkout"
	checkConnectStatusFunction   = "check-connect-status"
	listStripePaymentsFunction   = "list-stripe-payments"
	createConnectAccountFunction = "create-connect-account"
)

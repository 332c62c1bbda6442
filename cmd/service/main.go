package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jrsmidia8602-ctrl/remix-of-pixel-perfect-sub001/api"
	"github.com/jrsmidia8602-ctrl/remix-of-pixel-perfect-sub001/audit"
	"github.com/jrsmidia8602-ctrl/remix-of-pixel-perfect-sub001/brain"
	"github.com/jrsmidia8602-ctrl/remix-of-pixel-perfect-sub001/dashboard"
	"github.com/jrsmidia8602-ctrl/remix-of-pixel-perfect-sub001/db"
	"github.com/jrsmidia8602-ctrl/remix-of-pixel-perfect-sub001/notifications"
	"github.com/jrsmidia8602-ctrl/remix-of-pixel-perfect-sub001/notifications/smtp"
	"github.com/jrsmidia8602-ctrl/remix-of-pixel-perfect-sub001/notifications/twilio"
	"github.com/jrsmidia8602-ctrl/remix-of-pixel-perfect-sub001/objectstorage"
	"github.com/jrsmidia8602-ctrl/remix-of-pixel-perfect-sub001/orchestrator"
	"github.com/jrsmidia8602-ctrl/remix-of-pixel-perfect-sub001/radar"
	"github.com/jrsmidia8602-ctrl/remix-of-pixel-perfect-sub001/realtime"
	"github.com/jrsmidia8602-ctrl/remix-of-pixel-perfect-sub001/scheduler"
	"github.com/jrsmidia8602-ctrl/remix-of-pixel-perfect-sub001/stripe"
	"github.com/jrsmidia8602-ctrl/remix-of-pixel-perfect-sub001/triggers"
	flag "github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.vocdoni.io/dvote/log"
)

const shutdownTimeout = 30 * time.Second

func main() {
	// define flags
	flag.StringP("host", "h", "0.0.0.0", "listen address")
	flag.IntP("port", "p", 8080, "listen port")
	flag.StringP("secret", "s", "", "HS256 secret used to verify the JWT tokens")
	flag.StringSlice("allowed-origins", []string{"*"}, "origins allowed by CORS and the realtime websocket")
	flag.String("logLevel", "info", "log level (debug, info, warn, error)")
	flag.String("postgres-url", "", "The URL of the Postgres server")
	flag.String("redis-url", "", "Redis URL shared by the replicas to store processed Stripe events")
	// stripe
	flag.String("stripe-api-key", "", "Stripe secret or restricted API key")
	flag.String("stripe-webhook-secret", "", "Stripe webhook signing secret")
	flag.String("stripe-connect-country", "", "default country of new Connect accounts")
	// brain
	flag.String("ai-endpoint", "", "OpenAI compatible chat completions base URL")
	flag.String("ai-api-key", "", "API key of the completion endpoint")
	flag.String("ai-model", "gpt-4o-mini", "model used by the brain")
	flag.Bool("brain-apply", false, "apply the budget adjustments decided by scheduled brain runs")
	// audit report archival
	flag.String("s3-bucket", "", "bucket where audit reports are archived, empty disables archival")
	flag.String("s3-region", "", "region of the audit reports bucket")
	flag.String("s3-endpoint", "", "endpoint of an S3 compatible service")
	flag.String("s3-access-key", "", "S3 access key, the default credential chain is used when empty")
	flag.String("s3-secret-key", "", "S3 secret key")
	flag.String("s3-public-url", "", "public base URL of the archived reports")
	// alerting
	flag.String("smtp-server", "", "SMTP server")
	flag.Int("smtp-port", 587, "SMTP server port")
	flag.String("smtp-username", "", "SMTP username")
	flag.String("smtp-password", "", "SMTP password")
	flag.String("smtp-from-address", "", "sender address of the alert emails")
	flag.String("smtp-from-name", "Operations Dashboard", "sender name of the alert emails")
	flag.String("twilio-account-sid", "", "Twilio account SID")
	flag.String("twilio-auth-token", "", "Twilio auth token")
	flag.String("twilio-from-number", "", "Twilio sender number")
	flag.String("alert-email", "", "operator emails (comma separated) notified of critical audits")
	flag.String("alert-phone", "", "operator phone notified of critical audits")
	// triggers
	flag.String("cron-orchestrator", "*/15 * * * *", "orchestrator cycle schedule, empty disables it")
	flag.String("cron-audit", "0 * * * *", "system audit schedule, empty disables it")
	flag.String("cron-brain", "", "brain think schedule, empty disables it")
	// scheduler
	flag.Int("scheduler-max-agents", 0, "maximum agents selected per run, 0 uses the default")
	flag.Int64("scheduler-run-budget", 0, "maximum cents spent per run, 0 disables the limit")
	flag.Int("scheduler-workers", 0, "concurrent agent executions, 0 uses the default")
	// parse flags
	flag.Parse()
	// initialize Viper
	viper.SetEnvPrefix("DASHBOARD")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	if err := viper.BindPFlags(flag.CommandLine); err != nil {
		panic(err)
	}
	viper.AutomaticEnv()
	log.Init(viper.GetString("logLevel"), "stdout", nil)
	// read the configuration
	host := viper.GetString("host")
	port := viper.GetInt("port")
	secret := viper.GetString("secret")
	if secret == "" {
		log.Fatal("secret is required")
	}
	postgresURL := viper.GetString("postgres-url")
	if postgresURL == "" {
		log.Fatal("postgres-url is required")
	}
	origins := viper.GetStringSlice("allowed-origins")

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// initialize the Postgres database
	database, err := db.New(postgresURL)
	if err != nil {
		log.Fatalf("could not create the Postgres database: %v", err)
	}
	defer database.Close()

	stripeService := newStripeService(ctx, database)
	if stripeService != nil {
		defer func() {
			if err := stripeService.Close(); err != nil {
				log.Warnw("could not close the stripe event store", "error", err)
			}
		}()
	}

	var completer brain.Completer
	if endpoint := viper.GetString("ai-endpoint"); endpoint != "" {
		completer = brain.NewCompletionClient(endpoint, viper.GetString("ai-api-key"),
			viper.GetString("ai-model"), nil)
		log.Infow("AI completion endpoint configured", "endpoint", endpoint, "model", completer.Model())
	}

	// engines
	sched := scheduler.New(&scheduler.Config{
		DB:             database,
		MaxAgents:      viper.GetInt("scheduler-max-agents"),
		RunBudgetCents: viper.GetInt64("scheduler-run-budget"),
		Workers:        viper.GetInt("scheduler-workers"),
	})
	demandRadar := radar.New(database)
	thinker := brain.New(&brain.Config{DB: database, Completer: completer})
	auditConf := &audit.Config{
		DB:       database,
		Notifier: newDispatcher(),
		Archiver: newArchiver(ctx),
	}
	if stripeService != nil {
		auditConf.Stripe = stripeService
	}
	auditor := audit.New(auditConf)
	orch := orchestrator.New(&orchestrator.Config{
		DB:         database,
		Radar:      demandRadar,
		Brain:      thinker,
		Scheduler:  sched,
		Auditor:    auditor,
		ApplyBrain: viper.GetBool("brain-apply"),
	})
	metrics := dashboard.New(database, dashboard.DefaultCacheTTL)

	// realtime fan-out of table changes
	hub := realtime.NewHub(origins)
	defer hub.Close()
	go func() {
		err := realtime.NewListener(postgresURL).Listen(ctx, func(ch *realtime.Change) {
			metrics.Invalidate()
			hub.Broadcast(ch)
		})
		if err != nil {
			log.Warnw("realtime listener stopped", "error", err)
		}
	}()

	// scheduled cycles
	cronJobs, err := triggers.New(&triggers.Config{
		Orchestrator:     orch,
		OrchestratorSpec: viper.GetString("cron-orchestrator"),
		Auditor:          auditor,
		AuditSpec:        viper.GetString("cron-audit"),
		Brain:            thinker,
		BrainSpec:        viper.GetString("cron-brain"),
		ApplyBrain:       viper.GetBool("brain-apply"),
	})
	if err != nil {
		log.Fatalf("could not schedule the triggers: %v", err)
	}
	cronJobs.Start()

	// create the local API server
	server := api.New(&api.Config{
		Host:           host,
		Port:           port,
		Secret:         secret,
		AllowedOrigins: origins,
		Payments:       database,
		Stripe:         stripeService,
		Scheduler:      sched,
		Radar:          demandRadar,
		Auditor:        auditor,
		Brain:          thinker,
		Orchestrator:   orch,
		Dashboard:      metrics,
		Hub:            hub,
	})
	server.Start()
	log.Infow("server started", "host", host, "port", port, "jobs", cronJobs.Jobs())

	// wait for a termination signal
	<-ctx.Done()
	log.Infow("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warnw("API server shutdown failed", "error", err)
	}
	cronJobs.Stop(shutdownCtx)
}

// newStripeService returns nil when no API key is configured. Processed
// webhook events are shared through Redis when redis-url is set.
func newStripeService(ctx context.Context, database *db.PostgresStorage) *stripe.Service {
	apiKey := viper.GetString("stripe-api-key")
	if apiKey == "" {
		log.Warnw("stripe API key not set, payment functions are disabled")
		return nil
	}
	webhookSecret := viper.GetString("stripe-webhook-secret")
	if webhookSecret == "" {
		log.Fatalf("stripe-webhook-secret is required when stripe-api-key is set")
	}
	conf, err := stripe.NewConfig(apiKey, webhookSecret)
	if err != nil {
		log.Fatalf("invalid stripe configuration: %v", err)
	}
	if country := viper.GetString("stripe-connect-country"); country != "" {
		conf.ConnectCountry = strings.ToUpper(country)
	}
	var events stripe.EventStore
	if redisURL := viper.GetString("redis-url"); redisURL != "" {
		store, err := stripe.NewRedisEventStore(ctx, redisURL, conf.EventTTL)
		if err != nil {
			log.Fatalf("could not connect to redis: %v", err)
		}
		events = store
	}
	service, err := stripe.NewService(conf, database, nil, events)
	if err != nil {
		log.Fatalf("could not create the stripe service: %v", err)
	}
	log.Infow("stripe service configured", "live", conf.LiveMode(), "sharedEvents", events != nil)
	return service
}

// newDispatcher builds the alert channels that are fully configured.
func newDispatcher() *notifications.Dispatcher {
	dispatcher := &notifications.Dispatcher{
		Email: viper.GetString("alert-email"),
		Phone: viper.GetString("alert-phone"),
	}
	if server := viper.GetString("smtp-server"); server != "" {
		mail := new(smtp.Email)
		if err := mail.New(&smtp.Config{
			FromName:     viper.GetString("smtp-from-name"),
			FromAddress:  viper.GetString("smtp-from-address"),
			SMTPServer:   server,
			SMTPPort:     viper.GetInt("smtp-port"),
			SMTPUsername: viper.GetString("smtp-username"),
			SMTPPassword: viper.GetString("smtp-password"),
		}); err != nil {
			log.Fatalf("could not create the SMTP email service: %v", err)
		}
		dispatcher.Mail = mail
	}
	if sid := viper.GetString("twilio-account-sid"); sid != "" {
		sms := new(twilio.TwilioSMS)
		if err := sms.New(&twilio.TwilioConfig{
			AccountSid: sid,
			AuthToken:  viper.GetString("twilio-auth-token"),
			FromNumber: viper.GetString("twilio-from-number"),
		}); err != nil {
			log.Fatalf("could not create the Twilio SMS service: %v", err)
		}
		dispatcher.SMS = sms
	}
	if !dispatcher.Enabled() {
		log.Infow("audit alerts disabled")
	}
	return dispatcher
}

// newArchiver returns nil when no bucket is configured.
func newArchiver(ctx context.Context) audit.Archiver {
	bucket := viper.GetString("s3-bucket")
	if bucket == "" {
		return nil
	}
	client, err := objectstorage.New(ctx, &objectstorage.Config{
		Bucket:    bucket,
		Region:    viper.GetString("s3-region"),
		Endpoint:  viper.GetString("s3-endpoint"),
		AccessKey: viper.GetString("s3-access-key"),
		SecretKey: viper.GetString("s3-secret-key"),
		PublicURL: viper.GetString("s3-public-url"),
	})
	if err != nil {
		log.Fatalf("could not create the object storage client: %v", err)
	}
	log.Infow("audit reports archived", "bucket", bucket)
	return client
}

package main

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/MarkoPoloResearchLab/storagehub/internal/batch"
	"github.com/MarkoPoloResearchLab/storagehub/internal/httpapi"
	"github.com/MarkoPoloResearchLab/storagehub/internal/store/gormstore"
	"github.com/MarkoPoloResearchLab/storagehub/internal/stripeconnect"
	"github.com/MarkoPoloResearchLab/storagehub/pkg/occupancy"
	"github.com/glebarez/sqlite"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

const (
	flagDatabaseURL     = "database-url"
	flagListenAddr      = "listen-addr"
	flagAPIKey          = "api-key"
	flagJWTSecret       = "jwt-secret"
	flagAllowedOrigins  = "allowed-origins"
	flagStripeKey       = "stripe-secret-key"
	flagWebhookSecret   = "stripe-webhook-secret"
	flagFrontendURL     = "frontend-url"
	flagSweepSchedule   = "sweep-schedule"
	flagAccrualSchedule = "accrual-schedule"

	configKeyDatabaseURL     = "database_url"
	configKeyListenAddr      = "listen_addr"
	configKeyAPIKey          = "api_key"
	configKeyJWTSecret       = "jwt_secret"
	configKeyAllowedOrigins  = "allowed_origins"
	configKeyStripeKey       = "stripe_secret_key"
	configKeyWebhookSecret   = "stripe_webhook_secret"
	configKeyFrontendURL     = "frontend_url"
	configKeySweepSchedule   = "sweep_schedule"
	configKeyAccrualSchedule = "accrual_schedule"

	defaultDatabaseURL = "sqlite:///tmp/storagehub.db"
	defaultListenAddr  = ":8080"
	defaultFrontendURL = "http://localhost:3000"
)

type runtimeConfig struct {
	DatabaseURL         string
	ListenAddr          string
	APIKey              string
	JWTSecret           string
	AllowedOrigins      string
	StripeSecretKey     string
	StripeWebhookSecret string
	FrontendURL         string
	SweepSchedule       string
	AccrualSchedule     string
}

func main() {
	cmd := newRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "storaged: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cfg := &runtimeConfig{}
	root := &cobra.Command{
		Use:           "storaged",
		Short:         "Self-storage management platform server",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return loadConfig(cmd, cfg)
		},
	}

	flags := root.PersistentFlags()
	flags.String(flagDatabaseURL, defaultDatabaseURL, "PostgreSQL or SQLite connection string")
	flags.String(flagListenAddr, defaultListenAddr, "HTTP listen address")
	flags.String(flagAPIKey, "", "shared API key required on every API request")
	flags.String(flagJWTSecret, "", "HMAC secret for session tokens")
	flags.String(flagAllowedOrigins, "", "comma-delimited CORS origins")
	flags.String(flagStripeKey, "", "Stripe secret key")
	flags.String(flagWebhookSecret, "", "Stripe webhook signing secret")
	flags.String(flagFrontendURL, defaultFrontendURL, "operator frontend base URL for redirects")
	flags.String(flagSweepSchedule, batch.DefaultSweepSchedule, "cron schedule for the delinquency sweep")
	flags.String(flagAccrualSchedule, batch.DefaultAccrualSchedule, "cron schedule for monthly accrual")

	root.AddCommand(newServeCommand(cfg))
	root.AddCommand(newSweepCommand(cfg))
	root.AddCommand(newAccrueCommand(cfg))
	root.AddCommand(newJobsCommand(cfg))
	root.AddCommand(newCreateUserCommand(cfg))
	return root
}

func newCreateUserCommand(cfg *runtimeConfig) *cobra.Command {
	var email, password, role, companyID string
	cmd := &cobra.Command{
		Use:   "create-user",
		Short: "Create an operator account for the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			switch role {
			case gormstore.RoleSystemAdmin, gormstore.RoleSystemUser:
			case gormstore.RoleCompanyAdmin:
				if companyID == "" {
					return fmt.Errorf("role %s requires --company-id", role)
				}
			default:
				return fmt.Errorf("unknown role %q", role)
			}
			svc, err := buildServices(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer func() { _ = svc.cleanup() }()
			hash, err := httpapi.HashPassword(password)
			if err != nil {
				return fmt.Errorf("hash password: %w", err)
			}
			user := gormstore.User{
				Email:        strings.ToLower(strings.TrimSpace(email)),
				PasswordHash: hash,
				Role:         role,
			}
			if companyID != "" {
				user.CompanyID = &companyID
			}
			if err := svc.store.CreateUser(cmd.Context(), &user); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), user.UserID)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "login email")
	cmd.Flags().StringVar(&password, "password", "", "login password")
	cmd.Flags().StringVar(&role, "role", gormstore.RoleSystemUser, "system_admin, system_user, or company_admin")
	cmd.Flags().StringVar(&companyID, "company-id", "", "company scope for company_admin accounts")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func newServeCommand(cfg *runtimeConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServer(ctx, cfg)
		},
	}
}

func newSweepCommand(cfg *runtimeConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep-delinquency",
		Short: "Mark tenants with outstanding balances delinquent and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOnce(cmd.Context(), cfg, func(ctx context.Context, runner *batch.Runner) error {
				_, err := runner.RunSweep(ctx)
				return err
			})
		},
	}
}

func newAccrueCommand(cfg *runtimeConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "accrue-monthly",
		Short: "Add one month of rent to every billable tenant and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOnce(cmd.Context(), cfg, func(ctx context.Context, runner *batch.Runner) error {
				_, err := runner.RunAccrual(ctx)
				return err
			})
		},
	}
}

func newJobsCommand(cfg *runtimeConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "jobs",
		Short: "Run the billing jobs on their cron schedules",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runOnce(ctx, cfg, func(ctx context.Context, runner *batch.Runner) error {
				return runner.Schedule(ctx, cfg.SweepSchedule, cfg.AccrualSchedule)
			})
		},
	}
}

func loadConfig(cmd *cobra.Command, cfg *runtimeConfig) error {
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	bindings := map[string]string{
		configKeyDatabaseURL:     "DATABASE_URL",
		configKeyListenAddr:      "LISTEN_ADDR",
		configKeyAPIKey:          "API_KEY",
		configKeyJWTSecret:       "JWT_SECRET",
		configKeyAllowedOrigins:  "ALLOWED_ORIGINS",
		configKeyStripeKey:       "STRIPE_SECRET_KEY",
		configKeyWebhookSecret:   "STRIPE_WEBHOOK_SECRET",
		configKeyFrontendURL:     "FRONTEND_URL",
		configKeySweepSchedule:   "SWEEP_SCHEDULE",
		configKeyAccrualSchedule: "ACCRUAL_SCHEDULE",
	}
	for key, env := range bindings {
		if err := viper.BindEnv(key, env); err != nil {
			return err
		}
	}
	flagNames := map[string]string{
		configKeyDatabaseURL:     flagDatabaseURL,
		configKeyListenAddr:      flagListenAddr,
		configKeyAPIKey:          flagAPIKey,
		configKeyJWTSecret:       flagJWTSecret,
		configKeyAllowedOrigins:  flagAllowedOrigins,
		configKeyStripeKey:       flagStripeKey,
		configKeyWebhookSecret:   flagWebhookSecret,
		configKeyFrontendURL:     flagFrontendURL,
		configKeySweepSchedule:   flagSweepSchedule,
		configKeyAccrualSchedule: flagAccrualSchedule,
	}
	for key, name := range flagNames {
		if err := viper.BindPFlag(key, cmd.Flags().Lookup(name)); err != nil {
			return err
		}
	}

	cfg.DatabaseURL = viper.GetString(configKeyDatabaseURL)
	cfg.ListenAddr = viper.GetString(configKeyListenAddr)
	cfg.APIKey = viper.GetString(configKeyAPIKey)
	cfg.JWTSecret = viper.GetString(configKeyJWTSecret)
	cfg.AllowedOrigins = viper.GetString(configKeyAllowedOrigins)
	cfg.StripeSecretKey = viper.GetString(configKeyStripeKey)
	cfg.StripeWebhookSecret = viper.GetString(configKeyWebhookSecret)
	cfg.FrontendURL = viper.GetString(configKeyFrontendURL)
	cfg.SweepSchedule = viper.GetString(configKeySweepSchedule)
	cfg.AccrualSchedule = viper.GetString(configKeyAccrualSchedule)

	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = defaultDatabaseURL
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = defaultListenAddr
	}
	if cfg.FrontendURL == "" {
		cfg.FrontendURL = defaultFrontendURL
	}
	return nil
}

// operationLogSink forwards occupancy operation callbacks to zap.
type operationLogSink struct {
	logger *zap.Logger
}

func (sink operationLogSink) LogOperation(_ context.Context, entry occupancy.OperationLog) {
	fields := []zap.Field{
		zap.String("operation", entry.Operation),
		zap.String("status", entry.Status),
	}
	if tenantID := entry.TenantID.String(); tenantID != "" {
		fields = append(fields, zap.String("tenant_id", tenantID))
	}
	if unitID := entry.UnitID.String(); unitID != "" {
		fields = append(fields, zap.String("unit_id", unitID))
	}
	if amount := entry.Amount.Int64(); amount != 0 {
		fields = append(fields, zap.Int64("amount_cents", amount))
	}
	if entry.Error != nil {
		sink.logger.Warn("occupancy operation failed", append(fields, zap.Error(entry.Error))...)
		return
	}
	sink.logger.Info("occupancy operation", fields...)
}

type services struct {
	store     *gormstore.Store
	occupancy *occupancy.Service
	stripe    *stripeconnect.Service
	logger    *zap.Logger
	cleanup   func() error
}

func buildServices(ctx context.Context, cfg *runtimeConfig) (*services, error) {
	logger, err := zap.NewProduction()
	if err != nil {
		return nil, fmt.Errorf("logger init: %w", err)
	}

	gormDB, cleanup, err := openDatabase(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("database open: %w", err)
	}
	if err := gormDB.AutoMigrate(gormstore.AllModels()...); err != nil {
		_ = cleanup()
		return nil, fmt.Errorf("auto migrate: %w", err)
	}

	store := gormstore.New(gormDB)
	clock := func() int64 { return time.Now().UTC().Unix() }
	occupancyService, err := occupancy.NewService(store, clock,
		occupancy.WithOperationLogger(operationLogSink{logger: logger}))
	if err != nil {
		_ = cleanup()
		return nil, fmt.Errorf("occupancy service init: %w", err)
	}

	frontend := strings.TrimRight(cfg.FrontendURL, "/")
	stripeService, err := stripeconnect.NewService(
		stripeconnect.NewAPI(cfg.StripeSecretKey),
		store,
		occupancyService,
		stripeconnect.Config{
			OnboardingReturnURL:  frontend + "/onboarding/return",
			OnboardingRefreshURL: frontend + "/onboarding/refresh",
			CheckoutSuccessURL:   frontend + "/checkout/success",
			CheckoutCancelURL:    frontend + "/checkout/cancel",
			WebhookSecret:        cfg.StripeWebhookSecret,
		},
		logger,
	)
	if err != nil {
		_ = cleanup()
		return nil, fmt.Errorf("stripe service init: %w", err)
	}

	return &services{
		store:     store,
		occupancy: occupancyService,
		stripe:    stripeService,
		logger:    logger,
		cleanup:   cleanup,
	}, nil
}

func runServer(ctx context.Context, cfg *runtimeConfig) error {
	svc, err := buildServices(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = svc.cleanup() }()
	defer func() { _ = svc.logger.Sync() }()

	apiConfig := httpapi.Config{
		ListenAddr:     cfg.ListenAddr,
		AllowedOrigins: httpapi.ParseAllowedOrigins(cfg.AllowedOrigins),
		APIKey:         cfg.APIKey,
		JWTSecret:      cfg.JWTSecret,
	}
	return httpapi.Run(ctx, apiConfig, httpapi.Dependencies{
		Logger:    svc.logger,
		Store:     svc.store,
		Occupancy: svc.occupancy,
		Stripe:    svc.stripe,
	})
}

func runOnce(ctx context.Context, cfg *runtimeConfig, fn func(ctx context.Context, runner *batch.Runner) error) error {
	svc, err := buildServices(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = svc.cleanup() }()
	defer func() { _ = svc.logger.Sync() }()

	runner, err := batch.NewRunner(svc.occupancy, svc.logger)
	if err != nil {
		return err
	}
	return fn(ctx, runner)
}

func openDatabase(ctx context.Context, dsn string) (*gorm.DB, func() error, error) {
	driver, sqlitePath, err := resolveDriver(dsn)
	if err != nil {
		return nil, nil, err
	}

	var db *gorm.DB
	gormConfig := &gorm.Config{}
	switch driver {
	case "postgres":
		db, err = gorm.Open(postgres.Open(dsn), gormConfig)
	case "sqlite":
		db, err = gorm.Open(sqlite.Open(sqlitePath), gormConfig)
	default:
		return nil, nil, fmt.Errorf("unsupported database scheme %q", driver)
	}
	if err != nil {
		return nil, nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() error { return sqlDB.Close() }
	return db.WithContext(ctx), cleanup, nil
}

func resolveDriver(dsn string) (string, string, error) {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return "postgres", "", nil
	}
	if strings.HasPrefix(dsn, "sqlite://") {
		u, err := url.Parse(dsn)
		if err != nil {
			return "", "", fmt.Errorf("parse sqlite url: %w", err)
		}
		path := u.Path
		if path == "" {
			path = u.Host
		}
		if path == "" || path == "/" {
			path = "storagehub.db"
		}
		sqlitePath, err := normalizeSQLitePath(path)
		return "sqlite", sqlitePath, err
	}
	// Treat everything else as a direct sqlite path.
	sqlitePath, err := normalizeSQLitePath(dsn)
	return "sqlite", sqlitePath, err
}

func normalizeSQLitePath(path string) (string, error) {
	if path == ":memory:" {
		return path, nil
	}
	if strings.HasPrefix(path, "/") {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return "", err
		}
		return path, nil
	}
	abs := filepath.Join(".", path)
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return "", err
	}
	return abs, nil
}

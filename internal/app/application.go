package app

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"classroom/internal/api"
	"classroom/internal/auth"
	"classroom/internal/config"
	"classroom/internal/credentials"
	"classroom/internal/join"
	"classroom/internal/session"
	"classroom/internal/workspace"
	pkgdatabase "classroom/pkg/database"
)

// Application coordinates all client components
// Clean dependency injection with a single auth writer and many readers
type Application struct {
	config *config.Config
	logger zerolog.Logger
	auth   *auth.Holder
	client *api.Client
	creds  *credentials.Store
	join   *join.Flow
}

// NewApplication creates an application with all components initialized
// Component initialization follows strict dependency order:
// Credential store → Auth state → API client → Join flow
func NewApplication(cfg *config.Config, logger zerolog.Logger) (*Application, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}

	// Validate configuration before component initialization
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	app := &Application{config: cfg, logger: logger}

	// STEP 1: Open the local credential store (migrations applied on open)
	dbConfig := pkgdatabase.DefaultConfig()
	dbConfig.DatabasePath = cfg.Store.Path
	dbConfig.WriteTimeout = cfg.Store.Timeout

	creds, err := credentials.Open(dbConfig, logger.With().Str("component", "credentials").Logger())
	if err != nil {
		return nil, fmt.Errorf("failed to open credential store: %w", err)
	}
	app.creds = creds

	// STEP 2: API client; the token is read through the auth holder on every call
	app.client = api.NewClient(api.Options{
		BaseURL:   cfg.API.BaseURL,
		Timeout:   cfg.API.Timeout,
		UserAgent: cfg.API.UserAgent,
		Tokens:    api.TokenFunc(func() string { return app.auth.AccessToken() }),
		Logger:    logger.With().Str("component", "api").Logger(),
		OnUnauthorized: func(ctx context.Context) {
			app.join.HandleUnauthorized(context.WithoutCancel(ctx))
		},
	})

	// STEP 3: Auth state is the only writer of the user token
	app.auth = auth.NewHolder(cfg.Auth.AccessToken, app.client.Login, logger.With().Str("component", "auth").Logger())

	// STEP 4: Participant join flow
	app.join = join.NewFlow(app.client, creds, app.auth, join.Options{
		CacheSize: cfg.Join.LookupCacheSize,
		CacheTTL:  cfg.Join.LookupCacheTTL,
		Logger:    logger.With().Str("component", "join").Logger(),
	})

	logger.Debug().Str("base_url", cfg.API.BaseURL).Str("store", cfg.Store.Path).Msg("application initialized")
	return app, nil
}

// Config returns the loaded configuration
func (app *Application) Config() *config.Config {
	return app.config
}

// Logger returns the root logger
func (app *Application) Logger() zerolog.Logger {
	return app.logger
}

// Auth returns the authentication state holder
func (app *Application) Auth() *auth.Holder {
	return app.auth
}

// Client returns the API client
func (app *Application) Client() *api.Client {
	return app.client
}

// Join returns the participant join flow
func (app *Application) Join() *join.Flow {
	return app.join
}

// Sessions creates a session manager for one workspace.
// Each caller owns its manager; managers are never shared.
func (app *Application) Sessions(workspaceID int64) *session.Manager {
	return session.NewManager(app.client, workspaceID,
		session.WithLogger(app.logger.With().Str("component", "sessions").Logger()),
		session.WithMutationTimeout(app.config.Mutations.Timeout),
	)
}

// Workspaces creates a workspace list manager
func (app *Application) Workspaces() *workspace.Manager {
	return workspace.NewManager(app.client, app.logger.With().Str("component", "workspaces").Logger(),
		workspace.WithMutationTimeout(app.config.Mutations.Timeout),
	)
}

// HealthCheck verifies the local store
func (app *Application) HealthCheck(ctx context.Context) error {
	return app.creds.HealthCheck(ctx)
}

// Close releases the credential store
func (app *Application) Close() error {
	app.logger.Debug().Msg("shutting down")
	if err := app.creds.Close(); err != nil {
		return fmt.Errorf("credential store shutdown: %w", err)
	}
	return nil
}

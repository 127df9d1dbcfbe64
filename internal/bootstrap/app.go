package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"

	"analyzeit/internal/analyses"
	"analyzeit/internal/apiclient"
	"analyzeit/internal/identity"
	"analyzeit/internal/images"
	"analyzeit/internal/ingest"
	"analyzeit/internal/livequery"
	"analyzeit/internal/present"
	"analyzeit/internal/queue"
	"analyzeit/internal/services/health"
	"analyzeit/internal/session"
	"analyzeit/internal/shared/auth"
	"analyzeit/internal/shared/config"
	"analyzeit/internal/shared/ratelimit"
	"analyzeit/internal/shared/server"
	"analyzeit/internal/shared/storage/db"
	"analyzeit/internal/shared/storage/object"
	localstore "analyzeit/internal/shared/storage/object/local"
	s3store "analyzeit/internal/shared/storage/object/s3"
	"analyzeit/internal/shared/telemetry"
	"analyzeit/internal/stats"
	"analyzeit/internal/upload"
	"analyzeit/internal/users"
	"analyzeit/internal/web"
)

const defaultRegion = "us-east-1"

// App holds shared dependencies.
type App struct {
	Config      config.Config
	Router      *gin.Engine
	DB          *sqlx.DB
	Pool        *pgxpool.Pool
	Store       object.Store
	Users       users.Repo
	Records     analyses.Repo
	Broadcaster *livequery.Broadcaster
	Identity    *identity.Service
	Stats       *stats.Cache
	// Listener is nil when records live in memory; the repo publishes
	// changes itself in that case.
	Listener *livequery.PGListener
}

// Build prepares every dependency of the web server and its router.
func Build(ctx context.Context, cfg config.Config) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}
	if strings.TrimSpace(cfg.ObjectStoreType) == "" {
		cfg.ObjectStoreType = "local"
	}

	app := &App{Config: cfg, Broadcaster: livequery.NewBroadcaster()}

	sqlDB, err := buildDB(ctx, cfg, db.DefaultServerOptions())
	if err != nil {
		return nil, err
	}
	app.DB = sqlDB
	if sqlDB != nil {
		pool, err := db.OpenPool(ctx, cfg.DatabaseURL, db.OptionsFromEnv(db.DefaultServerOptions()))
		if err != nil {
			_ = sqlDB.Close()
			return nil, fmt.Errorf("open listen pool: %w", err)
		}
		app.Pool = pool
		app.Users = &users.PGRepo{DB: sqlDB}
		app.Records = &analyses.PGRepo{DB: sqlDB}
		app.Listener = &livequery.PGListener{Pool: pool, Channel: livequery.ChangeChannel, Broadcaster: app.Broadcaster}
	} else {
		app.Users = users.NewMemoryRepo()
		app.Records = analyses.NewMemoryRepo(app.Broadcaster.Publish)
	}

	store, err := BuildStore(ctx, cfg)
	if err != nil {
		app.Close()
		return nil, err
	}
	app.Store = store

	presigner, err := buildPresigner(ctx, cfg, store)
	if err != nil {
		app.Close()
		return nil, err
	}

	if err := buildServices(app, presigner); err != nil {
		app.Close()
		return nil, err
	}
	return app, nil
}

func buildServices(app *App, presigner images.Presigner) error {
	cfg := app.Config

	signer, err := auth.NewSigner(cfg.JWTSecret, cfg.Env)
	if err != nil {
		return fmt.Errorf("token signer: %w", err)
	}

	var providers []*identity.OAuthProvider
	var providerKinds []string
	for _, p := range []*identity.OAuthProvider{
		identity.NewGoogleProvider(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleRedirectURL),
		identity.NewFacebookProvider(cfg.FacebookClientID, cfg.FacebookClientSecret, cfg.FacebookRedirectURL),
	} {
		if p.Configured() {
			providers = append(providers, p)
			providerKinds = append(providerKinds, p.Kind)
		}
	}

	app.Identity = identity.New(identity.Config{
		Users:     app.Users,
		Signer:    signer,
		Providers: providers,
		Limiter:   ratelimit.New(nil),
		PublicURL: cfg.PublicURL,
	})

	app.Stats = stats.NewCache(&stats.Service{
		Records:  app.Records,
		Users:    app.Users,
		Location: cfg.Location(),
	})
	app.Identity.OnIDTokenChanged(func(userID string, cred identity.Credential) {
		if cred.Token == "" {
			app.Stats.Forget(userID)
		}
	})

	analysisAPI, err := apiclient.New(cfg.AnalysisAPIURL, cfg.AnalysisAPITimeout)
	if err != nil {
		return fmt.Errorf("analysis api client: %w", err)
	}
	views := upload.NewViews(analysisAPI, func(userID string) {
		app.Stats.RefreshAfter(userID, stats.RefreshDelay)
	}, upload.DefaultMaxViews, upload.DraftTTL)

	sessions := session.New(app.Identity, cfg.CookieSecure)

	var media web.MediaOpener
	if local, ok := app.Store.(*localstore.Store); ok {
		media = local
	}

	handler, err := web.New(web.Deps{
		Sessions: sessions,
		Resets:   app.Identity,
		Records:  app.Records,
		Live:     livequery.NewEngine(app.Records, app.Broadcaster),
		Views:    views,
		Stats:    app.Stats,
		Presenter: present.Presenter{
			Images:   images.NewResolver(presigner),
			Location: cfg.Location(),
		},
		Media:     media,
		Providers: providerKinds,
	})
	if err != nil {
		return err
	}

	var pinger health.Pinger
	if app.DB != nil {
		pinger = app.DB
	}
	app.Router = server.NewRouter(server.Deps{
		Config:   cfg,
		Sessions: sessions,
		Web:      handler,
		Health:   health.NewService(pinger),
	})
	return nil
}

// Close releases database handles.
func (a *App) Close() {
	if a.Pool != nil {
		a.Pool.Close()
	}
	if a.DB != nil {
		_ = a.DB.Close()
	}
}

// BuildWorker wires the queue consumer. It always needs Postgres: records
// applied by a worker must be visible to the web servers.
func BuildWorker(ctx context.Context, cfg config.Config) (*ingest.Worker, func(), error) {
	if strings.TrimSpace(cfg.QueueURL) == "" {
		return nil, nil, errors.New("RA_SQS_QUEUE_URL is required")
	}
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		return nil, nil, errors.New("DATABASE_URL is required")
	}
	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, db.OptionsFromEnv(db.DefaultWorkerOptions(cfg.WorkerConcurrency)))
	if err != nil {
		return nil, nil, err
	}
	client, err := queue.NewSQSClient(ctx, cfg.AWSRegion, cfg.QueueURL)
	if err != nil {
		_ = sqlDB.Close()
		return nil, nil, err
	}
	w := &ingest.Worker{
		SQS:         client.API,
		QueueURL:    client.QueueURL,
		Handler:     &ingest.Handler{Repo: &analyses.PGRepo{DB: sqlDB}},
		Concurrency: cfg.WorkerConcurrency,
	}
	return w, func() { _ = sqlDB.Close() }, nil
}

func buildDB(ctx context.Context, cfg config.Config, defaults db.Options) (*sqlx.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		if cfg.DevLike() {
			telemetry.Warn("bootstrap.memory_store", map[string]any{"reason": "DATABASE_URL empty"})
			return nil, nil
		}
		return nil, errors.New("DATABASE_URL is required")
	}

	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, db.OptionsFromEnv(defaults))
	if err != nil {
		if cfg.DevLike() {
			telemetry.Warn("bootstrap.memory_store", map[string]any{"reason": "database connect failed", "error": err})
			return nil, nil
		}
		return nil, err
	}
	return sqlDB, nil
}

// BuildStore returns the configured object store for uploaded images.
func BuildStore(ctx context.Context, cfg config.Config) (object.Store, error) {
	switch cfg.ObjectStoreType {
	case object.SchemeS3:
		if strings.TrimSpace(cfg.S3Bucket) == "" {
			return nil, errors.New("OBJECT_STORE=s3 requires S3_BUCKET")
		}
		return s3store.New(ctx, regionOrDefault(cfg.AWSRegion), cfg.S3Bucket, cfg.S3Prefix, cfg.SSEKMSKeyID)
	default:
		return localstore.New(cfg.LocalStoreDir), nil
	}
}

// buildPresigner picks what signs s3:// image references. Records may point
// at S3 even when uploads stay local, so a region alone enables signing.
func buildPresigner(ctx context.Context, cfg config.Config, store object.Store) (images.Presigner, error) {
	if s3, ok := store.(*s3store.Store); ok {
		return s3, nil
	}
	if strings.TrimSpace(cfg.AWSRegion) == "" {
		return nil, nil
	}
	s3, err := s3store.New(ctx, cfg.AWSRegion, "", "", "")
	if err != nil {
		return nil, fmt.Errorf("s3 presigner: %w", err)
	}
	return s3, nil
}

func regionOrDefault(region string) string {
	if strings.TrimSpace(region) == "" {
		return defaultRegion
	}
	return region
}

package cli

import (
	"bufio"
	"context"
	"net/http"
	"os"

	"github.com/collabdesk/collabdesk/internal/client/auth"
	"github.com/collabdesk/collabdesk/internal/client/budget"
	"github.com/collabdesk/collabdesk/internal/client/cache"
	"github.com/collabdesk/collabdesk/internal/client/config"
	"github.com/collabdesk/collabdesk/internal/client/models"
	"github.com/collabdesk/collabdesk/internal/client/sender"
	"github.com/collabdesk/collabdesk/internal/client/services"
	"github.com/collabdesk/collabdesk/internal/client/store"
	"github.com/collabdesk/collabdesk/internal/client/transport"
	"github.com/collabdesk/collabdesk/internal/client/upload"
	"github.com/collabdesk/collabdesk/internal/logging"
	"github.com/collabdesk/collabdesk/internal/telemetry"

	_ "modernc.org/sqlite"
)

// App wires the sync client together: durable cache, reconnecting
// transport, retrying sender, reconciliation store, push dispatcher and
// per-project budget editors. It also owns the interactive loop.
type App struct {
	config   *config.Config
	log      logging.Logger
	cache    cache.Cache
	sender   *sender.Sender
	store    *store.Store
	trans    transport.Transport
	sync     *services.SyncService
	uploader upload.Uploader
	budgets  map[string]*budget.Editor

	activeKey string
	reader    *bufio.Reader
}

func NewApp(ctx context.Context, c *config.Config, logger logging.Logger) (*App, error) {

	db, err := cache.OpenDatabase(ctx, c.CachePath)
	if err != nil {
		logger.Error(ctx, "error initializing cache database", "error", err)
		return nil, err
	}

	if err := cache.PurgeExpired(ctx, db); err != nil {
		logger.Warn(ctx, "cache purge failed", "error", err)
	}

	cch := cache.NewSQLite(db)

	// A session endpoint, when configured, issues short-lived JWTs that the
	// provider refreshes near expiry; otherwise a fixed token is used.
	var creds auth.CredentialProvider
	if tokenURL := os.Getenv("COLLABDESK_TOKEN_URL"); tokenURL != "" {
		creds = auth.NewJWTProvider(auth.HTTPTokenSource(tokenURL, nil))
	} else {
		creds = auth.Static(os.Getenv("COLLABDESK_TOKEN"))
	}
	token, err := creds.AwaitReady(ctx)
	if err != nil {
		logger.Warn(ctx, "no bearer credential available", "error", err)
		token = ""
	}

	tr := transport.DialWebSocket(ctx, c.EndpointURL, logger, transport.WebSocketOptions{
		BearerToken: token,
	})

	snd := sender.New(tr, logger,
		sender.WithMaxAttempts(c.MaxSendAttempts),
		sender.WithRetryInterval(c.RetryInterval),
	)

	st := store.New(cch, snd, logger,
		store.WithTTL(c.CacheTTL),
		store.WithUserID(c.UserID),
	)

	if err := st.HydrateDMThreads(ctx); err != nil {
		logger.Warn(ctx, "dm hydration failed", "error", err)
	}

	svc := services.NewSyncService(st, tr, logger, models.ActionTimelineUpdated)
	svc.Start(ctx)
	go svc.StartPendingReplay(ctx, c.ReplayInterval)

	if c.MetricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", telemetry.Handler())
			if err := http.ListenAndServe(c.MetricsAddr, mux); err != nil {
				logger.Warn(ctx, "metrics endpoint stopped", "error", err)
			}
		}()
	}

	var uploader upload.Uploader
	if presignURL := os.Getenv("COLLABDESK_PRESIGN_URL"); presignURL != "" {
		uploader = upload.NewPresignedUploader(upload.HTTPPresign(presignURL, nil), nil)
	}

	return &App{
		config:   c,
		log:      logger,
		cache:    cch,
		sender:   snd,
		store:    st,
		trans:    tr,
		sync:     svc,
		uploader: uploader,
		budgets:  make(map[string]*budget.Editor),
		reader:   bufio.NewReader(os.Stdin),
	}, nil
}

// Budget returns the budget editor for projectID, creating, hydrating and
// registering it on first use.
func (a *App) Budget(ctx context.Context, projectID string) *budget.Editor {
	if ed, ok := a.budgets[projectID]; ok {
		return ed
	}
	ed := budget.NewEditor(a.cache, a.sender, a.log, projectID,
		budget.WithHistoryDepth(a.config.HistoryDepth))
	if err := ed.Hydrate(ctx); err != nil {
		a.log.Warn(ctx, "budget hydration failed", "project", projectID, "error", err)
	}
	a.sync.RegisterBudget(projectID, ed)
	a.budgets[projectID] = ed
	return ed
}

func (a *App) Run(ctx context.Context) {
	defer a.trans.Close()
	runREPL(ctx, a, a.status, bufio.NewScanner(os.Stdin))
}

func (a *App) status() string {
	if a.trans.IsOpen() {
		return "online"
	}
	return "offline"
}

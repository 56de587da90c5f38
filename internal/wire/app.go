package wire

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	dirclient "github.com/jmoreland/lead-mesh/internal/adapter/directory"
	leadclient "github.com/jmoreland/lead-mesh/internal/adapter/leadstore"
	"github.com/jmoreland/lead-mesh/internal/adapter/memory"
	pgdb "github.com/jmoreland/lead-mesh/internal/adapter/postgres"
	pgeventbus "github.com/jmoreland/lead-mesh/internal/adapter/postgres/eventbus"
	pglocker "github.com/jmoreland/lead-mesh/internal/adapter/postgres/locker"
	pgpolicy "github.com/jmoreland/lead-mesh/internal/adapter/postgres/policy"

	portdir "github.com/jmoreland/lead-mesh/internal/port/directory"
	portbus "github.com/jmoreland/lead-mesh/internal/port/eventbus"
	portlocker "github.com/jmoreland/lead-mesh/internal/port/locker"
	portpolicy "github.com/jmoreland/lead-mesh/internal/port/policy"

	assignersvc "github.com/jmoreland/lead-mesh/internal/service/assigner"
	settingssvc "github.com/jmoreland/lead-mesh/internal/service/settings"

	"github.com/jmoreland/lead-mesh/internal/transport"
	mcptransport "github.com/jmoreland/lead-mesh/internal/transport/mcp"
)

// App holds the top-level resources needed to run and gracefully stop the server.
type App struct {
	Pool        *pgxpool.Pool
	Server      *http.Server
	AssignerSvc *assignersvc.Service
	SettingsSvc *settingssvc.Service
}

// Build is the composition root: the only place concrete types are wired to
// their interface dependencies.
func Build(ctx context.Context) (*App, error) {
	callTimeout := envDuration("EXTERNAL_CALL_TIMEOUT_SECONDS", 30*time.Second)

	// ── Policy store ─────────────────────────────────────────────────────────
	// Without DATABASE_URL the engine runs fully in-process: same CAS
	// contract, no durability. Meant for local development only.
	var (
		pool     *pgxpool.Pool
		policies portpolicy.Repository
		bus      portbus.EventBus
		locker   portlocker.AdvisoryLocker
	)
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		var err error
		pool, err = pgdb.Connect(ctx, dbURL)
		if err != nil {
			return nil, fmt.Errorf("connecting to database: %w", err)
		}
		policies = pgpolicy.New(pool)
		bus = pgeventbus.New(pool)
		locker = pglocker.New(pool)
	} else {
		slog.Warn("DATABASE_URL not set, using in-memory assignment state")
		policies = memory.NewPolicyRepository()
		bus = memory.NewEventBus()
		locker = memory.NewLocker()
	}

	// ── External collaborators ───────────────────────────────────────────────
	leadStoreURL := os.Getenv("LEAD_STORE_URL")
	if leadStoreURL == "" {
		return nil, fmt.Errorf("LEAD_STORE_URL not set")
	}
	leads := leadclient.NewClient(leadStoreURL, os.Getenv("LEAD_STORE_TOKEN"), callTimeout)

	// Directory is optional: anonymous channels have no credential for it and
	// the engine degrades per policy instead of failing.
	var dir portdir.Directory
	if dirURL := os.Getenv("DIRECTORY_URL"); dirURL != "" {
		dir = dirclient.NewClient(dirURL, os.Getenv("DIRECTORY_TOKEN"), callTimeout)
	} else {
		slog.Warn("DIRECTORY_URL not set, human identities resolve in degraded mode")
	}

	// ── Services ─────────────────────────────────────────────────────────────
	cfg := assignersvc.DefaultConfig()
	cfg.CallTimeout = callTimeout
	cfg.MaxAttempts = envInt("ASSIGN_MAX_ATTEMPTS", cfg.MaxAttempts)
	if statuses := os.Getenv("LEAD_ACTIVE_STATUSES"); statuses != "" {
		cfg.ActiveStatuses = strings.Split(statuses, ",")
	}
	assignerSvcInstance := assignersvc.NewService(policies, leads, bus, cfg)
	settingsSvcInstance := settingssvc.NewService(policies, leads, locker, bus)

	mcpServer := mcptransport.New(assignerSvcInstance, settingsSvcInstance, dir)

	// ── Transport ────────────────────────────────────────────────────────────
	router := transport.NewRouter(ctx, assignerSvcInstance, settingsSvcInstance, dir, mcpServer, bus)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	server := &http.Server{
		Addr:    ":" + port,
		Handler: router,
	}

	slog.Info("application wired", "port", port, "durable", pool != nil)

	return &App{
		Pool:        pool,
		Server:      server,
		AssignerSvc: assignerSvcInstance,
		SettingsSvc: settingsSvcInstance,
	}, nil
}

func envDuration(name string, fallback time.Duration) time.Duration {
	v := os.Getenv(name)
	if v == "" {
		return fallback
	}
	secs, err := strconv.Atoi(v)
	if err != nil || secs <= 0 {
		slog.Warn("invalid duration env var, using fallback", "name", name, "value", v)
		return fallback
	}
	return time.Duration(secs) * time.Second
}

func envInt(name string, fallback int) int {
	v := os.Getenv(name)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		slog.Warn("invalid integer env var, using fallback", "name", name, "value", v)
		return fallback
	}
	return n
}

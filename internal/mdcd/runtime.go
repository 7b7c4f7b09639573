// Package mdcd runs the completion daemon: it keeps open documents and the
// component catalog in a session and serves completions and folding ranges
// over HTTP and a websocket.
package mdcd

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/strongdm/mdc/internal/catalog"
	"github.com/strongdm/mdc/internal/configstore"
	"github.com/strongdm/mdc/internal/eventlog"
	"github.com/strongdm/mdc/internal/httpserver"
	"github.com/strongdm/mdc/internal/mdcd/listen"
	"github.com/strongdm/mdc/internal/messages"
	"github.com/strongdm/mdc/internal/openflag"
	"github.com/strongdm/mdc/internal/schema"
	"github.com/strongdm/mdc/internal/session"
	"github.com/strongdm/mdc/internal/telemetry/otel"
	"github.com/strongdm/mdc/internal/ui"
	websockethub "github.com/strongdm/mdc/internal/websocket"
)

type stringFlag struct {
	value string
	set   bool
}

func (s *stringFlag) String() string {
	return s.value
}

func (s *stringFlag) Set(value string) error {
	s.value = value
	s.set = true
	return nil
}

// Main runs the daemon with argv-style args (args[0] is the command name).
// It blocks until SIGINT or SIGTERM.
func Main(args []string) error {
	base, err := configstore.Load()
	if err != nil {
		return err
	}
	cfg, err := parseConfig(args, base)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}

	rt, err := initRuntime(context.Background(), cfg)
	if err != nil {
		return err
	}
	defer rt.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rt.Run(ctx)
}

type runtimeConfig struct {
	CatalogRef         string
	CacheTTL           time.Duration
	PropertyCompletion bool
	Debug              bool
	LogPath            string
	WebBind            string
	WebDisabled        bool
	DisplayURL         string
	HistorySize        int
	BulkMaxEvents      int
	BulkMaxBytes       int
	WatchCatalog       bool
	OpenBrowser        bool
	TelemetryConfig    otel.Config
}

type runtimeState struct {
	cfg         *runtimeConfig
	logger      *eventlog.Logger
	hub         *websockethub.Hub
	hubDone     chan struct{}
	session     *session.Session
	catalog     *catalog.Manager
	telemetry   *otel.Provider
	unsubscribe func()
	stopWatch   func()
	server      *http.Server
	closeOnce   sync.Once
}

// parseConfig layers command-line flags over the loaded configuration.
func parseConfig(args []string, base configstore.Config) (*runtimeConfig, error) {
	name := commandName(args)
	fs := flag.NewFlagSet(name, flag.ContinueOnError)

	listenFlag := &stringFlag{value: base.Listen}
	fs.Var(listenFlag, "listen", "Serve the HTTP and websocket API on the provided address (e.g. :18181, 127.0.0.1:18181). Leave blank to disable.")
	fs.Var(listenFlag, "l", "Alias for --listen")

	catalogRef := fs.String("catalog", base.CatalogRef(), "Component catalog URL or local JSON/YAML file")
	ttl := fs.Duration("ttl", base.CacheTTL, "How long a fetched catalog is served before it is refreshed")
	logPath := fs.String("log", base.LogFile, "Event log file path (optional)")
	debug := fs.Bool("debug", base.Debug, "Record debug events")
	noProps := fs.Bool("no-properties", !base.PropertyCompletion, "Disable property completion inside component front matter")
	watch := fs.Bool("watch", true, "Reload a local catalog file when it changes")
	openBrowser := fs.Bool("open", openflag.Enabled(), "Open the playground in a browser once listening")
	historySize := fs.Int("history-size", 2048, "Number of events to keep in memory for new websocket connections")
	bulkMaxEvents := fs.Int("ws-bulk-max-events", 500, "Max events to include in the initial websocket bulk message (0 = unlimited)")
	bulkMaxBytes := fs.Int("ws-bulk-max-bytes", 256_000, "Max bytes to include in the initial websocket bulk message (0 = unlimited)")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: %s serve [flags]\n\n", name)
		fmt.Fprintf(fs.Output(), "Flags:\n")
		fs.PrintDefaults()
		fmt.Fprintf(fs.Output(), "\nEnvironment:\n  MDC_LISTEN                   Default value for --listen\n  MDC_COMPONENT_METADATA_URL   Catalog URL\n  MDC_COMPONENT_METADATA_FILE  Local catalog file\n  MDC_OTEL_METRICS, MDC_OTEL_TRACES  Enable telemetry\n  MDC_OPEN                     Default value for --open\n")
	}

	var flagArgs []string
	if len(args) > 1 {
		flagArgs = args[1:]
	}
	if err := fs.Parse(flagArgs); err != nil {
		return nil, err
	}
	if len(fs.Args()) > 0 {
		return nil, fmt.Errorf("unexpected extra arguments: %v", fs.Args())
	}

	listenCfg, err := listen.Parse(listenFlag.value)
	if err != nil {
		return nil, fmt.Errorf("parse --listen: %w", err)
	}
	if *ttl <= 0 {
		return nil, fmt.Errorf("--ttl must be positive")
	}

	return &runtimeConfig{
		CatalogRef:         strings.TrimSpace(*catalogRef),
		CacheTTL:           *ttl,
		PropertyCompletion: !*noProps,
		Debug:              *debug,
		LogPath:            strings.TrimSpace(*logPath),
		WebBind:            listenCfg.Address(),
		WebDisabled:        listenCfg.Disable,
		DisplayURL:         listenCfg.DisplayURL(),
		HistorySize:        *historySize,
		BulkMaxEvents:      *bulkMaxEvents,
		BulkMaxBytes:       *bulkMaxBytes,
		WatchCatalog:       *watch,
		OpenBrowser:        *openBrowser && !listenCfg.Disable,
		TelemetryConfig:    otel.LoadConfigFromEnv(),
	}, nil
}

func initRuntime(ctx context.Context, cfg *runtimeConfig) (*runtimeState, error) {
	logger, err := eventlog.New(cfg.LogPath, cfg.Debug)
	if err != nil {
		return nil, err
	}

	hub := websockethub.NewHub(cfg.HistorySize, cfg.BulkMaxEvents, cfg.BulkMaxBytes)
	logger.SetBroadcaster(hub)

	provider, err := otel.Setup(ctx, cfg.TelemetryConfig)
	if err != nil {
		logger.Close()
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	var src catalog.Source
	if cfg.CatalogRef != "" {
		src = catalog.NewSource(cfg.CatalogRef, nil)
	}
	mgr := catalog.NewManager(src, catalog.Options{
		TTL:      cfg.CacheTTL,
		Logger:   logger,
		Observer: provider.Instruments().RecordRefresh,
	})

	rt := &runtimeState{
		cfg:       cfg,
		logger:    logger,
		hub:       hub,
		hubDone:   make(chan struct{}),
		catalog:   mgr,
		telemetry: provider,
		session: session.New(nil, session.Options{
			DisableProperties: !cfg.PropertyCompletion,
			Logger:            logger,
		}),
	}
	go hub.Run(rt.hubDone)

	rt.unsubscribe = mgr.Subscribe(rt.applyCatalog)

	if src == nil {
		logger.Event("catalog.disabled", map[string]any{"reason": "no component_metadata_url or component_metadata_file configured"})
	} else {
		// A failed first load is logged by the manager; the daemon still
		// serves and retries on the next refresh.
		_, _ = mgr.Get(ctx, false)
	}

	if fileSrc, ok := src.(*catalog.FileSource); ok && cfg.WatchCatalog {
		stop, err := catalog.WatchFile(fileSrc.Path, catalog.DefaultDebounce, func() {
			_, _ = mgr.Get(context.Background(), true)
		}, func(err error) {
			logger.Event("catalog.watch", map[string]any{"path": fileSrc.Path, "error": err})
		})
		if err != nil {
			logger.Event("catalog.watch", map[string]any{"path": fileSrc.Path, "error": err})
		} else {
			rt.stopWatch = stop
		}
	}

	return rt, nil
}

// applyCatalog swaps the session catalog and tells websocket clients.
func (rt *runtimeState) applyCatalog(cat schema.Catalog) {
	rt.session.SetCatalog(cat)
	source := ""
	if src := rt.catalog.Source(); src != nil {
		source = src.String()
	}
	rt.hub.EmitJSON(messages.TypeCatalogUpdated, messages.CatalogPayload{
		Source:     source,
		Components: len(cat),
		Names:      cat.Names(),
	})
}

// Run serves HTTP, refreshes the catalog on its TTL and dispatches websocket
// messages until ctx is done.
func (rt *runtimeState) Run(ctx context.Context) error {
	go rt.catalog.Run(ctx)

	handler := newClientHandler(rt.session, rt.catalog, rt.telemetry.Instruments(), rt.hub)
	go handler.serve(rt.hub.Incoming())

	if rt.cfg.WebDisabled {
		rt.logger.Event("frontend.disabled", map[string]any{"addr": ""})
	} else {
		ln, err := net.Listen("tcp", rt.cfg.WebBind)
		if err != nil {
			return fmt.Errorf("listen %s: %w", rt.cfg.WebBind, err)
		}
		rt.server = httpserver.NewServer(rt.cfg.WebBind, httpserver.WithRequestLog(rt.routes(), rt.logRequest))
		go func(srv *http.Server) {
			if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Printf("event=frontend.error error=%q", err.Error())
			}
		}(rt.server)
		rt.logger.Event("frontend.start", map[string]any{"addr": rt.cfg.WebBind, "url": rt.cfg.DisplayURL})
		if rt.cfg.OpenBrowser {
			if err := openflag.Open(rt.cfg.DisplayURL); err != nil {
				log.Printf("event=frontend.open_error url=%s error=%q", rt.cfg.DisplayURL, err.Error())
			}
		}
	}

	<-ctx.Done()
	rt.logger.Event("daemon.shutdown", nil)

	if rt.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := rt.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
	}
	return nil
}

func (rt *runtimeState) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", rt.hub.HandleWebSocket)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	newAPI(rt.session, rt.catalog, rt.telemetry.Instruments(), rt.hub).register(mux)
	source := ""
	if src := rt.catalog.Source(); src != nil {
		source = src.String()
	}
	mux.Handle("/", ui.NewHandlerWithTitle(ui.Dir(), ui.ComposeTitle(source)))
	return mux
}

func (rt *runtimeState) logRequest(method, path string, status int, took time.Duration) {
	rt.logger.Debug("http.request", map[string]any{
		"method": method,
		"path":   path,
		"status": status,
		"took":   took.Round(time.Microsecond).String(),
	})
}

func (rt *runtimeState) Close() {
	rt.closeOnce.Do(func() {
		if rt.stopWatch != nil {
			rt.stopWatch()
		}
		if rt.unsubscribe != nil {
			rt.unsubscribe()
		}
		close(rt.hubDone)
		if rt.telemetry != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			_ = rt.telemetry.Shutdown(ctx)
		}
		if rt.logger != nil {
			_ = rt.logger.Close()
		}
	})
}

func commandName(args []string) string {
	if len(args) == 0 || strings.TrimSpace(args[0]) == "" {
		return "mdc"
	}
	return args[0]
}

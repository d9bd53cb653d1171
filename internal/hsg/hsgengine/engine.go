// Package hsgengine assembles the HSG core into the single owner the spec
// calls for (spec.md §9's redesign of "process-wide singletons"): an
// Engine struct holding the store, embedder, crypto service, caches, the
// co-activation buffer, and the maintenance ticker. Modeled directly on the
// teacher's Engine struct/NewEngine/With* constructor shape in
// pkg/memory/engine.go, generalized from a single flat vector engine to the
// HSG's classify/embed/encrypt/persist/link write path and multi-sector
// hybrid query path (spec.md §4.2-§4.4).
package hsgengine

import (
	"context"
	"log"
	"os"
	"sync"
	"time"

	"github.com/lucivskvn/openmemory-hsg/internal/hsg/classify"
	"github.com/lucivskvn/openmemory-hsg/internal/hsg/hsgcache"
	"github.com/lucivskvn/openmemory-hsg/internal/hsg/hsgconfig"
	"github.com/lucivskvn/openmemory-hsg/internal/hsg/hsgcrypto"
	"github.com/lucivskvn/openmemory-hsg/internal/hsg/hsgembed"
	"github.com/lucivskvn/openmemory-hsg/internal/hsg/hsgevents"
	"github.com/lucivskvn/openmemory-hsg/internal/hsg/hsgstore"
	"github.com/lucivskvn/openmemory-hsg/internal/hsg/model"
)

// Engine is the HSG core's single owner: store, embedder, crypto, the
// rule-based classifier, the per-tenant learned-classifier cache, the
// hybrid query-result cache, the event bus, the co-activation buffer and
// the background maintenance ticker all live here instead of as
// process-wide singletons.
type Engine struct {
	store    hsgstore.Store
	embedder hsgembed.Embedder
	crypto   *hsgcrypto.Service
	cfg      hsgconfig.Config
	rules    *classify.Classifier
	events   *hsgevents.Bus
	logger   *log.Logger
	clock    func() time.Time

	classifierCache *hsgcache.Cache
	queryCache      *hsgcache.Cache

	mu          sync.Mutex
	coactBuffer []model.CoactivationPair
	coactSeen   map[string]bool
	lastFlush   time.Time

	ticker *time.Ticker
	stopCh chan struct{}
	wg     sync.WaitGroup
}

// New builds an Engine from its external collaborators and config. The
// background maintenance ticker is started immediately unless
// cfg.IsTest is set, matching spec.md §6's isTest knob.
func New(store hsgstore.Store, embedder hsgembed.Embedder, crypto *hsgcrypto.Service, cfg hsgconfig.Config) *Engine {
	cfg = cfg.WithDefaults()
	e := &Engine{
		store:           store,
		embedder:        embedder,
		crypto:          crypto,
		cfg:             cfg,
		rules:           classify.New(classify.DefaultTable(), cfg.SectorOrder),
		events:          hsgevents.NewBus(64),
		logger:          log.New(os.Stderr, "hsgengine: ", log.LstdFlags),
		clock:           cfg.Clock,
		classifierCache: hsgcache.New(cfg.ClassifierCacheSize, 0, cfg.Clock),
		queryCache:      hsgcache.New(cfg.QueryCacheSize, cfg.QueryCacheTTL, cfg.Clock),
		coactSeen:       make(map[string]bool),
	}
	if e.clock == nil {
		e.clock = time.Now
	}
	e.lastFlush = e.clock()
	if !cfg.IsTest {
		e.startMaintenance()
	}
	return e
}

// WithLogger overrides the default stderr logger.
func (e *Engine) WithLogger(l *log.Logger) *Engine {
	if l != nil {
		e.logger = l
	}
	return e
}

// Events returns the engine's event bus so callers can Subscribe.
func (e *Engine) Events() *hsgevents.Bus { return e.events }

// Config returns the engine's effective configuration.
func (e *Engine) Config() hsgconfig.Config { return e.cfg }

func (e *Engine) logf(format string, args ...any) {
	if e.logger != nil {
		e.logger.Printf(format, args...)
	}
}

// startMaintenance registers the single maintenance ticker per spec.md §5:
// "Maintenance registers exactly one interval id at startup and
// unregisters on shutdown."
func (e *Engine) startMaintenance() {
	e.ticker = time.NewTicker(e.cfg.MaintenanceTick)
	e.stopCh = make(chan struct{})
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		for {
			select {
			case <-e.ticker.C:
				e.maintenanceTick(context.Background())
			case <-e.stopCh:
				return
			}
		}
	}()
}

// Close stops the maintenance ticker and performs one final synchronous
// flush of the co-activation buffer (spec.md §5: "stop performs a final
// synchronous flush").
func (e *Engine) Close() error {
	if e.ticker != nil {
		e.ticker.Stop()
		close(e.stopCh)
		e.wg.Wait()
	}
	e.flushCoactivations(context.Background())
	return e.store.Close()
}

// maintenanceTick runs one iteration of decay, pruning and a co-activation
// flush check across every tenant. All errors are logged and never surface
// (spec.md §7: "Maintenance: all errors logged, never surface; next tick
// retries").
func (e *Engine) maintenanceTick(ctx context.Context) {
	if err := e.RunMaintenanceNow(ctx, ""); err != nil {
		e.logf("maintenanceTick: %v", err)
	}
	e.events.Publish(hsgevents.Event{Kind: hsgevents.KindMaintenanceOp, Payload: "tick"})
}

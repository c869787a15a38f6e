package manager

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"llmd/internal/llm"
	"llmd/pkg/types"
)

// Defaults applied when corresponding ManagerConfig fields are unset.
const (
	defaultMaxQueueDepth = 32
	defaultMaxWait       = 30 * time.Second
	defaultMaxInflight   = 1
	defaultDrainTimeout  = 10 * time.Second
)

// ProviderFactory builds the provider for one descriptor.
type ProviderFactory func(m types.Model, opts llm.Options) (llm.Provider, error)

// ManagerConfig encapsulates all tunables for Manager construction.
type ManagerConfig struct {
	Registry      []types.Model
	DefaultModel  string
	MaxQueueDepth int
	MaxWait       time.Duration
	// MaxInflight bounds concurrent open streams per model.
	MaxInflight  int
	DrainTimeout time.Duration

	Logger    zerolog.Logger
	Publisher EventPublisher

	// ProviderOptions is passed to every provider.
	ProviderOptions llm.Options
	// NewProvider overrides llm.New, mainly for tests.
	NewProvider ProviderFactory
}

// New constructs a Manager with package defaults.
func New(reg []types.Model, defaultModel string) (*Manager, error) {
	return NewWithConfig(ManagerConfig{Registry: reg, DefaultModel: defaultModel})
}

// NewWithConfig constructs a Manager from ManagerConfig. It builds one
// provider per descriptor; no provider is loaded.
func NewWithConfig(cfg ManagerConfig) (*Manager, error) {
	m := &Manager{
		log:          cfg.Logger.With().Str("component", "manager").Logger(),
		publisher:    cfg.Publisher,
		defaultModel: cfg.DefaultModel,
		instances:    make(map[string]*Instance, len(cfg.Registry)),
		switchCh:     make(chan struct{}, 1),
	}
	if m.publisher == nil {
		m.publisher = noopPublisher{}
	}
	// Apply defaults if unset
	if cfg.MaxQueueDepth <= 0 {
		m.maxQueueDepth = defaultMaxQueueDepth
	} else {
		m.maxQueueDepth = cfg.MaxQueueDepth
	}
	if cfg.MaxWait <= 0 {
		m.maxWait = defaultMaxWait
	} else {
		m.maxWait = cfg.MaxWait
	}
	if cfg.MaxInflight <= 0 {
		m.maxInflight = defaultMaxInflight
	} else {
		m.maxInflight = cfg.MaxInflight
	}
	if cfg.DrainTimeout <= 0 {
		m.drainTimeout = defaultDrainTimeout
	} else {
		m.drainTimeout = cfg.DrainTimeout
	}

	newProvider := cfg.NewProvider
	if newProvider == nil {
		newProvider = llm.New
	}
	popts := cfg.ProviderOptions
	popts.Logger = cfg.Logger
	userProgress := popts.OnProgress
	popts.OnProgress = func(model string, p llm.Progress) {
		downloadProgress.WithLabelValues(model).Set(p.Percent)
		if userProgress != nil {
			userProgress(model, p)
		}
	}

	for _, raw := range cfg.Registry {
		mdl := raw.WithDefaults()
		if _, dup := m.instances[mdl.ID]; dup {
			return nil, fmt.Errorf("duplicate model id %q", mdl.ID)
		}
		p, err := newProvider(mdl, popts)
		if err != nil {
			return nil, fmt.Errorf("model %s: %w", mdl.ID, err)
		}
		m.registry = append(m.registry, mdl)
		m.instances[mdl.ID] = &Instance{
			ID:       mdl.ID,
			Model:    mdl,
			Provider: p,
			State:    StateReady,
			genCh:    make(chan struct{}, m.maxInflight),
			queueCh:  make(chan struct{}, m.maxQueueDepth),
		}
	}
	if m.defaultModel != "" {
		if _, ok := m.instances[m.defaultModel]; !ok {
			return nil, ErrModelNotFound(m.defaultModel)
		}
	}

	m.ctx, m.cancel = context.WithCancel(context.Background())
	m.tasks = make(chan string, len(m.registry)+1)
	m.startTime = time.Now()
	return m, nil
}

package authcore

import (
	"errors"

	"github.com/modelfolio/authcore/audit"
	"github.com/modelfolio/authcore/jwt"
	"github.com/modelfolio/authcore/session"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Builder assembles an [Engine]. Redis, an identity store, a notifier, and a
// signing secret are required; everything else has defaults.
type Builder struct {
	config   Config
	redis    redis.UniversalClient
	identity IdentityStore
	notifier Notifier
	logger   *zap.Logger

	built bool
}

func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	return b
}

func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

func (b *Builder) WithIdentityStore(store IdentityStore) *Builder {
	b.identity = store
	return b
}

func (b *Builder) WithNotifier(n Notifier) *Builder {
	b.notifier = n
	return b
}

func (b *Builder) WithLogger(logger *zap.Logger) *Builder {
	b.logger = logger
	return b
}

func (b *Builder) WithSigningSecret(secret []byte) *Builder {
	b.config.JWT.SigningSecret = secret
	return b
}

// Build validates the configuration, wires the stores, and starts the audit
// consumer and the janitor sweep. A Builder can only be used once.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	if b.redis == nil {
		return nil, errors.New("redis client required")
	}
	if b.identity == nil {
		return nil, errors.New("identity store required")
	}
	if b.notifier == nil {
		return nil, errors.New("notifier required")
	}

	cfg := b.config
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	logger := b.logger
	if logger == nil {
		logger = zap.NewNop()
	}

	jm, err := jwt.NewManager(jwt.Config{
		Secret: cfg.JWT.SigningSecret,
		TTL:    cfg.Session.TTL,
		Issuer: cfg.JWT.Issuer,
		Leeway: cfg.JWT.Leeway,
	})
	if err != nil {
		return nil, err
	}

	engine := &Engine{
		config:       cfg,
		identity:     b.identity,
		notifier:     b.notifier,
		codeStore:    newOneTimeCodeStore(b.redis, cfg.Codes.RedisPrefix),
		codeLimiter:  newCodeRequestLimiter(b.redis, cfg.Codes),
		sessionStore: session.NewStore(b.redis, cfg.Session.RedisPrefix, cfg.Session.TTL),
		jwtManager:   jm,
		metrics:      NewMetrics(true),
		logger:       logger,
	}

	if cfg.Audit.Enabled {
		engine.auditStore = audit.NewStore(b.redis, "audit", cfg.Audit.Retention)
		engine.recorder = audit.NewRecorder(engine.auditStore, logger, cfg.Audit.BufferSize)
	}

	if cfg.Janitor.Enabled {
		engine.janitor = newJanitor(engine.sessionStore, cfg.Janitor.Interval, logger)
		engine.janitor.Start()
	}

	b.built = true

	return engine, nil
}

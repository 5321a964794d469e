package cli

import (
	"context"
	"errors"
	"io"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"transportagent/internal/agent"
	"transportagent/internal/cache"
	"transportagent/internal/config"
	"transportagent/internal/filer"
	"transportagent/internal/importer"
	"transportagent/internal/logging"
	"transportagent/internal/poller"
	"transportagent/internal/ratelimit"
	"transportagent/internal/reconcile"
	"transportagent/internal/statuscode"
	"transportagent/internal/store"
	"transportagent/internal/submitter"
	"transportagent/internal/transport"
)

// app owns the resources of one process run
type app struct {
	cfg    *config.Config
	logger *logrus.Logger
	store  *store.Store
	fs     afero.Fs

	client *transport.Client
	cache  *cache.Cache
	lookup *statuscode.Lookup
}

func openApp(cfg *config.Config, logOut io.Writer, fs afero.Fs) (*app, error) {
	logger := logging.New(logOut, cfg.LogLevel, cfg.LogFormat)

	st, err := store.Open(cfg.DatabasePath)
	if err != nil {
		return nil, err
	}

	logger.WithFields(logrus.Fields{
		"database": cfg.DatabasePath,
		"endpoint": cfg.Endpoint,
	}).Debug("configuration loaded")

	return &app{
		cfg:    cfg,
		logger: logger,
		store:  st,
		fs:     fs,
	}, nil
}

func (a *app) log(component string) *logrus.Entry {
	return logging.Component(a.logger, component)
}

func (a *app) transport() *transport.Client {
	if a.client != nil {
		return a.client
	}

	limiter := ratelimit.New(ratelimit.Config{
		SubmitPerSecond:   a.cfg.SubmitRate,
		StatusPerSecond:   a.cfg.StatusRate,
		ResponsePerSecond: a.cfg.ResponseRate,
		Burst:             a.cfg.RateBurst,
	})
	a.client = transport.NewClient(transport.Options{
		BaseURL:    a.cfg.Endpoint,
		Timeout:    a.cfg.Timeout,
		RetryCount: a.cfg.RetryCount,
		Compress:   a.cfg.CompressRequests,
	}, limiter, a.log("transport"))
	return a.client
}

// statusLookup connects the return-status cache on first use
func (a *app) statusLookup(ctx context.Context) *statuscode.Lookup {
	if a.lookup != nil {
		return a.lookup
	}

	log := a.log("cache")
	rdb := cache.Connect(ctx, cache.RedisOptions{
		Addr:     a.cfg.RedisAddr,
		Password: a.cfg.RedisPassword,
		DB:       a.cfg.RedisDB,
	}, log)
	a.cache = cache.New(rdb, a.cfg.StatusCacheTTL, log)
	a.lookup = statuscode.New(a.store, a.cache, a.log("statuscode"))
	return a.lookup
}

func (a *app) requestAgent() agent.Agent {
	sub := submitter.New(a.transport(), submitter.RequestSettings{
		Description:     a.cfg.RequestDescription,
		RequestorCode:   a.cfg.RequestorCode,
		ResponseFormat:  a.cfg.ResponseFormat,
		Options:         a.cfg.StaticOptions(),
		MandatoryFields: a.cfg.MandatoryFields,
	}, a.log("submitter"))

	return agent.NewRequestAgent(a.store, sub, agent.RequestOptions{
		RequestLimit: a.cfg.RequestLimit,
		MaxBatchSize: a.cfg.MaxBatchSize,
	}, a.log("agent"))
}

func (a *app) pollAgent(ctx context.Context) agent.Agent {
	f := filer.New(a.fs, filer.Options{
		DestDir:       a.cfg.FileDestination,
		Prefix:        a.cfg.FilePrefix,
		GetDataExt:    a.cfg.GetDataExt,
		GetHistoryExt: a.cfg.GetHistoryExt,
	}, a.log("filer"))

	return agent.NewPollAgent(
		a.store,
		poller.New(a.transport(), a.log("poller")),
		reconcile.New(a.statusLookup(ctx), a.log("reconcile")),
		f,
		agent.PollOptions{PollLimit: a.cfg.PollLimit},
		a.log("agent"),
	)
}

// agentFor builds only the agent serving action, so a request run never
// touches the return-status cache
func (a *app) agentFor(ctx context.Context, action string) []agent.Agent {
	switch action {
	case agent.RequestName:
		return []agent.Agent{a.requestAgent()}
	case agent.PollName:
		return []agent.Agent{a.pollAgent(ctx)}
	default:
		return nil
	}
}

func (a *app) importer() *importer.Importer {
	return importer.New(a.fs, a.store, a.log("importer"))
}

func (a *app) close() {
	var errs []error
	if a.client != nil {
		errs = append(errs, a.client.Close())
	}
	if a.cache != nil {
		errs = append(errs, a.cache.Close())
	}
	errs = append(errs, a.store.Close())

	if err := errors.Join(errs...); err != nil {
		a.logger.WithError(err).Warn("closing resources failed")
	}
}

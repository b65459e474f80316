package main

import (
	"context"
	"fmt"
	"os"

	"github.com/andresuchdata/tutorstore/internal/client"
	"github.com/andresuchdata/tutorstore/internal/config"
	"github.com/andresuchdata/tutorstore/internal/domain"
	"github.com/andresuchdata/tutorstore/internal/namespace"
	"github.com/andresuchdata/tutorstore/internal/repository"
	"github.com/andresuchdata/tutorstore/pkg/logger"
	"github.com/urfave/cli/v2"
)

type envKey struct{}

// env carries what every command needs once flags are parsed.
type env struct {
	cfg    *config.Config
	repo   repository.Repository
	client *client.Client
	close  func() error
}

func fromContext(c *cli.Context) *env {
	e, _ := c.Context.Value(envKey{}).(*env)
	return e
}

// namespace loads the tree with the gateway as the object remover.
func (e *env) namespace(ctx context.Context, opts ...namespace.Option) (*namespace.Namespace, error) {
	base := []namespace.Option{
		namespace.WithRemover(e.client),
		namespace.WithQuota(e.cfg.Upload.QuotaMB*domain.MB, e.cfg.Upload.MaxFileMB*domain.MB),
	}
	ns := namespace.New(e.repo, append(base, opts...)...)
	if err := ns.Load(ctx); err != nil {
		return nil, err
	}
	return ns, nil
}

func setup(c *cli.Context) error {
	cfg := config.Load()
	if c.IsSet("gateway") {
		cfg.Upload.GatewayURL = c.String("gateway")
	}
	if c.IsSet("backend") {
		cfg.Namespace.Backend = c.String("backend")
	}
	if c.IsSet("namespace-file") {
		cfg.Namespace.FilePath = c.String("namespace-file")
	}

	logger.Configure(os.Stderr, cfg.Log.Format)
	level := cfg.Log.Level
	if c.Bool("verbose") {
		level = "debug"
	}
	logger.SetLevel(level)

	repo, closeRepo, err := openRepository(c.Context, cfg)
	if err != nil {
		return fmt.Errorf("failed to open namespace backend: %w", err)
	}

	c.Context = context.WithValue(c.Context, envKey{}, &env{
		cfg:    cfg,
		repo:   repo,
		client: client.New(cfg.Upload.GatewayURL, client.WithTimeout(cfg.Upload.RequestTimeout)),
		close:  closeRepo,
	})
	return nil
}

func teardown(c *cli.Context) error {
	if e := fromContext(c); e != nil && e.close != nil {
		return e.close()
	}
	return nil
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "storagectl",
		Usage: "Manage the private storage tree and its objects",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "gateway",
				Usage:   "Base URL of the storage gateway",
				EnvVars: []string{"GATEWAY_URL"},
			},
			&cli.StringFlag{
				Name:    "backend",
				Usage:   "Namespace backend: file, redis or postgres",
				EnvVars: []string{"NAMESPACE_BACKEND"},
			},
			&cli.StringFlag{
				Name:    "namespace-file",
				Usage:   "Path of the namespace JSON document (file backend)",
				EnvVars: []string{"NAMESPACE_FILE"},
			},
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "Enable debug logging",
			},
		},
		Before:   setup,
		After:    teardown,
		Commands: commands(),
	}
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		logger.Log.Fatal().Err(err).Msg("storagectl failed")
	}
}

package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/MikeMC777/ecom-points/internal/config"
	"github.com/MikeMC777/ecom-points/internal/httpx"
	"github.com/MikeMC777/ecom-points/internal/idempotency"
	"github.com/MikeMC777/ecom-points/internal/order"
	"github.com/MikeMC777/ecom-points/internal/product"
	"github.com/MikeMC777/ecom-points/internal/store"
	"github.com/MikeMC777/ecom-points/internal/user"
)

func main() {
	app := &cli.App{
		Name:           "api",
		Usage:          "ecom-points REST API",
		DefaultCommand: "serve",
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "run the HTTP server",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "migrate", Usage: "apply pending migrations before serving"},
				},
				Action: serve,
			},
			{
				Name:  "migrate",
				Usage: "apply or roll back schema migrations",
				Subcommands: []*cli.Command{
					{Name: "up", Usage: "apply all pending migrations", Action: migrateAction(store.MigrateUp)},
					{Name: "down", Usage: "roll back all migrations", Action: migrateAction(store.MigrateDown)},
				},
			},
		},
	}
	if err := app.Run(os.Args); err != nil {
		log.WithError(err).Fatal("api exited")
	}
}

func migrateAction(run func(dsn string) error) cli.ActionFunc {
	return func(*cli.Context) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		config.SetupLogger(cfg)
		return run(cfg.PostgresDSN)
	}
}

// deps are the collaborators the router needs.
type deps struct {
	products product.Repository
	orders   *order.Service
	users    *user.Service
	idem     idempotency.Store
}

func newRouter(d deps) *gin.Engine {
	httpx.UseJSONFieldNames()

	r := gin.New()
	r.Use(gin.Recovery(), httpx.RequestID(), httpx.Logger(), httpx.IdentityHeaders())

	r.GET("/healthz", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	auth := httpx.RequireAuth()
	admin := httpx.RequireAdmin()
	idem := idempotency.Middleware(d.idem)

	users := r.Group("/users")
	users.POST("", registerHandler(d.users))
	users.GET("/me", auth, meHandler(d.users))
	users.GET("/:id", auth, getUserHandler(d.users))
	users.PUT("/:id", auth, updateUserHandler(d.users))
	users.DELETE("/:id", admin, deleteUserHandler(d.users))

	products := r.Group("/products")
	products.GET("", listProductsHandler(d.products))
	products.GET("/:id", getProductHandler(d.products))
	products.POST("", admin, createProductHandler(d.products))
	products.PUT("/:id", admin, updateProductHandler(d.products))
	products.DELETE("/:id", admin, deleteProductHandler(d.products))

	orders := r.Group("/orders", auth)
	orders.POST("", idem, createOrderHandler(d.orders))
	orders.GET("", listOrdersHandler(d.orders))
	orders.GET("/:id", getOrderHandler(d.orders))

	points := r.Group("/points", auth)
	points.GET("", balanceHandler(d.users))
	points.POST("/transfer", idem, transferHandler(d.users))

	return r
}

func serve(cctx *cli.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	config.SetupLogger(cfg)
	gin.SetMode(cfg.GinMode)

	ctx, stop := signal.NotifyContext(cctx.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cctx.Bool("migrate") {
		if err := store.MigrateUp(cfg.PostgresDSN); err != nil {
			return err
		}
	}

	pool, err := store.Connect(ctx, cfg.PostgresDSN, cfg.DBMaxConns)
	if err != nil {
		return err
	}
	defer pool.Close()
	catalog := store.Catalog(pool)
	defer catalog.Close()

	productRepo := product.NewPGRepo(pool, catalog)
	userRepo := user.NewPGRepo(pool)

	d := deps{
		products: productRepo,
		orders:   order.NewService(productRepo, order.NewPGRepo(pool)),
		users:    user.NewService(userRepo, userRepo),
	}
	if cfg.RedisURL != "" {
		rs, err := idempotency.NewRedisStore(cfg.RedisURL, cfg.IdempotencyTTL)
		if err != nil {
			return err
		}
		defer rs.Close()
		d.idem = rs
	} else {
		log.Warn("[api] REDIS_URL not set, Idempotency-Key is ignored")
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           newRouter(d),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", cfg.HTTPAddr).Info("[api] listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return errors.Wrap(err, "http server")
	case <-ctx.Done():
	}

	log.Info("[api] shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "shutdown")
	}
	return <-errCh
}

package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/MikeMC777/ecom-points/internal/config"
	"github.com/MikeMC777/ecom-points/internal/store"
	"github.com/MikeMC777/ecom-points/internal/user"
	"github.com/MikeMC777/ecom-points/internal/userrpc"
)

func main() {
	app := &cli.App{
		Name:           "user-service",
		Usage:          "internal gRPC user service",
		DefaultCommand: "serve",
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "run the gRPC server",
				Action: serve,
			},
			{
				Name:      "balance",
				Usage:     "query a running server for a user's point balance",
				ArgsUsage: "<user id>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "addr", Value: "localhost:50051", Usage: "server address"},
				},
				Action: balance,
			},
		},
	}
	if err := app.Run(os.Args); err != nil {
		log.WithError(err).Fatal("user-service exited")
	}
}

func serve(cctx *cli.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	config.SetupLogger(cfg)

	ctx, stop := signal.NotifyContext(cctx.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := store.Connect(ctx, cfg.PostgresDSN, cfg.DBMaxConns)
	if err != nil {
		return err
	}
	defer pool.Close()

	l, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		return errors.Wrapf(err, "listen %s", cfg.GRPCAddr)
	}

	s := grpc.NewServer(grpc.UnaryInterceptor(userrpc.LoggingInterceptor))
	userrpc.Register(s, userrpc.NewService(user.NewPGRepo(pool)))
	hs := health.NewServer()
	hs.SetServingStatus(userrpc.ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(s, hs)

	go func() {
		<-ctx.Done()
		log.Info("[user-service] shutting down")
		hs.Shutdown()
		s.GracefulStop()
	}()

	log.WithField("addr", cfg.GRPCAddr).Info("[user-service] listening")
	return s.Serve(l)
}

func balance(cctx *cli.Context) error {
	var id int64
	if _, err := fmt.Sscan(cctx.Args().First(), &id); err != nil || id <= 0 {
		return cli.Exit("usage: user-service balance <user id>", 2)
	}
	conn, err := grpc.NewClient(cctx.String("addr"), grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return err
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(cctx.Context, 5*time.Second)
	defer cancel()
	c := userrpc.NewClient(conn)
	ok, err := c.ValidateUser(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return cli.Exit(fmt.Sprintf("user %d not found", id), 1)
	}
	pts, err := c.GetPointBalance(ctx, id)
	if err != nil {
		return err
	}
	fmt.Fprintf(cctx.App.Writer, "user %d: %d points\n", id, pts)
	return nil
}

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/crypto/acme/autocert"
	"golang.org/x/sync/errgroup"

	"github.com/atinyakov/shorturl-microservice/internal/app/server"
	shortgrpc "github.com/atinyakov/shorturl-microservice/internal/app/server/grpc"
	"github.com/atinyakov/shorturl-microservice/internal/app/service"
	"github.com/atinyakov/shorturl-microservice/internal/config"
	"github.com/atinyakov/shorturl-microservice/internal/logger"

	_ "net/http/pprof"
)

var buildVersion string
var buildDate string
var buildCommit string

const (
	pprofAddr       = "localhost:6060"
	shutdownTimeout = 10 * time.Second
)

func main() {
	cobra.CheckErr(newRootCmd().Execute())
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "shortener",
		Short:         "URL shortener microservice",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts, err := config.Load(cmd.Flags())
			if err != nil {
				return err
			}

			printBuildInfo(cmd.OutOrStdout())

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return run(ctx, opts)
		},
	}

	config.BindFlags(cmd.Flags())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			printBuildInfo(cmd.OutOrStdout())
		},
	}
}

func valueOrNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}

func printBuildInfo(w io.Writer) {
	fmt.Fprintf(w, "Build version: %s\n", valueOrNA(buildVersion))
	fmt.Fprintf(w, "Build date: %s\n", valueOrNA(buildDate))
	fmt.Fprintf(w, "Build commit: %s\n", valueOrNA(buildCommit))
}

func run(ctx context.Context, opts *config.Options) error {
	log := logger.New()
	if err := log.Init(opts.LogLevel, opts.LogFormat); err != nil {
		return err
	}
	zapLogger := log.Log
	defer func() {
		_ = zapLogger.Sync()
	}()

	b, err := openBackend(ctx, opts, zapLogger)
	if err != nil {
		zapLogger.Error("cannot open storage", zap.Error(err))
		return err
	}
	defer func() {
		if err := b.Close(); err != nil {
			zapLogger.Error("cannot close storage", zap.Error(err))
		}
	}()
	zapLogger.Info("storage ready", zap.String("backend", b.name))

	validator := service.NewValidator(nil, opts.ResolveTimeout, zapLogger)
	urlService := service.NewURL(validator, b.registry, zapLogger)

	// The journal outlives the listeners so that records created by
	// in-flight requests are flushed.
	var journal errgroup.Group
	journalCtx, stopJournal := context.WithCancel(context.WithoutCancel(ctx))
	defer stopJournal()
	if b.journal != nil {
		journal.Go(func() error {
			return b.journal.Run(journalCtx)
		})
	}

	g, gctx := errgroup.WithContext(ctx)

	httpServer := &http.Server{
		Addr:    opts.ServerAddress,
		Handler: server.Init(zapLogger, opts.TrustedSubnet, urlService),
	}
	if opts.EnableHTTPS {
		manager := &autocert.Manager{
			Cache:  autocert.DirCache("cache-dir"),
			Prompt: autocert.AcceptTOS,
		}
		httpServer.Addr = ":443"
		httpServer.TLSConfig = manager.TLSConfig()
	}

	g.Go(func() error {
		zapLogger.Info("HTTP server is running",
			zap.String("addr", httpServer.Addr), zap.Bool("tls", opts.EnableHTTPS))

		var err error
		if opts.EnableHTTPS {
			err = httpServer.ListenAndServeTLS("", "")
		} else {
			err = httpServer.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})

	var grpcServer *shortgrpc.Server
	if opts.GRPCAddress != "" {
		grpcServer = shortgrpc.New(opts.GRPCAddress, opts.TrustedSubnet, zapLogger, urlService)
		g.Go(grpcServer.Start)
	}

	var pprofServer *http.Server
	if opts.EnablePprof {
		pprofServer = &http.Server{Addr: pprofAddr}
		g.Go(func() error {
			zapLogger.Info("Starting pprof server", zap.String("addr", pprofAddr))
			if err := pprofServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		zapLogger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		errs := []error{httpServer.Shutdown(shutdownCtx)}
		if grpcServer != nil {
			grpcServer.GracefulStop()
		}
		if pprofServer != nil {
			errs = append(errs, pprofServer.Shutdown(shutdownCtx))
		}
		return errors.Join(errs...)
	})

	err = g.Wait()

	stopJournal()
	if jerr := journal.Wait(); jerr != nil && !errors.Is(jerr, context.Canceled) {
		err = errors.Join(err, jerr)
	}

	if err != nil {
		zapLogger.Error("server stopped with error", zap.Error(err))
	}
	return err
}

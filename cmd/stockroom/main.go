package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/stockroom/internal/app"
	"github.com/vladislavdragonenkov/stockroom/internal/version"
)

func main() {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		log.WithError(err).Fatal("приложение завершилось с ошибкой")
	}
}

// run разбирает флаги, загружает конфигурацию и запускает сервис до отмены ctx.
func run(ctx context.Context, args []string, stdout io.Writer) error {
	flags := flag.NewFlagSet("stockroom", flag.ContinueOnError)
	flags.SetOutput(stdout)
	envFile := flags.String("env-file", ".env", "optional dotenv file with STOCKROOM_* variables")
	showVersion := flags.Bool("version", false, "print version and exit")
	if err := flags.Parse(args); err != nil {
		return err
	}

	if *showVersion {
		_, err := fmt.Fprintln(stdout, version.String())
		return err
	}

	cfg, err := app.LoadConfig(*envFile)
	if err != nil {
		return err
	}

	log.WithFields(log.Fields{
		"grpc_addr":      cfg.GRPCAddr,
		"metrics_addr":   cfg.MetricsAddr,
		"storage_driver": cfg.StorageDriver,
		"kafka":          len(cfg.KafkaBrokers) > 0,
	}).Info("запускаем stockroom")

	if err := app.Run(ctx, cfg); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info("stockroom остановлен")
	return nil
}

package main

import (
	"text2phenotype.com/notex/api"
	"text2phenotype.com/notex/logger"
	"text2phenotype.com/notex/pipeline"
	"text2phenotype.com/notex/types"
	"text2phenotype.com/notex/worker"
	"context"
	"flag"
	"fmt"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"net/http"
	"os"
	"time"
)

type Config struct {
	WorkerActive bool `envconfig:"NOTEX_WORKER_ACTIVE" default:"true"`
}

const serviceStartMaxRetries = 5

func main() {
	logger.SetupLogging()
	mainLogger := logger.NewLogger("Main")
	fatalErrLogger := mainLogger.Fatal().Caller()

	var opts cliOptions
	flag.StringVar(&opts.notePath, "note", "", "path to a medical note text file; runs once and exits")
	flag.StringVar(&opts.mode, "mode", "entities", "entities, uscdi, single or class")
	flag.StringVar(&opts.dataClass, "class", "", "data class for -mode class")
	flag.StringVar(&opts.model, "model", "", "model id (default NOTEX_DEFAULT_MODEL)")
	flag.StringVar(&opts.outputPath, "output", "", "write the JSON result to this file")
	flag.BoolVar(&opts.enrich, "enrich", false, "attach concept identifiers in -mode uscdi")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		mainLogger.Debug().Err(err).Msg("No .env file loaded")
	}
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		fatalErrLogger.Err(err).Msg("Failed to read environment")
		os.Exit(1)
	}
	apiConfig, err := api.LoadConfig()
	if err != nil {
		fatalErrLogger.Err(err).Msg("Failed to read API environment")
		os.Exit(1)
	}

	ctx := context.Background()
	svc := startService(ctx)
	defer svc.Close()

	if opts.notePath != "" {
		if err := runCLI(ctx, svc, opts, os.Stdout); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			svc.Close()
			os.Exit(1)
		}
		return
	}

	if !svc.Ready() {
		mainLogger.Warn().Msg("No model credential configured, extraction requests will be refused")
	}

	if apiConfig.Active {
		go func() {
			host := fmt.Sprintf(":%d", apiConfig.Port)
			mainLogger.Info().Msgf("REST API on %s", host)
			server := &http.Server{
				Addr:              host,
				Handler:           api.NewServer(svc, apiConfig).Handler(),
				ReadHeaderTimeout: 10 * time.Second,
			}
			err := server.ListenAndServe()
			fatalErrLogger.Err(err).Msg("REST API stopped with error")
		}()
	}

	if !config.WorkerActive {
		if !apiConfig.Active {
			fatalErrLogger.Msg("Neither the REST API nor the worker is active, exiting")
			os.Exit(1)
		}
		select {}
	}

	mainLogger.Info().Msg("Start Notex Worker")
	for {
		rmqWorker, err := worker.New(svc)
		if err != nil {
			fatalErrLogger.Err(err).Msg("Could not initialize RMQ worker")
			os.Exit(1)
		}
		err = rmqWorker.StartWorker()
		if err != nil {
			mainLogger.Err(err).Msg("Worker returned with error. Launching new in 5 seconds")
			time.Sleep(5 * time.Second)
		}
	}
}

// startService builds the extraction service, retrying transient failures.
// Configuration errors are fatal.
func startService(ctx context.Context) *pipeline.Service {
	mainLogger := logger.NewLogger("Main")
	for retry := 0; retry < serviceStartMaxRetries; retry++ {
		svc, err := pipeline.FromEnvironment(ctx)
		if err == nil {
			mainLogger.Info().
				Str("schema_version", svc.SchemaVersion()).
				Bool("ready", svc.Ready()).
				Msg("Extraction service loaded")
			return svc
		}
		if types.IsConfigurationError(err) {
			mainLogger.Fatal().Err(err).Msg("Invalid configuration")
		}
		mainLogger.Err(err).Msg("Failed to start extraction service. Retrying in 5 sec")
		time.Sleep(5 * time.Second)
	}
	mainLogger.Fatal().Msgf("Could not start extraction service after %d retries, exiting", serviceStartMaxRetries)
	return nil
}

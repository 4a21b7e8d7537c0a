package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/libaas-store/storefront/internal/config"
	"github.com/libaas-store/storefront/internal/logging"
	"github.com/libaas-store/storefront/internal/repository"
	"github.com/libaas-store/storefront/internal/server"
	"github.com/libaas-store/storefront/internal/service"
)

func main() {
	// Command line flags
	bucket := flag.String("bucket", "", "Payment proofs bucket name (defaults to STORAGE_BUCKET_PAYMENT_PROOFS)")
	dryRun := flag.Bool("dry-run", false, "Report whether the bucket exists without creating it")
	timeout := flag.Duration("timeout", 30*time.Second, "Overall timeout")
	flag.Parse()

	cfg := config.LoadWithoutValidation()
	if *bucket != "" {
		cfg.Storage.PaymentProofsBucket = *bucket
	}

	log := logging.Component(logging.New(cfg.Log.Level, cfg.Log.Format), "provision")
	if err := cfg.ValidateStorage(); err != nil {
		fmt.Println("Usage: provision [-bucket <NAME>] [-dry-run] [-timeout <DURATION>]")
		fmt.Println("\nCreates the payment proofs bucket with the S3 service credential.")
		log.Fatal().Err(err).Msg("invalid storage configuration")
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	privileged, err := repository.NewS3ObjectStore(ctx, cfg.S3, repository.S3Credentials{
		AccessKeyID:     cfg.S3.ServiceAccessKeyID,
		SecretAccessKey: cfg.S3.ServiceSecretAccessKey,
	}, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create privileged object store client")
	}

	name := cfg.Storage.PaymentProofsBucket
	if *dryRun {
		buckets, err := privileged.ListBuckets(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to list buckets")
		}
		for _, b := range buckets {
			if b == name {
				fmt.Printf("bucket %q exists\n", name)
				return
			}
		}
		fmt.Printf("bucket %q does not exist and would be created\n", name)
		return
	}

	// Provisioning only touches the privileged store; the general one is never called
	storage := service.NewStorageService(server.StorageConfigFrom(cfg), privileged, privileged, log)
	if err := storage.CreatePaymentProofsBucket(ctx); err != nil {
		log.Error().Err(err).Str("bucket", name).Msg("provisioning failed")
		os.Exit(1)
	}
	fmt.Printf("bucket %q is ready\n", name)
}

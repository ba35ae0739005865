package main

import (
	"context"
	"os"
	"time"

	"github.com/apex/log"
	"github.com/aws/aws-lambda-go/lambda"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"

	"github.com/projectcloudline/loss-assessment-service/internal/awsutil"
	"github.com/projectcloudline/loss-assessment-service/internal/config"
	"github.com/projectcloudline/loss-assessment-service/internal/db"
	"github.com/projectcloudline/loss-assessment-service/internal/store"
)

func main() {
	config.SetupLogging(config.LogJSON, os.Stderr)

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("load config")
	}

	ctx := context.Background()
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		log.WithError(err).Fatal("load AWS config")
	}

	secrets := awsutil.NewSecretsProvider(secretsmanager.NewFromConfig(awsCfg))
	clients := config.NewClients(cfg, secrets)
	database := db.New(config.DBCredentials(cfg, secrets))

	h := &Handler{
		store:     store.New(database),
		s3:        awsutil.NewS3Client(s3.NewFromConfig(awsCfg)),
		oracles:   clients,
		embedder:  config.Embedder{Clients: clients},
		bucket:    cfg.PhotoBucket,
		minImages: cfg.MinImages,
		now:       time.Now,
	}

	lambda.Start(h.Handle)
}

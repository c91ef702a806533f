// Bedrock inference function, AWS Lambda entry point.
//
// Configuration is read from an optional YAML file (INFERENCE_CONFIG or
// ./config.yaml) and environment variables:
//
//	BEDROCK_REGION        region of the Bedrock Runtime endpoint (default: us-east-1)
//	BEDROCK_MODEL_ID      model invoked for every request
//	BEDROCK_ENDPOINT      endpoint override, e.g. a VPC endpoint
//	BEDROCK_MAX_ATTEMPTS  SDK attempts per call (default: SDK standard)
//	REDIS_ADDR            enables the response cache at host:port
//	REDIS_PASSWORD        Redis password
//	REDIS_DB              Redis database
//	CACHE_TTL             response cache TTL (default: 1h)
//	LOG_LEVEL             zerolog level (default: info)
//	LOG_FORMAT            json or console (default: json)
package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/abdhe/bedrock-inference-function/pkg/app"
	"github.com/abdhe/bedrock-inference-function/pkg/config"
	"github.com/abdhe/bedrock-inference-function/pkg/logging"
)

func main() {
	// The handler is built once per execution environment and reused across
	// warm invocations. lambda.Start never returns, so Redis is closed from
	// the SIGTERM hook instead.
	a, logger, err := setup(context.Background(), "", os.Stdout)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize function")
	}

	lambda.StartWithOptions(a.Handler.HandleEvent, lambda.WithEnableSIGTERM(func() {
		if err := a.Close(); err != nil {
			logger.Warn().Err(err).Msg("Failed to close response cache")
		}
	}))
}

func setup(ctx context.Context, configPath string, w io.Writer) (*app.App, zerolog.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, zerolog.Nop(), fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.New(cfg.Logging, w)
	if err != nil {
		return nil, zerolog.Nop(), fmt.Errorf("init logger: %w", err)
	}

	return app.New(ctx, cfg, logger), logger, nil
}

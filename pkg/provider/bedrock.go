package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
)

// BedrockConfig holds the settings for the Bedrock Runtime client.
type BedrockConfig struct {
	Region  string
	ModelID string

	// Endpoint overrides the resolved service endpoint (local stubs, VPC endpoints).
	Endpoint string

	// MaxAttempts caps SDK-level attempts. Zero keeps the SDK default.
	MaxAttempts int
}

// Bedrock implements Invoker on top of the Bedrock Runtime InvokeModel API.
// The SDK client is built on first use and reused afterwards.
type Bedrock struct {
	cfg BedrockConfig

	mu     sync.Mutex
	client *bedrockruntime.Client
}

// NewBedrock creates a Bedrock invoker. No network or credential work happens
// until the first Invoke.
func NewBedrock(cfg BedrockConfig) *Bedrock {
	if cfg.Region == "" {
		cfg.Region = DefaultRegion
	}
	if cfg.ModelID == "" {
		cfg.ModelID = DefaultModelID
	}
	return &Bedrock{cfg: cfg}
}

func (b *Bedrock) ModelID() string { return b.cfg.ModelID }

// Invoke sends the payload to the configured model and decodes the reply.
func (b *Bedrock) Invoke(ctx context.Context, payload Payload) (Result, error) {
	client, err := b.runtimeClient(ctx)
	if err != nil {
		return Result{}, err
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return Result{}, fmt.Errorf("bedrock: marshal request: %w", err)
	}

	out, err := client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(b.cfg.ModelID),
		Body:        body,
		ContentType: aws.String(ContentTypeJSON),
		Accept:      aws.String(ContentTypeJSON),
	})
	if err != nil {
		return Result{}, fmt.Errorf("bedrock: invoke model: %w", AsServiceError(err))
	}

	return DecodeResult(out.Body)
}

func (b *Bedrock) runtimeClient(ctx context.Context) (*bedrockruntime.Client, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.client != nil {
		return b.client, nil
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(b.cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("bedrock: load aws config: %w", err)
	}

	b.client = bedrockruntime.NewFromConfig(awsCfg, func(o *bedrockruntime.Options) {
		if b.cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(b.cfg.Endpoint)
		}
		if b.cfg.MaxAttempts > 0 {
			o.RetryMaxAttempts = b.cfg.MaxAttempts
		}
	})
	return b.client, nil
}

// DecodeResult parses a model reply. The usage value is kept verbatim.
func DecodeResult(data []byte) (Result, error) {
	var res Result
	if err := json.Unmarshal(data, &res); err != nil {
		return Result{}, fmt.Errorf("bedrock: decode response: %w", err)
	}
	if res.Content == nil {
		return Result{}, fmt.Errorf("bedrock: decode response: %w", errMissingContent)
	}
	return res, nil
}

var errMissingContent = errors.New(`reply has no "content" field`)

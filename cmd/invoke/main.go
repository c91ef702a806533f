// invoke runs the handler once against the configured Bedrock endpoint and
// prints the resulting envelope. Logs go to stderr.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/abdhe/bedrock-inference-function/pkg/app"
	"github.com/abdhe/bedrock-inference-function/pkg/config"
	"github.com/abdhe/bedrock-inference-function/pkg/logging"
	"github.com/abdhe/bedrock-inference-function/pkg/proxy"
)

func main() {
	prompt := flag.String("prompt", "Explain quantum computing in simple terms", "Prompt sent to the model")
	maxTokens := flag.Int("max-tokens", 500, "Maximum tokens to generate")
	temperature := flag.Float64("temperature", 0.7, "Sampling temperature")
	configPath := flag.String("config", "", "Path to a YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	logger, err := logging.New(cfg.Logging, os.Stderr)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to init logger")
	}

	a := app.New(context.Background(), cfg, logger)
	defer a.Close()

	resp := a.Handler.Handle(context.Background(), buildRequest(*prompt, *maxTokens, *temperature))

	out, err := json.MarshalIndent(resp, "", "  ")
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to encode result")
	}
	fmt.Println("Test Result:")
	fmt.Println(string(out))
}

func buildRequest(prompt string, maxTokens int, temperature float64) proxy.Request {
	tokens := json.Number(strconv.Itoa(maxTokens))
	return proxy.Request{
		Prompt:      prompt,
		MaxTokens:   &tokens,
		Temperature: &temperature,
	}
}

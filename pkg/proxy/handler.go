// Package proxy implements the function handler that forwards a prompt to the
// inference service and maps the outcome to a response envelope.
package proxy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/abdhe/bedrock-inference-function/pkg/metrics"
	"github.com/abdhe/bedrock-inference-function/pkg/provider"
)

const (
	defaultMaxTokens     = 1000
	defaultTemperature   = 0.7
	defaultPreviewLength = 100
	defaultCacheTimeout  = time.Second
)

var errNoInvoker = errors.New("no model invoker configured")

// ResponseCache is the optional exact-match cache consulted before invoking.
type ResponseCache interface {
	Key(modelID string, payload provider.Payload) (string, error)
	Get(ctx context.Context, key string) (provider.Result, bool, error)
	Set(ctx context.Context, key string, res provider.Result) error
}

// Config holds the handler configuration.
type Config struct {
	Invoker provider.Invoker
	Cache   ResponseCache // nil disables caching
	Logger  zerolog.Logger

	DefaultMaxTokens   int
	DefaultTemperature float64
	PreviewLength      int
	CacheTimeout       time.Duration
}

// Handler turns one inbound request into one response envelope.
type Handler struct {
	invoker provider.Invoker
	cache   ResponseCache
	logger  zerolog.Logger

	maxTokens     int
	temperature   float64
	previewLength int
	cacheTimeout  time.Duration
}

// NewHandler creates a new handler. Zero-valued settings take the defaults
// max_tokens=1000, temperature=0.7 and a 100 character prompt preview.
func NewHandler(cfg Config) *Handler {
	if cfg.DefaultMaxTokens <= 0 {
		cfg.DefaultMaxTokens = defaultMaxTokens
	}
	if cfg.DefaultTemperature == 0 {
		cfg.DefaultTemperature = defaultTemperature
	}
	if cfg.PreviewLength <= 0 {
		cfg.PreviewLength = defaultPreviewLength
	}
	if cfg.CacheTimeout <= 0 {
		cfg.CacheTimeout = defaultCacheTimeout
	}
	return &Handler{
		invoker:       cfg.Invoker,
		cache:         cfg.Cache,
		logger:        cfg.Logger.With().Str("component", "handler").Logger(),
		maxTokens:     cfg.DefaultMaxTokens,
		temperature:   cfg.DefaultTemperature,
		previewLength: cfg.PreviewLength,
		cacheTimeout:  cfg.CacheTimeout,
	}
}

// HandleEvent is the Lambda entry point. The error return is always nil:
// undecodable events are reported as an internal error envelope.
func (h *Handler) HandleEvent(ctx context.Context, event json.RawMessage) (Response, error) {
	var req Request
	if len(event) > 0 {
		if err := json.Unmarshal(event, &req); err != nil {
			log := h.requestLogger(ctx)
			return h.failure(log, h.invoker.ModelID(), time.Now(), fmt.Errorf("decode event: %w", err)), nil
		}
	}
	return h.Handle(ctx, req), nil
}

// Handle validates the request, invokes the model and builds the envelope.
// It never panics and never returns a malformed envelope.
func (h *Handler) Handle(ctx context.Context, req Request) (resp Response) {
	start := time.Now()
	metrics.ActiveRequests.Inc()
	defer metrics.ActiveRequests.Dec()

	log := h.requestLogger(ctx)
	var model string

	defer func() {
		if r := recover(); r != nil {
			resp = h.failure(log, model, start, fmt.Errorf("panic: %v", r))
		}
	}()

	model = h.modelID()

	if req.Prompt == "" {
		h.observe(model, metrics.StatusInvalid, start)
		return validationResponse()
	}

	maxTokens := json.Number(strconv.Itoa(h.maxTokens))
	if req.MaxTokens != nil {
		maxTokens = *req.MaxTokens
	}
	temperature := h.temperature
	if req.Temperature != nil {
		temperature = *req.Temperature
	}

	payload := provider.NewPayload(req.Prompt, maxTokens, temperature)

	res, cached, err := h.generate(ctx, log, model, payload)
	if err != nil {
		return h.failure(log, model, start, err)
	}

	text, err := res.Text()
	if err != nil {
		return h.failure(log, model, start, err)
	}

	status := metrics.StatusSuccess
	if cached {
		status = metrics.StatusCacheHit
	} else {
		metrics.RecordTokens(model, res.InputTokens(), res.OutputTokens())
	}
	h.observe(model, status, start)

	log.Info().
		Bool("cached", cached).
		Dur("latency", time.Since(start)).
		Msg("Successfully generated response")

	return successResponse(text, res.Usage, model)
}

// generate serves the payload from the cache when possible, otherwise from
// the invoker. Cache failures are logged and treated as a miss.
func (h *Handler) generate(ctx context.Context, log zerolog.Logger, model string, payload provider.Payload) (provider.Result, bool, error) {
	if h.invoker == nil {
		return provider.Result{}, false, errNoInvoker
	}
	prompt := payload.Messages[0].Content

	var key string
	if h.cache != nil {
		k, err := h.cache.Key(model, payload)
		if err != nil {
			log.Warn().Err(err).Msg("Cache key derivation failed")
		} else {
			key = k
			res, found, err := h.cacheGet(ctx, key)
			switch {
			case err != nil:
				metrics.CacheLookupsTotal.WithLabelValues("error").Inc()
				log.Warn().Err(err).Msg("Cache lookup failed (treating as miss)")
			case found:
				metrics.CacheLookupsTotal.WithLabelValues("hit").Inc()
				log.Info().
					Str("model_id", model).
					Str("prompt_preview", preview(prompt, h.previewLength)).
					Msg("Serving response from cache")
				return res, true, nil
			default:
				metrics.CacheLookupsTotal.WithLabelValues("miss").Inc()
			}
		}
	}

	log.Info().
		Str("model_id", model).
		Str("prompt_preview", preview(prompt, h.previewLength)).
		Msg("Invoking model")

	res, err := h.invoker.Invoke(ctx, payload)
	if err != nil {
		return provider.Result{}, false, err
	}

	if key != "" && len(res.Content) > 0 {
		if err := h.cacheSet(ctx, key, res); err != nil {
			log.Warn().Err(err).Msg("Cache store failed")
		}
	}

	return res, false, nil
}

func (h *Handler) cacheGet(ctx context.Context, key string) (provider.Result, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, h.cacheTimeout)
	defer cancel()
	return h.cache.Get(ctx, key)
}

func (h *Handler) cacheSet(ctx context.Context, key string, res provider.Result) error {
	ctx, cancel := context.WithTimeout(ctx, h.cacheTimeout)
	defer cancel()
	return h.cache.Set(ctx, key, res)
}

// failure classifies err as a service-reported or unexpected error and
// builds the matching 500 envelope.
func (h *Handler) failure(log zerolog.Logger, model string, start time.Time, err error) Response {
	var svcErr *provider.ServiceError
	if errors.As(err, &svcErr) {
		log.Error().
			Str("error_code", svcErr.Code).
			Str("error_message", svcErr.Message).
			Msg("AWS client error")
		metrics.ServiceErrorsTotal.WithLabelValues(svcErr.Code).Inc()
		h.observe(model, metrics.StatusServiceError, start)
		return errorResponse(serviceErrPrefix+svcErr.Code, svcErr.Message)
	}

	log.Error().Err(err).Msg("Unexpected error")
	h.observe(model, metrics.StatusInternal, start)
	return errorResponse(ErrInternal, err.Error())
}

func (h *Handler) modelID() string {
	if h.invoker == nil {
		return ""
	}
	return h.invoker.ModelID()
}

func (h *Handler) observe(model, status string, start time.Time) {
	metrics.RequestsTotal.WithLabelValues(status).Inc()
	metrics.RequestLatency.WithLabelValues(model, status).Observe(time.Since(start).Seconds())
}

func (h *Handler) requestLogger(ctx context.Context) zerolog.Logger {
	return h.logger.With().Str("request_id", RequestID(ctx)).Logger()
}

// preview returns the first n characters of s, marking truncation.
func preview(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}

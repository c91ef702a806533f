package proxy

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"

	"github.com/aws/aws-lambda-go/lambdacontext"
	"github.com/google/uuid"
)

// Error categories returned in the "error" field of failure bodies.
const (
	ErrPromptRequired = "Prompt is required"
	ErrInternal       = "Internal server error"
	serviceErrPrefix  = "AWS Error: "
)

// Request is the inbound event. MaxTokens and Temperature are pointers so an
// absent field can be told apart from an explicit zero. MaxTokens keeps the
// caller's number literal (800.0, 1e4) so it reaches the model unchanged.
type Request struct {
	Prompt      string       `json:"prompt"`
	MaxTokens   *json.Number `json:"max_tokens,omitempty"`
	Temperature *float64     `json:"temperature,omitempty"`
}

// Response is the envelope returned for every invocation. Body holds a
// serialized JSON object.
type Response struct {
	StatusCode int    `json:"statusCode"`
	Body       string `json:"body"`
}

type successBody struct {
	Response string          `json:"response"`
	Usage    json.RawMessage `json:"usage"`
	Model    string          `json:"model"`
}

var emptyUsage = json.RawMessage(`{}`)

type validationBody struct {
	Error string `json:"error"`
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func successResponse(text string, usage json.RawMessage, model string) Response {
	if len(usage) == 0 || bytes.Equal(usage, []byte("null")) {
		usage = emptyUsage
	}
	body, err := encodeBody(successBody{Response: text, Usage: usage, Model: model}, true)
	if err != nil {
		return errorResponse(ErrInternal, err.Error())
	}
	return Response{StatusCode: http.StatusOK, Body: body}
}

func validationResponse() Response {
	body, err := encodeBody(validationBody{Error: ErrPromptRequired}, false)
	if err != nil {
		body = `{"error":"` + ErrPromptRequired + `"}`
	}
	return Response{StatusCode: http.StatusBadRequest, Body: body}
}

func errorResponse(category, message string) Response {
	body, err := encodeBody(errorBody{Error: category, Message: message}, false)
	if err != nil {
		body = `{"error":"` + ErrInternal + `","message":""}`
	}
	return Response{StatusCode: http.StatusInternalServerError, Body: body}
}

// encodeBody serializes v without HTML escaping so generated text is kept as-is.
func encodeBody(v any, indent bool) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if indent {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	return string(bytes.TrimRight(buf.Bytes(), "\n")), nil
}

type requestIDKey struct{}

// WithRequestID attaches a caller-supplied request ID used in log lines.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestID returns the ID for log correlation: an explicit ID from
// WithRequestID, the Lambda request ID, or a fresh UUID.
func RequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok && id != "" {
		return id
	}
	if lc, ok := lambdacontext.FromContext(ctx); ok && lc.AwsRequestID != "" {
		return lc.AwsRequestID
	}
	return uuid.NewString()
}

package main

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	emw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/abdhe/bedrock-inference-function/pkg/proxy"
)

const requestIDHeader = "X-Request-Id"

func newServer(h *proxy.Handler, logger zerolog.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.GET("/ping", func(c echo.Context) error {
		return c.String(http.StatusOK, "")
	})
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	base := e.Group("")
	base.Use(emw.Recover())
	base.Use(trackMiddleware(logger))
	base.POST("/invoke", invoke(h))

	return e
}

// invoke passes the raw request body to the handler as a function event and
// answers with the envelope, using its statusCode as the HTTP status.
func invoke(h *proxy.Handler) echo.HandlerFunc {
	return func(c echo.Context) error {
		body, err := io.ReadAll(c.Request().Body)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "failed to read body")
		}

		ctx := c.Request().Context()
		if id := c.Request().Header.Get(requestIDHeader); id != "" {
			ctx = proxy.WithRequestID(ctx, id)
		}

		resp, _ := h.HandleEvent(ctx, json.RawMessage(body))
		return c.JSON(resp.StatusCode, resp)
	}
}

func trackMiddleware(logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			logger.Info().
				Str("path", c.Path()).
				Int("status_code", c.Response().Status).
				Dur("duration", time.Since(start)).
				Msg("end_of_request")
			return err
		}
	}
}

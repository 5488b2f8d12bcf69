// Package esco is a taxonomy.Client for the ESCO REST API.
package esco

import (
	"context"
	"net/http"
	"time"

	"github.com/spigell/skill-mapper/internal/logger"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	apiURL          = "https://ec.europa.eu/esco/api"
	userAgent       = "spigell/skill-mapper"
	defaultLanguage = "en"
	defaultRate     = 5
	name            = "ESCO"
)

type Client struct {
	HTTPClient *http.Client
	UserAgent  string
	APIURL     string
	// Language is used when a search does not specify one.
	Language string

	limiter *rate.Limiter
	logger  *zap.Logger
}

// New builds an ESCO client limited to rps requests per second.
func New(log *zap.Logger, rps float64, burst int) *Client {
	if rps <= 0 {
		rps = defaultRate
	}
	if burst <= 0 {
		burst = int(rps)
		if burst < 1 {
			burst = 1
		}
	}

	return &Client{
		APIURL:   apiURL,
		Language: defaultLanguage,
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		UserAgent: userAgent,
		limiter:   rate.NewLimiter(rate.Limit(rps), burst),
		logger:    logger.Component(log, "esco"),
	}
}

func (c *Client) Name() string { return name }

func (c *Client) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	return c.limiter.Wait(ctx)
}

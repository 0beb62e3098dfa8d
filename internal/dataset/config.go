package dataset

import (
	"fmt"
	"strings"

	"github.com/bobby-s-dev/airquality-aggregator/internal/config"
	"github.com/bobby-s-dev/airquality-aggregator/internal/models"
	"github.com/bobby-s-dev/airquality-aggregator/pkg/client"
	"go.uber.org/zap"
)

// NewLoaderFromConfig builds a Loader for specs, or for the configured sources
// when specs is empty. Remote sources go through a retrying, circuit-broken client.
func NewLoaderFromConfig(cfg *config.Config, specs []string, logger *zap.Logger) (*Loader, error) {
	if len(specs) == 0 {
		specs = cfg.Data.Sources
	}
	if len(specs) == 0 {
		return nil, fmt.Errorf("no data sources configured")
	}

	opts := Options{}
	for _, name := range cfg.Data.OutlierColumns {
		name = strings.TrimSpace(name)
		if !models.IsMeasure(name) {
			return nil, fmt.Errorf("unknown outlier column %q", name)
		}
		opts.OutlierColumns = append(opts.OutlierColumns, models.Measure(name))
	}

	fetcher := client.NewBaseClient("remote-csv", client.ClientConfig{
		Timeout:        cfg.HTTP.Timeout,
		MaxRetries:     cfg.Retry.MaxRetries,
		RetryDelay:     cfg.Retry.Delay,
		Multiplier:     cfg.Retry.Multiplier,
		Threshold:      cfg.CircuitBreaker.Threshold,
		BreakerTimeout: cfg.CircuitBreaker.Timeout,
	}, logger)

	resolve := ResolveOptions{
		Encoding: cfg.Data.Encoding,
		Sheet:    cfg.Data.Sheet,
		Fetcher:  fetcher,
		Exclude:  []string{cfg.Data.SnapshotPath},
	}
	return NewLoader(specs, resolve, opts, logger), nil
}

// Package launch opens the browser backend named in the configuration.
package launch

import (
	"context"
	"errors"
	"fmt"

	"github.com/phuslu/log"

	"github.com/gti/jenkins-acceptance/internal/config"
	"github.com/gti/jenkins-acceptance/internal/driver"
	"github.com/gti/jenkins-acceptance/internal/driver/cdpdriver"
	"github.com/gti/jenkins-acceptance/internal/driver/pwdriver"
	"github.com/gti/jenkins-acceptance/internal/driver/rodriver"
	"github.com/gti/jenkins-acceptance/internal/driver/seldriver"
)

// ErrNoSeleniumURL is returned when the selenium backend has no grid to
// connect to.
var ErrNoSeleniumURL = errors.New("selenium driver needs SELENIUM_URL")

type opener func(ctx context.Context, cfg *config.Config) (driver.Driver, error)

var openers = map[string]opener{
	config.DriverRod: func(ctx context.Context, cfg *config.Config) (driver.Driver, error) {
		return rodriver.New(ctx, rodriver.Options{Headless: cfg.Headless})
	},
	config.DriverChromedp: func(ctx context.Context, cfg *config.Config) (driver.Driver, error) {
		return cdpdriver.New(ctx, cdpdriver.Options{Headless: cfg.Headless})
	},
	config.DriverPlaywright: func(ctx context.Context, cfg *config.Config) (driver.Driver, error) {
		return pwdriver.New(ctx, pwdriver.Options{Headless: cfg.Headless})
	},
	config.DriverSelenium: func(ctx context.Context, cfg *config.Config) (driver.Driver, error) {
		if cfg.SeleniumURL == "" {
			return nil, ErrNoSeleniumURL
		}
		return seldriver.New(ctx, seldriver.Options{RemoteURL: cfg.SeleniumURL, Headless: cfg.Headless})
	},
}

// Open starts the backend selected by cfg.Driver.
func Open(ctx context.Context, cfg *config.Config) (driver.Driver, error) {
	name := cfg.Driver
	if name == "" {
		name = config.DriverRod
	}
	open, ok := openers[name]
	if !ok {
		return nil, fmt.Errorf("unknown driver %q", name)
	}

	log.Info().Str("driver", name).Bool("headless", cfg.Headless).Msg("opening browser")
	d, err := open(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s driver: %w", name, err)
	}
	return d, nil
}

// Drivers lists the accepted backend names.
func Drivers() []string {
	return []string{config.DriverRod, config.DriverChromedp, config.DriverPlaywright, config.DriverSelenium}
}

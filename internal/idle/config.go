package idle

import (
	"errors"
	"fmt"
	"time"

	"idlegate/internal/constants"
)

var ErrInvalidConfig = errors.New("idle: invalid config")

type Config struct {
	// IdleMax is the total inactivity budget before forced sign-out.
	IdleMax time.Duration
	// Warning is the tail of IdleMax during which the countdown is shown.
	Warning time.Duration
	// ExemptRoute suspends the coordinator while the tab is on it.
	ExemptRoute string
	// TouchOnSignIn treats a fresh sign-in as activity, so a new session
	// never inherits a stale clock. Returning from the exempt route without
	// signing in again keeps the shared clock either way.
	TouchOnSignIn bool
}

func DefaultConfig() Config {
	return Config{
		IdleMax:       constants.DefaultIdleMax,
		Warning:       constants.DefaultWarning,
		ExemptRoute:   constants.DefaultExemptRoute,
		TouchOnSignIn: true,
	}
}

func (c Config) Validate() error {
	if c.IdleMax <= 0 {
		return fmt.Errorf("%w: idle max must be positive, got %s", ErrInvalidConfig, c.IdleMax)
	}
	if c.Warning <= 0 {
		return fmt.Errorf("%w: warning must be positive, got %s", ErrInvalidConfig, c.Warning)
	}
	if c.Warning >= c.IdleMax {
		return fmt.Errorf("%w: warning %s must be shorter than idle max %s", ErrInvalidConfig, c.Warning, c.IdleMax)
	}
	return nil
}

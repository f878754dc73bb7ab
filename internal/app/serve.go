package app

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/venatordev/venator/internal/interfaces"
	"github.com/venatordev/venator/internal/models"
)

// stopFilePollInterval is how often the serve loop checks for the stop file.
const stopFilePollInterval = time.Second

// Serve runs the long-lived service loop: warm the browser up,
// authenticate, then re-probe and publish health on the configured schedule
// until a signal cancels ctx or the stop file appears. The browser stays up
// after the loop exits so searches keep working.
func (a *App) Serve(ctx context.Context) error {
	handle, err := a.BrowserService.Acquire(ctx)
	if err != nil {
		return err
	}
	defer a.BrowserService.Release(handle)

	if _, err := a.AuthService.EnsureAuthenticated(ctx, handle); err != nil {
		return err
	}

	a.healthCheck(ctx, handle)

	scheduler := cron.New()
	_, err = scheduler.AddFunc(a.Config.Service.HealthCheckSchedule, func() {
		a.healthCheck(ctx, handle)
	})
	if err != nil {
		return fmt.Errorf("invalid health check schedule %q: %w", a.Config.Service.HealthCheckSchedule, err)
	}
	scheduler.Start()
	defer scheduler.Stop()

	a.Logger.Info().
		Str("schedule", a.Config.Service.HealthCheckSchedule).
		Str("stop_file", a.Config.Service.StopFile).
		Msg("Service running")

	ticker := time.NewTicker(stopFilePollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			a.Logger.Info().Msg("Service stopping on signal")
			a.clearStatus()
			return nil
		case <-ticker.C:
			if _, err := os.Stat(a.Config.Service.StopFile); err == nil {
				a.Logger.Info().Str("stop_file", a.Config.Service.StopFile).Msg("Stop file found, service stopping")
				_ = os.Remove(a.Config.Service.StopFile)
				a.clearStatus()
				return nil
			}
		}
	}
}

// healthCheck re-probes the browser and the session on every tick, so the
// heartbeat reflects session expiry instead of replaying the startup state.
// An expired session gets one re-login attempt per tick.
func (a *App) healthCheck(ctx context.Context, handle *interfaces.BrowserHandle) {
	st := a.BrowserService.Status(ctx)
	if st.BrowserAlive {
		state, err := a.AuthService.EnsureAuthenticated(ctx, handle)
		if err != nil {
			a.Logger.Warn().Err(err).Msg("Re-authentication failed during health check")
		}
		st.Authenticated = err == nil && state.IsAuthenticated()
	}
	if err := a.StatusWriter.Write(st); err != nil {
		a.Logger.Warn().Err(err).Msg("Failed to publish status")
	} else {
		a.Logger.Debug().Bool("browser_alive", st.BrowserAlive).Bool("authenticated", st.Authenticated).Msg("Status published")
	}
}

func (a *App) clearStatus() {
	if err := a.StatusWriter.Write(models.ServiceStatus{Running: false, Timestamp: time.Now().UTC()}); err != nil {
		a.Logger.Warn().Err(err).Msg("Failed to write shutdown status")
	}
}

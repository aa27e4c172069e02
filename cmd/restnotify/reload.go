package main

import (
	"github.com/rs/zerolog"

	"github.com/restnotify/restnotify/internal/config"
	"github.com/restnotify/restnotify/internal/metrics"
	"github.com/restnotify/restnotify/internal/notify"
)

// applyReload rebuilds the services from cfg and swaps them in. A config
// whose services cannot be built leaves the running set untouched.
func applyReload(mn *notify.MultiNotifier, cfg *config.Config, log zerolog.Logger) bool {
	services, err := notify.FromConfig(cfg)
	if err != nil {
		log.Warn().Err(err).Msg("config reload: keeping previous services")
		return false
	}
	mn.Replace(services)
	metrics.IncReload()
	log.Info().Strs("services", mn.Names()).Msg("notification services replaced")
	return true
}

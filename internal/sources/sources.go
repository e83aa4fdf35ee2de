package sources

import (
	"time"

	"github.com/OpsCenterRio/COR-Backend/internal/config"
)

// Source binds a provider to its cache namespace, key and freshness TTL.
type Source struct {
	Namespace string
	Key       string
	TTL       time.Duration
	Provider  Provider
}

// BuildSources wires every external feed from configuration. Unconfigured
// feeds still get a source; their provider fails fast and the cache fallback
// answers if it can.
func BuildSources(cfg *config.Config) map[string]Source {
	timeout := cfg.ProviderTimeout
	return map[string]Source{
		"weather-now": {
			Namespace: "weather",
			Key:       "now",
			TTL:       cfg.TTLWeatherNow,
			Provider:  newHTTPProvider("weather", cfg.WeatherProviderURL, cfg.WeatherProviderKey, timeout),
		},
		"weather-forecast": {
			Namespace: "weather",
			Key:       "forecast",
			TTL:       cfg.TTLWeatherForecast,
			Provider:  newHTTPProvider("forecast", cfg.ForecastProviderURL, cfg.WeatherProviderKey, timeout),
		},
		"radar": {
			Namespace: "radar",
			Key:       "latest",
			TTL:       cfg.TTLRadar,
			Provider:  newHTTPProvider("radar", cfg.RadarProviderURL, cfg.RadarProviderKey, timeout),
		},
		"rain-gauges": {
			Namespace: "rain_gauges",
			Key:       "latest",
			TTL:       cfg.TTLRainGauges,
			Provider:  newHTTPProvider("rain-gauges", cfg.RainGaugeProviderURL, cfg.RainGaugeProviderKey, timeout),
		},
		"incidents": {
			Namespace: "incidents",
			Key:       "open",
			TTL:       cfg.TTLIncidents,
			Provider:  newHTTPProvider("incidents", cfg.IncidentsProviderURL, cfg.IncidentsProviderKey, timeout),
		},
		"alertario": {
			Namespace: "alertario",
			Key:       "current",
			TTL:       cfg.TTLAlertaRio,
			Provider:  newHTTPProvider("alertario", cfg.AlertaRioProviderURL, "", timeout),
		},
		"alertario-extended": {
			Namespace: "alertario",
			Key:       "extended",
			TTL:       cfg.TTLAlertaRioExt,
			Provider:  newHTTPProvider("alertario-extended", cfg.AlertaRioExtendedURL, "", timeout),
		},
		"sirens": {
			Namespace: "sirens",
			Key:       "latest",
			TTL:       cfg.TTLSirens,
			Provider:  newSirenProvider(cfg.SirenProviderURL, timeout),
		},
	}
}

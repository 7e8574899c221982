package config

import (
	"errors"
	"log"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Options tunes Load. The zero value reads config/<service>.yaml or
// ./<service>.yaml and fails when neither exists.
type Options struct {
	// File overrides the search path with an explicit file.
	File string
	// Defaults are applied before the file and the environment.
	Defaults map[string]any
	// Optional lets a service run on defaults + env when no file is found.
	Optional bool
	// Watch reloads out when the file changes. OnChange runs after a
	// successful reload.
	Watch    bool
	OnChange func()
}

// Load reads the service config into out. Environment variables override
// keys: with service "market-server", MARKET_SERVER_HTTP_ADDR sets http.addr.
func Load(service string, out interface{}, opts Options) (*viper.Viper, error) {
	v := viper.New()
	for k, val := range opts.Defaults {
		v.SetDefault(k, val)
	}
	if opts.File != "" {
		v.SetConfigFile(opts.File)
	} else {
		v.SetConfigName(service)
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(strings.ToUpper(strings.ReplaceAll(service, "-", "_")))
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !opts.Optional || !errors.As(err, &notFound) {
			return nil, err
		}
		log.Printf("[%s] no config file, using defaults and env", service)
	} else {
		log.Printf("[%s] config loaded from %s", service, v.ConfigFileUsed())
	}

	if err := v.Unmarshal(out); err != nil {
		return nil, err
	}

	if opts.Watch && v.ConfigFileUsed() != "" {
		var mu sync.Mutex
		v.OnConfigChange(func(e fsnotify.Event) {
			mu.Lock()
			defer mu.Unlock()
			log.Printf("[%s] config file changed: %s", service, e.Name)
			if err := v.Unmarshal(out); err != nil {
				log.Printf("[%s] reload config error: %v", service, err)
				return
			}
			log.Printf("[%s] config reloaded OK", service)
			if opts.OnChange != nil {
				opts.OnChange()
			}
		})
		v.WatchConfig()
	}
	return v, nil
}

// LoadAndWatch is Load with watching on and a mandatory file.
func LoadAndWatch(service string, out interface{}) (*viper.Viper, error) {
	return Load(service, out, Options{Watch: true})
}

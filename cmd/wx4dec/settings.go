package wx4dec

import (
	log "github.com/sirupsen/logrus"

	"github.com/sjzar/wx4dec/pkg/config"
)

const appName = "wx4dec"

// Settings holds the persisted defaults for flags a user would
// otherwise have to repeat on every invocation: the worker count,
// whether incremental mode and post-decrypt verification are on by
// default, and a table of named input roots so `--input wechat`
// can stand in for a long path. Settings lives at
// ~/.wx4dec/wx4dec.json and flags always win over it
// when explicitly set.
type Settings struct {
	Workers     int               `mapstructure:"workers"`
	Incremental bool              `mapstructure:"incremental"`
	Verify      bool              `mapstructure:"verify"`
	Roots       map[string]string `mapstructure:"roots"`
}

var settingsDefaults = map[string]interface{}{
	"workers":     -1,
	"incremental": false,
	"verify":      false,
	"roots":       "",
}

// loadSettings reads persisted defaults, writing a config file that
// holds the default values on first run. A failure to load is non-fatal: the CLI falls back to
// its flag defaults rather than refusing to run over a config error.
func loadSettings() *Settings {
	s := &Settings{}

	mgr, err := config.New(appName, "", "", appName, true)
	if err != nil {
		log.Debugf("settings: init failed, using flag defaults: %v", err)
		return s
	}
	config.SetDefaults(mgr.Viper, s, settingsDefaults)

	if err := mgr.Load(s); err != nil {
		log.Debugf("settings: load failed, using flag defaults: %v", err)
	}
	return s
}

// resolveRoot expands a named root from Settings.Roots if path matches
// one of its keys, otherwise returns path unchanged. This lets
// `--input wechat` stand in for whatever long path "wechat" was bound
// to in the config file or the WX4DEC_ROOTS env var.
func (s *Settings) resolveRoot(path string) string {
	if s == nil || path == "" {
		return path
	}
	if resolved, ok := s.Roots[path]; ok {
		return resolved
	}
	return path
}

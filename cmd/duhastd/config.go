/*
File Name:  config.go

YAML configuration: a Config struct unmarshaled with gopkg.in/yaml.v3,
falling back to built-in defaults when the file is absent.
*/

package main

import (
	"io/ioutil"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is duhastd's runtime configuration.
type Config struct {
	Listen       string   `yaml:"Listen"`       // UDP listen address, e.g. "0.0.0.0:6881"
	QueryTimeout yamlDur  `yaml:"QueryTimeout"` // Per-query timeout before a send_message call fails
	StatePath    string   `yaml:"StatePath"`    // Where identity/peers are persisted
	SeedPeers    []string `yaml:"SeedPeers"`    // host:port addresses to bootstrap find_node against
}

// yamlDur is a time.Duration that unmarshals from the same strings
// time.ParseDuration accepts ("2s", "500ms"), since yaml.v3 has no built-in
// notion of durations.
type yamlDur time.Duration

func (d *yamlDur) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return err
	}
	*d = yamlDur(parsed)
	return nil
}

func (d yamlDur) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// defaultConfig returns the settings used when no config file exists. The
// seed peer list is empty, so no bootstrap query is sent by default.
func defaultConfig() Config {
	return Config{
		Listen:       "0.0.0.0:6881",
		QueryTimeout: yamlDur(time.Second),
		StatePath:    DefaultStatePath,
		SeedPeers:    nil,
	}
}

// LoadConfig reads filename if present, otherwise returns defaultConfig().
func LoadConfig(filename string) (Config, error) {
	cfg := defaultConfig()

	data, err := ioutil.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

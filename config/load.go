package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadConfig loads the config from the given file.
func LoadConfig(filename string) (*Config, error) {
	if filename == "" {
		return nil, errors.New("no config file specified")
	}

	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("read config file at %s: %w", filename, err)
	}

	store := &Store{}
	switch {
	case strings.HasSuffix(filename, ".json"):
		err = json.Unmarshal(data, store)
	case strings.HasSuffix(filename, ".yml"):
		fallthrough
	case strings.HasSuffix(filename, ".yaml"):
		err = yaml.Unmarshal(data, store)
	default:
		return nil, errors.New("unknown config file type")
	}
	if err != nil {
		return nil, fmt.Errorf("unmarshal %s: %w", filename, err)
	}

	return store.Parse()
}

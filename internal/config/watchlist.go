package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// watchlistFile is the YAML shape of an on-disk symbol watchlist:
//
//	symbols:
//	  - RELIANCE
//	  - TCS
type watchlistFile struct {
	Symbols []string `yaml:"symbols"`
}

// loadWatchlist reads the tracked symbol list from a YAML file
func loadWatchlist(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var wl watchlistFile
	if err := yaml.Unmarshal(data, &wl); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	if len(wl.Symbols) == 0 {
		return nil, fmt.Errorf("watchlist %s lists no symbols", path)
	}
	return wl.Symbols, nil
}

package main

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"gopkg.in/ini.v1"
)

const passwordEnv = "SUBTUNNEL_PASSWORD"

// endpointOptions are the settings that may come from the command line, the
// --config file or the environment.
type endpointOptions struct {
	Password string
	Listen   string
	Remote   string
	Upstream string
}

// loadConfig fills opts from the named section of the ini file at path. Keys
// whose flag was set on the command line are left alone.
func loadConfig(path, section string, fs *pflag.FlagSet, opts *endpointOptions) error {
	cfg, err := ini.Load(path)
	if err != nil {
		return fmt.Errorf("load config %s: %w", path, err)
	}

	if !cfg.HasSection(section) {
		return nil
	}
	sec := cfg.Section(section)

	fields := []struct {
		key string
		dst *string
	}{
		{"password", &opts.Password},
		{"listen", &opts.Listen},
		{"remote", &opts.Remote},
		{"upstream", &opts.Upstream},
	}
	for _, f := range fields {
		if fs.Changed(f.key) || !sec.HasKey(f.key) {
			continue
		}
		*f.dst = strings.TrimSpace(sec.Key(f.key).String())
	}

	return nil
}

func defaultListen(local bool) string {
	if local {
		return "127.0.0.1:1080"
	}
	return "0.0.0.0:8388"
}

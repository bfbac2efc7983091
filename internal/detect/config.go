// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package detect

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"
	"gopkg.in/yaml.v3"
)

// ConfigFiles are the service configuration file names, in lookup order.
var ConfigFiles = []string{"service.yaml", "service.yml"}

// Default ports per binding protocol.
var defaultPorts = map[string]int{
	"grpc":   50051,
	"netrpc": 1234,
	"http":   8080,
	"https":  8443,
}

// ServiceConfig is the legacy service configuration of an RPC service.
type ServiceConfig struct {
	File     string    `yaml:"-"` // Base name of the file it was read from
	Raw      []byte    `yaml:"-"`
	Name     string    `yaml:"name"`
	Bindings []Binding `yaml:"bindings"`
}

// Binding is one endpoint the service listens on. Legacy files spell it
// as an address URL; migrated files carry network and port.
type Binding struct {
	Name     string `yaml:"name"`
	Protocol string `yaml:"protocol"`
	Address  string `yaml:"address,omitempty"`
	Network  string `yaml:"network,omitempty"`
	Port     int    `yaml:"port,omitempty"`
}

// Legacy reports whether the binding still uses the address form.
func (b Binding) Legacy() bool {
	return b.Address != ""
}

// InferNetwork returns the binding's network, defaulting to tcp.
func (b Binding) InferNetwork() string {
	if b.Network != "" {
		return b.Network
	}
	if u, err := url.Parse(b.Address); err == nil && u.Scheme != "" && u.Host != "" {
		return u.Scheme
	}
	return "tcp"
}

// InferPort returns the binding's port: the explicit port, the port of
// its address, or the protocol default.
func (b Binding) InferPort() int {
	if b.Port > 0 {
		return b.Port
	}
	if p := portOf(b.Address); p > 0 {
		return p
	}
	return defaultPorts[strings.ToLower(b.Protocol)]
}

func portOf(addr string) int {
	if addr == "" {
		return 0
	}
	if u, err := url.Parse(addr); err == nil && u.Host != "" {
		addr = u.Host
	}
	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		return 0
	}
	p, err := strconv.Atoi(port)
	if err != nil {
		return 0
	}
	return p
}

// Port returns the port of the first binding, or 0 without bindings.
func (c *ServiceConfig) Port() int {
	if c == nil || len(c.Bindings) == 0 {
		return 0
	}
	return c.Bindings[0].InferPort()
}

// LoadServiceConfig reads the service configuration of dir. A directory
// without one yields nil and no error.
func LoadServiceConfig(dir string) (*ServiceConfig, error) {
	for _, name := range ConfigFiles {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", name, err)
		}
		var cfg ServiceConfig
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", name, err)
		}
		cfg.File = name
		cfg.Raw = data
		return &cfg, nil
	}
	return nil, nil
}

// ConfigLoader loads the service configuration of a directory.
type ConfigLoader func(dir string) (*ServiceConfig, error)

type configEntry struct {
	cfg *ServiceConfig
	err error
}

// ConfigCache maps project directories to their parsed service
// configuration. Entries are loaded on first access and kept for the
// life of the cache; concurrent first accesses to one directory share a
// single load.
type ConfigCache struct {
	load    ConfigLoader
	entries sync.Map // string -> *configEntry
	flight  singleflight.Group
	loads   atomic.Int64
}

// NewConfigCache returns a cache backed by load, or by LoadServiceConfig
// when load is nil.
func NewConfigCache(load ConfigLoader) *ConfigCache {
	if load == nil {
		load = LoadServiceConfig
	}
	return &ConfigCache{load: load}
}

// Get returns the configuration of dir. Load errors are cached like
// results.
func (c *ConfigCache) Get(dir string) (*ServiceConfig, error) {
	key := filepath.Clean(dir)
	if v, ok := c.entries.Load(key); ok {
		e := v.(*configEntry)
		return e.cfg, e.err
	}
	v, _, _ := c.flight.Do(key, func() (any, error) {
		if v, ok := c.entries.Load(key); ok {
			return v, nil
		}
		cfg, err := c.load(key)
		c.loads.Add(1)
		actual, _ := c.entries.LoadOrStore(key, &configEntry{cfg: cfg, err: err})
		return actual, nil
	})
	e := v.(*configEntry)
	return e.cfg, e.err
}

// Loads returns how many times the backing loader ran.
func (c *ConfigCache) Loads() int64 {
	return c.loads.Load()
}

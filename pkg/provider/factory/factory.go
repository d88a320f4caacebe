// Package factory builds providers from configuration.
package factory

import (
	"fmt"

	"replicafs/pkg/config"
	"replicafs/pkg/crypto"
	"replicafs/pkg/provider"
	"replicafs/pkg/provider/disk"
	"replicafs/pkg/provider/memory"
	"replicafs/pkg/provider/remote"
	"replicafs/pkg/provider/sqlite"
)

// Build creates the provider described by cfg. Providers with Encrypt set are
// wrapped so payloads are sealed with cipher.
func Build(cfg config.ProviderConfig, cipher crypto.Cipher) (provider.Provider, error) {
	p, err := build(cfg)
	if err != nil {
		return nil, err
	}
	if cfg.Encrypt {
		if cipher == nil {
			cipher = crypto.NewXChaCha()
		}
		return provider.Seal(p, cipher), nil
	}
	return p, nil
}

func build(cfg config.ProviderConfig) (provider.Provider, error) {
	switch cfg.Type {
	case config.TypeMemory:
		return memory.New(cfg.Name), nil
	case config.TypeDisk:
		return disk.New(cfg.Name, cfg.Path), nil
	case config.TypeSQLite:
		return sqlite.New(cfg.Name, cfg.Path), nil
	case config.TypeRemote:
		remoteCfg := remote.Config{
			URL:          cfg.URL,
			RetryMax:     cfg.RetryMax,
			RetryWaitMin: cfg.RetryWaitMin,
			RetryWaitMax: cfg.RetryWaitMax,
		}
		if cfg.FallbackPath != "" {
			remoteCfg.Fallback = disk.New(cfg.Name+"-fallback", cfg.FallbackPath)
		}
		return remote.New(cfg.Name, remoteCfg)
	default:
		return nil, fmt.Errorf("%w: unknown provider type %q", provider.ErrConfiguration, cfg.Type)
	}
}

// BuildNode creates the local provider served by a storage node.
func BuildNode(cfg config.NodeConfig) (provider.Provider, error) {
	if cfg.Type == config.TypeRemote {
		return nil, fmt.Errorf("%w: a node cannot serve a remote provider", provider.ErrConfiguration)
	}
	return build(config.ProviderConfig{Name: cfg.Name, Type: cfg.Type, Path: cfg.Path})
}

package backend

import (
	"snapkeep/internal/config"
	"snapkeep/internal/sk"
)

// NewFromConfig picks the backend once at startup: remote when a host is
// configured, local otherwise.
func NewFromConfig(cfg config.RemoteConfig) (sk.Backend, error) {
	if !cfg.Enabled() {
		return NewLocal(), nil
	}
	r, err := DialRemote(RemoteOptions{
		Host:           cfg.Host,
		User:           cfg.User,
		Port:           cfg.Port,
		IdentityFile:   cfg.IdentityFile,
		KnownHostsFile: cfg.KnownHostsFile,
	})
	if err != nil {
		return nil, err
	}
	return r, nil
}

package orchestrator

import (
	"fmt"

	"github.com/FireNirva/quants-fleet/pkg/remote"
	"github.com/FireNirva/quants-fleet/pkg/types"
)

// HostResolver builds a remote.HostResolver over env's host list. It lives
// here rather than in pkg/inventory or pkg/remote itself: pkg/remote already
// imports pkg/inventory for RunPlaybook, so a resolver built from
// inventory.Host would create an import cycle. pkg/orchestrator sits above
// both and can freely depend on remote.Target and types.Host.
func HostResolver(env *types.Environment) remote.HostResolver {
	byName := make(map[string]*types.Host, len(env.Hosts))
	for _, h := range env.Hosts {
		byName[h.Name] = h
	}

	return func(name string) (remote.Target, error) {
		h, ok := byName[name]
		if !ok {
			return remote.Target{}, fmt.Errorf("resolve host %q: not declared in environment %q", name, env.Name)
		}
		return remote.Target{
			Host:    h.Name,
			Address: h.Address,
			User:    h.SSHUser,
			KeyPath: h.SSHKeyPath,
			Port:    h.SSHPort,
		}, nil
	}
}

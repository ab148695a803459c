package main

import (
	"os"

	"github.com/aretw0/canopy"
	"github.com/aretw0/canopy/internal/adapters/file"
	"github.com/aretw0/canopy/internal/config"
	"github.com/aretw0/canopy/pkg/adapters/memory"
	redisAdapter "github.com/aretw0/canopy/pkg/adapters/redis"
	"github.com/aretw0/canopy/pkg/session"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// openSessions builds a session manager over the configured backend.
// The returned function releases backend connections.
func openSessions(c config.Config) (*session.Manager, func() error) {
	opts := []session.Option{
		session.WithLogger(logger),
		session.WithLockTTL(c.Session.LockTTL),
	}

	switch c.Session.Backend {
	case config.BackendRedis:
		rc := c.Session.Redis
		store := redisAdapter.New(rc.Addr, rc.Password, rc.DB,
			redisAdapter.WithPrefix(rc.Prefix),
			redisAdapter.WithTTL(rc.TTL),
		)
		opts = append(opts, session.WithLocker(redisAdapter.NewLocker(store.Client(), rc.Prefix)))
		return session.NewManager(store, opts...), store.Close
	case config.BackendMemory:
		return session.NewManager(memory.NewStore(), opts...), func() error { return nil }
	default:
		return session.NewManager(file.New(c.Session.Dir), opts...), func() error { return nil }
	}
}

// openTree loads a data file. When childrenDir is set, lazy nodes resolve from
// <childrenDir>/<value>.yaml files.
func openTree(path, childrenDir string, opts ...canopy.Option) (*canopy.Tree, error) {
	all := []canopy.Option{canopy.WithLogger(logger), canopy.WithName(path)}
	if childrenDir != "" {
		all = append(all, canopy.WithLoader(file.NewLoader(childrenDir)))
	}
	return canopy.Open(path, append(all, opts...)...)
}

// outputOptions disables colors when stdout is not a terminal.
func outputOptions(f *os.File) []termenv.OutputOption {
	if !term.IsTerminal(int(f.Fd())) {
		return []termenv.OutputOption{termenv.WithProfile(termenv.Ascii)}
	}
	return nil
}

package main

import (
	"caseline/internal/capability"
	"caseline/internal/config"
	"caseline/internal/pipeline"
	"caseline/internal/plan"
	"caseline/internal/screening"
	"caseline/internal/store"
)

// openStore opens the SQLite case database from config.
func openStore(c config.Config) (*store.SqlStore, error) {
	path := c.DBPath
	if path == "" {
		path = store.DefaultDBPath
	}
	return store.Open(path)
}

// buildRegistry wires the deterministic capability set: the bundled
// screening-list checkers for sanctions and profile-driven stubs for the
// rest.
func buildRegistry(c config.Config) *capability.Registry {
	reg := capability.NewRegistry()
	reg.Register(screening.New(plan.CapIndividualSanctions, screening.DefaultEntries, c.ScreeningMatchThreshold))
	reg.Register(screening.New(plan.CapEntitySanctions, screening.DefaultEntries, c.ScreeningMatchThreshold))
	capability.RegisterStubs(reg)
	return reg
}

// buildRunner assembles the pipeline runner over an open store.
func buildRunner(st store.Store, c config.Config) *pipeline.Runner {
	return pipeline.New(st, buildRegistry(c), c)
}

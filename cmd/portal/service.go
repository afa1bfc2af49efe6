package main

import (
	"github.com/UnendingLoop/PolypSegmentation/internal/session"
	"github.com/UnendingLoop/PolypSegmentation/internal/transport"
)

// sessionResolver adapts the registry to what the handlers expect
func sessionResolver(registry *session.Registry) transport.SessionResolver {
	return func(id string) (string, transport.Workflow) {
		return registry.Get(id)
	}
}

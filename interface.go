package main

import (
	"context"
	"net/http"
)

// Service is one deployable half of the system, served by RunServer.
type Service interface {
	ConfigureFromEnv(ctx context.Context) error
	Status(ctx context.Context) ([]byte, error)
	RegisterHandlers(mux *http.ServeMux)
}

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// corsMiddleware handles CORS origin check
func corsMiddleware(allowedOrigins string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			for _, allowedOrigin := range strings.Split(allowedOrigins, ",") {
				if allowedOrigin != "" && r.Header.Get("Origin") == allowedOrigin {
					w.Header().Set("Access-Control-Allow-Origin", allowedOrigin)
					w.Header().Set("Access-Control-Allow-Methods", "GET,POST")
					// Credentials are cookies, authorization headers, or TLS client certificates
					w.Header().Set("Access-Control-Allow-Credentials", "true")
					w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
				}
			}
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// logMiddleware writes one access log line per request, tagged with a request ID
func logMiddleware(serverType string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-Id")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set("X-Request-Id", requestID)

		started := time.Now()
		recorder := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)

		ip := r.Header.Get("X-Real-Ip")
		if ip == "" {
			var err error
			ip, _, err = net.SplitHostPort(r.RemoteAddr)
			if err != nil {
				ip = r.RemoteAddr
			}
		}

		log.Info().
			Str("server", serverType).
			Str("requestID", requestID).
			Str("ip", ip).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", recorder.status).
			Dur("duration", time.Since(started)).
			Msg("request")
	})
}

// panicMiddleware handles panic errors to prevent server shutdown
func panicMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				log.Error().Interface("panic", err).Str("path", r.URL.Path).Msg("recovered panic error")
				http.Error(w, "Internal server error", http.StatusInternalServerError)
			}
		}()

		next.ServeHTTP(w, r)
	})
}

// PingHandler responds with the status of the server itself
func PingHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, PingResponse{Status: "ok"})
}

func VersionHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, VersionResponse{
		Version:         SignedMintVersion(),
		MessageEncoding: MintMessageVersion,
	})
}

func statusHandler(service Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		statusJSON, err := service.Status(r.Context())
		if err != nil {
			log.Error().Err(err).Msg("Failed to build status")
			writeError(w, http.StatusInternalServerError, "Internal server error", "")
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(statusJSON)
	}
}

func allowMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		w.Header().Set("Allow", method)
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed", "")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, message, reason string) {
	writeJSON(w, status, ErrorResponse{Error: message, Reason: reason})
}

// NewService returns the unconfigured service for serverType.
func NewService(serverType string) (Service, error) {
	switch serverType {
	case "signer":
		return &ValidatorSigner{}, nil
	case "minter":
		return &MinterService{}, nil
	default:
		return nil, fmt.Errorf("unknown server type: %s", serverType)
	}
}

// NewHandler builds the routed and middleware-wrapped handler for a configured service.
func NewHandler(serverType string, service Service, allowedOrigins string) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/ping", PingHandler)
	mux.HandleFunc("/version", VersionHandler)
	mux.Handle("/metrics", promhttp.Handler())
	service.RegisterHandlers(mux)

	// Set middleware, from bottom to top
	commonHandler := corsMiddleware(allowedOrigins, mux)
	commonHandler = logMiddleware(serverType, commonHandler)
	commonHandler = panicMiddleware(commonHandler)

	return commonHandler
}

// RunServer configures the service from the environment and serves it until ctx is cancelled.
func RunServer(ctx context.Context, serverType, serverHost string, serverPort int) error {
	service, err := NewService(serverType)
	if err != nil {
		return err
	}

	if configurationErr := service.ConfigureFromEnv(ctx); configurationErr != nil {
		return errors.Wrapf(configurationErr, "failed to configure %s", serverType)
	}

	allowedOrigins := os.Getenv("MINT_CORS_ALLOWED_ORIGINS")
	if allowedOrigins == "" {
		log.Warn().Msg("MINT_CORS_ALLOWED_ORIGINS is not set, cross-origin requests will be refused")
	}

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", serverHost, serverPort),
		Handler:      NewHandler(serverType, service, allowedOrigins),
		ReadTimeout:  40 * time.Second,
		WriteTimeout: 40 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info().Str("server", serverType).Str("addr", server.Addr).Msg("Starting server")
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "failed to start server listener")
		}
		return nil
	case <-ctx.Done():
		log.Info().Str("server", serverType).Msg("Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	}
}

//go:build js && wasm

package main

import (
	"context"

	"github.com/syumai/workers"

	"github.com/dvcrn/authclient/internal/apiclient"
	"github.com/dvcrn/authclient/internal/credentials"
	"github.com/dvcrn/authclient/internal/env"
	serverhttp "github.com/dvcrn/authclient/internal/http"
	"github.com/dvcrn/authclient/internal/logger"
	"github.com/dvcrn/authclient/internal/server"
)

var srv *server.Server

func init() {
	// Workers KV holds both halves of the session.
	var backend credentials.Backend
	kv, err := credentials.NewKVBackend(env.GetOrDefault("AUTHCLIENT_KV_BINDING", "AUTHCLIENT_KV"))
	if err != nil {
		logger.Get().Error().Err(err).Msg("Failed to open KV namespace, sessions will not persist")
	} else {
		backend = kv
	}

	store := credentials.NewStore(backend, backend)
	if err := store.Restore(context.Background()); err != nil {
		logger.Get().Warn().Err(err).Msg("Failed to restore credentials")
	}

	client := apiclient.New(store,
		apiclient.WithBaseURL(env.GetOrDefault("AUTHCLIENT_BASE_URL", apiclient.DefaultBaseURL)),
		apiclient.WithAPIPrefix(env.GetOrDefault("AUTHCLIENT_API_PREFIX", apiclient.DefaultAPIPrefix)),
		apiclient.WithHTTPClient(serverhttp.NewHTTPClient(0)),
	)
	srv = server.NewServer(client, server.WithAdminAPIKey(env.GetOrDefault("ADMIN_API_KEY", "")))
}

func main() {
	// Serve using workers - it handles all the HTTP server setup
	workers.Serve(srv)
}

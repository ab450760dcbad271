package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dvcrn/authclient/internal/apiclient"
	"github.com/dvcrn/authclient/internal/server"
)

type loginCommand struct {
	*app     `no-flag:"true"`
	User     string `short:"u" long:"user" description:"email address or username" required:"true"`
	Password string `short:"p" long:"password" env:"AUTHCLIENT_PASSWORD" description:"password"`
}

func (c *loginCommand) Execute(_ []string) error {
	client, _, err := c.client(nil)
	if err != nil {
		return err
	}
	result, err := client.Login(c.ctx, c.User, c.Password)
	if err != nil {
		return err
	}
	if !result.Success {
		return errors.New(result.Status)
	}
	fmt.Fprintln(c.out, result.Status)
	return nil
}

type logoutCommand struct {
	*app `no-flag:"true"`
}

func (c *logoutCommand) Execute(_ []string) error {
	client, _, err := c.client(nil)
	if err != nil {
		return err
	}
	if err := client.Logout(c.ctx); err != nil {
		return fmt.Errorf("logged out locally, remote logout failed: %w", err)
	}
	fmt.Fprintln(c.out, "Logged out")
	return nil
}

type sessionStatus struct {
	Authenticated   bool   `json:"authenticated"`
	HasRefreshToken bool   `json:"has_refresh_token"`
	ExpiryDate      string `json:"expiry_date,omitempty"`
	SessionBackend  string `json:"session_backend"`
	DurableBackend  string `json:"durable_backend"`
}

type statusCommand struct {
	*app `no-flag:"true"`
}

func (c *statusCommand) Execute(_ []string) error {
	client, _, err := c.client(nil)
	if err != nil {
		return err
	}
	store := client.Store()
	snap := store.Snapshot()
	status := sessionStatus{
		Authenticated:   store.IsAuthenticated(),
		HasRefreshToken: snap.RefreshToken != "",
	}
	status.SessionBackend, status.DurableBackend = store.Backends()
	if !snap.ExpiresAt.IsZero() {
		status.ExpiryDate = snap.ExpiresAt.UTC().Format(time.RFC3339)
	}

	enc := json.NewEncoder(c.out)
	enc.SetIndent("", "  ")
	return enc.Encode(status)
}

type requestCommand struct {
	*app    `no-flag:"true"`
	Method  string   `short:"X" long:"method" default:"GET" description:"HTTP method"`
	Data    string   `short:"d" long:"data" description:"JSON request body"`
	Query   []string `short:"q" long:"query" description:"query parameter as key=value, repeatable"`
	Headers []string `short:"H" long:"header" description:"header as 'Key: Value', repeatable"`
	Args    struct {
		Path string `positional-arg-name:"path" description:"path below the API prefix, e.g. /boards"`
	} `positional-args:"yes" required:"yes"`
}

func (c *requestCommand) options() ([]apiclient.RequestOption, error) {
	opts := []apiclient.RequestOption{apiclient.WithMethod(c.Method)}
	for _, q := range c.Query {
		key, value, ok := strings.Cut(q, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid query %q, want key=value", q)
		}
		opts = append(opts, apiclient.WithQuery(key, value))
	}
	for _, h := range c.Headers {
		key, value, ok := strings.Cut(h, ":")
		if !ok || strings.TrimSpace(key) == "" {
			return nil, fmt.Errorf("invalid header %q, want 'Key: Value'", h)
		}
		opts = append(opts, apiclient.WithHeader(strings.TrimSpace(key), strings.TrimSpace(value)))
	}
	if c.Data != "" {
		if !json.Valid([]byte(c.Data)) {
			return nil, errors.New("--data must be valid JSON")
		}
		opts = append(opts, apiclient.WithBody(json.RawMessage(c.Data)))
	}
	return opts, nil
}

func (c *requestCommand) Execute(_ []string) error {
	opts, err := c.options()
	if err != nil {
		return err
	}
	client, _, err := c.client(nil)
	if err != nil {
		return err
	}
	resp, err := client.Execute(c.ctx, apiclient.NewRequest(c.Args.Path, opts...))
	if err != nil {
		return err
	}
	if _, err := c.out.Write(resp.Body); err != nil {
		return err
	}
	if len(resp.Body) > 0 && resp.Body[len(resp.Body)-1] != '\n' {
		fmt.Fprintln(c.out)
	}
	return nil
}

type serveCommand struct {
	*app `no-flag:"true"`
	Port string `long:"port" description:"listen port (default $PORT)"`
}

func (c *serveCommand) handler() (*server.Server, string, error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	client, cfg, err := c.client(reg)
	if err != nil {
		return nil, "", err
	}
	port := cfg.Port
	if c.Port != "" {
		port = c.Port
	}
	srv := server.NewServer(client,
		server.WithAdminAPIKey(cfg.AdminAPIKey),
		server.WithMetricsHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})),
	)
	return srv, ":" + port, nil
}

func (c *serveCommand) Execute(_ []string) error {
	srv, addr, err := c.handler()
	if err != nil {
		return err
	}
	return srv.Start(c.ctx, addr)
}

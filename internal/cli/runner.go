package cli

import (
	"context"
	"io"

	"github.com/jessevdk/go-flags"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/dvcrn/authclient/internal/apiclient"
	"github.com/dvcrn/authclient/internal/config"
)

type app struct {
	ctx  context.Context
	out  io.Writer
	opts Options
}

func (a *app) config() config.Config {
	return a.opts.apply(config.Load())
}

func (a *app) client(reg prometheus.Registerer) (*apiclient.Client, config.Config, error) {
	cfg := a.config()
	store, err := cfg.NewStore(a.ctx)
	if err != nil {
		return nil, cfg, err
	}
	return cfg.NewClient(store, reg), cfg, nil
}

// Run parses args and executes the selected command, writing results to out.
func Run(ctx context.Context, args []string, out io.Writer) error {
	a := &app{ctx: ctx, out: out}
	parser := flags.NewParser(&a.opts, flags.HelpFlag|flags.PassDoubleDash)
	parser.Name = "authclient"

	commands := []struct {
		name, short, long string
		cmd               interface{}
	}{
		{"login", "Log in", "Logs in with an email address or username and stores the session.", &loginCommand{app: a}},
		{"logout", "Log out", "Revokes the refresh token and clears the stored session.", &logoutCommand{app: a}},
		{"status", "Show session status", "Prints whether a valid session is stored.", &statusCommand{app: a}},
		{"request", "Call the API", "Sends an authenticated request and prints the response body.", &requestCommand{app: a}},
		{"serve", "Run the local proxy", "Serves /api/* through the stored session, with admin endpoints under /admin.", &serveCommand{app: a}},
	}
	for _, c := range commands {
		if _, err := parser.AddCommand(c.name, c.short, c.long, c.cmd); err != nil {
			return err
		}
	}

	_, err := parser.ParseArgs(args)
	return err
}

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/docopt/docopt-go"

	"github.com/relaycore/channel-console/internal/mirth"
	"github.com/relaycore/channel-console/internal/schema"
	"github.com/relaycore/channel-console/internal/view"
	"github.com/relaycore/channel-console/internal/workflow"
)

const ChannelCtlVersion = "0.1.0"

var Out *log.Logger
var Err *log.Logger

func init() {
	Out = log.New(os.Stdout, "", 0)
	Err = log.New(os.Stderr, "", log.Ldate|log.Ltime|log.Lshortfile)
}

func main() {
	usage := `Channel control.

Engine settings default to CONSOLE_ENGINE_URL, CONSOLE_ENGINE_USERNAME and
CONSOLE_ENGINE_PASSWORD.

Usage:
    channelctl list [options]
    channelctl show [options] <channel_id>
    channelctl validate <file>
    channelctl save [options] <file>
    channelctl (deploy|undeploy|start|stop|pause|resume) [options] <channel_id>
    channelctl events [options] [--name=<name>]
    channelctl ports [options]

Options:
    -h --help                Show this screen.
    --version                Show version.
    --engine_url=<url>       Engine API base url.
    --username=<username>    Engine username.
    --password=<password>    Engine password.
    --insecure               Skip TLS verification.
    --timeout=<timeout>      Per-request timeout [default: 30s].
    --name=<name>            Only events whose name contains this text.`

	opts, err := docopt.ParseArgs(usage, os.Args[1:], ChannelCtlVersion)
	if err != nil {
		panic(err)
	}

	if validate_, _ := opts.Bool("validate"); validate_ {
		validateFile(opts)
		return
	}

	client := newClient(opts)
	ctx := context.Background()
	if list_, _ := opts.Bool("list"); list_ {
		list(ctx, client)
	} else if show_, _ := opts.Bool("show"); show_ {
		show(ctx, client, opts)
	} else if save_, _ := opts.Bool("save"); save_ {
		save(ctx, client, opts)
	} else if action, ok := lifecycleAction(opts); ok {
		lifecycle(ctx, client, opts, action)
	} else if events_, _ := opts.Bool("events"); events_ {
		events(ctx, client, opts)
	} else if ports_, _ := opts.Bool("ports"); ports_ {
		ports(ctx, client)
	}
}

func optOrEnv(opts docopt.Opts, name, env string) string {
	if v, err := opts.String(name); err == nil && v != "" {
		return v
	}
	return os.Getenv(env)
}

func newClient(opts docopt.Opts) *mirth.Client {
	url := optOrEnv(opts, "--engine_url", "CONSOLE_ENGINE_URL")
	if url == "" {
		Err.Fatal("--engine_url or CONSOLE_ENGINE_URL is required")
	}
	timeoutStr, _ := opts.String("--timeout")
	timeout, err := time.ParseDuration(timeoutStr)
	if err != nil {
		Err.Fatalf("--timeout: %s", err)
	}
	insecure, _ := opts.Bool("--insecure")
	return mirth.New(url, mirth.Options{
		Username:    optOrEnv(opts, "--username", "CONSOLE_ENGINE_USERNAME"),
		Password:    optOrEnv(opts, "--password", "CONSOLE_ENGINE_PASSWORD"),
		Timeout:     timeout,
		InsecureTLS: insecure,
	})
}

func newValidator() *schema.Validator {
	v, err := schema.NewValidator(nil)
	if err != nil {
		Err.Fatal(err)
	}
	return v
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func list(ctx context.Context, client *mirth.Client) {
	runner := workflow.NewRunner(client, workflow.WithLogger(quietLogger()))
	channels, err := runner.ListChannels(ctx)
	if err != nil {
		Err.Fatal(err)
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tSTATE\tREV\tRECEIVED\tSENT\tERRORS")
	for _, c := range channels {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\t%d\n",
			c.ID, c.Name, c.State, c.Revision, c.Statistics.Received, c.Statistics.Sent, c.Statistics.Error)
	}
	w.Flush()
}

func show(ctx context.Context, client *mirth.Client, opts docopt.Opts) {
	id, _ := opts.String("<channel_id>")
	c, err := client.GetChannel(ctx, id)
	if err != nil {
		Err.Fatal(err)
	}
	b, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		Err.Fatal(err)
	}
	Out.Printf("%s", b)
}

func readChannelFile(opts docopt.Opts) []byte {
	path, _ := opts.String("<file>")
	b, err := os.ReadFile(path)
	if err != nil {
		Err.Fatal(err)
	}
	return b
}

func validateFile(opts docopt.Opts) {
	c, err := mirth.DecodeChannel(readChannelFile(opts))
	if err != nil || c == nil {
		Err.Fatalf("not a channel document: %v", err)
	}
	if err := newValidator().ValidateChannel(c); err != nil {
		Err.Fatal(err)
	}
	Out.Printf("%s: ok", c.Name)
}

// save persists a channel document file and prints the engine's copy.
func save(ctx context.Context, client *mirth.Client, opts docopt.Opts) {
	c, err := mirth.DecodeChannel(readChannelFile(opts))
	if err != nil || c == nil {
		Err.Fatalf("not a channel document: %v", err)
	}
	runner := workflow.NewRunner(client,
		workflow.WithValidator(newValidator()),
		workflow.WithLogger(quietLogger()),
	)
	saved, err := runner.PersistChannel(ctx, c)
	if err != nil {
		Err.Fatal(err)
	}
	Out.Printf("saved %s (%s) at revision %d", saved.Name, saved.ID, saved.Revision)
}

// lifecycleAction returns the lifecycle command selected on the command line.
func lifecycleAction(opts docopt.Opts) (mirth.Action, bool) {
	for _, name := range []string{"deploy", "undeploy", "start", "stop", "pause", "resume"} {
		if set, _ := opts.Bool(name); set {
			return mirth.ParseAction(name)
		}
	}
	return "", false
}

func lifecycle(ctx context.Context, client *mirth.Client, opts docopt.Opts, action mirth.Action) {
	id, _ := opts.String("<channel_id>")
	if err := client.Lifecycle(ctx, id, action); err != nil {
		Err.Fatal(err)
	}
	Out.Printf("%s %s", action, id)
}

func events(ctx context.Context, client *mirth.Client, opts docopt.Opts) {
	name, _ := opts.String("--name")
	evs, err := client.Events(ctx, name)
	if err != nil {
		Err.Fatal(err)
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tLEVEL\tNAME\tOUTCOME\tCHANNEL")
	for _, row := range view.EventRows(evs) {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			time.UnixMilli(row.Time).Format(time.RFC3339), row.Level, row.Name, row.Outcome, row.ChannelName)
	}
	w.Flush()
}

func ports(ctx context.Context, client *mirth.Client) {
	ps, err := client.PortsInUse(ctx)
	if err != nil {
		Err.Fatal(err)
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "PORT\tCHANNEL\tID")
	for _, p := range ps {
		fmt.Fprintf(w, "%d\t%s\t%s\n", p.Port, p.Name, p.ID)
	}
	w.Flush()
}

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/outofforest/logger"
	"github.com/outofforest/meshchat"
	"github.com/outofforest/meshchat/transport"
	"github.com/outofforest/meshchat/wire"
)

const usage = "Usage: meshchat [flags] <node-id> <nickname>"

func main() {
	log := logger.New(logger.DefaultConfig)
	ctx, cancel := signal.NotifyContext(logger.WithLogger(context.Background(), log), os.Interrupt, syscall.SIGTERM)

	err := run(ctx, os.Args[1:], os.Stdin, os.Stdout)
	cancel()

	switch {
	case err == nil, errors.Is(err, context.Canceled):
	case errors.Is(err, pflag.ErrHelp):
		fmt.Fprintln(os.Stderr, usage)
	default:
		log.Error("Node failed", zap.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, in io.Reader, out io.Writer) error {
	config, err := parseArgs(args)
	if err != nil {
		return err
	}

	member, _ := config.Roster.Lookup(config.NodeID)
	udp, err := transport.ListenUDP(member.Port)
	if err != nil {
		return err
	}

	node, events, err := meshchat.New(config, udp)
	if err != nil {
		_ = udp.Close()
		return err
	}

	fmt.Fprintf(out, "Node %s (%s) listening on port %d\n", config.NodeID, config.Nickname, member.Port)
	fmt.Fprintln(out, `Type \help for available commands`)

	return newConsole(node, in, out).Run(ctx, events)
}

// parseArgs builds node configuration. Configuration is fully validated here, so invalid
// arguments are reported before any socket is opened.
func parseArgs(args []string) (meshchat.Config, error) {
	flags := pflag.NewFlagSet("meshchat", pflag.ContinueOnError)
	flags.SetOutput(io.Discard)

	maxOutgoing := flags.Int("max-outgoing", meshchat.DefaultMaxOutgoing,
		"maximum number of connections held in each direction")
	bootstrapInterval := flags.Duration("bootstrap-interval", meshchat.DefaultBootstrapInterval,
		"how often isolated node dials the roster")
	topUpInterval := flags.Duration("topup-interval", meshchat.DefaultTopUpInterval,
		"how often node with too few peers dials the roster")

	if err := flags.Parse(args); err != nil {
		return meshchat.Config{}, errors.WithStack(err)
	}
	if *maxOutgoing < 1 {
		return meshchat.Config{}, errors.Errorf("max-outgoing must be at least 1, got %d", *maxOutgoing)
	}
	if flags.NArg() != 2 {
		return meshchat.Config{}, errors.Errorf("expected 2 arguments, got %d; %s", flags.NArg(), usage)
	}

	id, err := strconv.ParseUint(flags.Arg(0), 10, 8)
	if err != nil {
		return meshchat.Config{}, errors.Wrapf(err, "invalid node id %q", flags.Arg(0))
	}

	config := meshchat.Config{
		NodeID:            wire.NodeID(id),
		Nickname:          flags.Arg(1),
		Roster:            meshchat.DefaultRoster(),
		MaxOutgoing:       *maxOutgoing,
		BootstrapInterval: *bootstrapInterval,
		TopUpInterval:     *topUpInterval,
	}
	if err := config.Validate(); err != nil {
		return meshchat.Config{}, err
	}
	return config, nil
}

package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/parleychat/parley/discover"
)

var (
	discoverProbeTimeout time.Duration

	discoverCmd = &cobra.Command{
		Use:   "discover HOST[:PORT]...",
		Short: "Probe hosts for a running parley server",
		Long: `Probe hosts for a running parley server.

Each host is expanded to a base URL (http:// and port 8080 unless given) and
checked for the health and login endpoints. Exits nonzero when no server is
found, so it can gate scripts.`,
		Args: cobra.MinimumNArgs(1),
		RunE: runDiscover,
	}
)

func init() {
	discoverCmd.Flags().DurationVar(&discoverProbeTimeout, "timeout", 2*time.Second, "probe timeout per host")
}

func runDiscover(cmd *cobra.Command, args []string) error {
	candidates := discover.ExpandCandidates(args)
	if len(candidates) == 0 {
		return errors.New("no usable hosts given")
	}

	ctx, cancel := context.WithTimeout(context.Background(), discoverProbeTimeout+time.Second)
	defer cancel()

	results := discover.NewProber(discoverProbeTimeout).Probe(ctx, candidates)

	found := 0
	for _, r := range results {
		switch {
		case r.Err != nil:
			fmt.Printf("%-30s unreachable: %v\n", r.BaseURL, r.Err)
		case r.Found():
			found++
			fmt.Printf("%-30s parley server, health in %s\n", r.BaseURL, r.Latency.Round(time.Millisecond))
		case r.Healthy:
			fmt.Printf("%-30s healthy but no login endpoint\n", r.BaseURL)
		default:
			fmt.Printf("%-30s responds but does not look like parley\n", r.BaseURL)
		}
	}

	if found == 0 {
		return errors.New("no parley server found")
	}
	return nil
}

package claim

import (
	"context"
	"fmt"
	"github.com/ValentinKolb/dSync/lib/world"
	"github.com/ValentinKolb/dSync/rpc/common"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"os"
	"strconv"
	"sync"
	"text/tabwriter"
	"time"
)

var (
	addCmd = &cobra.Command{
		Use:   "add [location]",
		Short: "Claims a location",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			location, err := parseLocation(args[0])
			if err != nil {
				return err
			}
			return confirm(func() error { return session.AddClaim(location) }, "claimed successfully")
		},
	}
	removeCmd = &cobra.Command{
		Use:   "remove [location]",
		Short: "Removes an own claim",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			location, err := parseLocation(args[0])
			if err != nil {
				return err
			}
			return confirm(func() error { return session.RemoveClaim(location) }, "removed successfully")
		},
	}
	listCmd = &cobra.Command{
		Use:   "list",
		Short: "Lists all claims as seen by this user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := snapshot()
			if err != nil {
				return err
			}
			printEntries(entries)
			return nil
		},
	}
	homeCmd = &cobra.Command{
		Use:   "home [owner]",
		Short: "Prints the claim of an owner with the lowest location",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := snapshot()
			if err != nil {
				return err
			}
			var home *common.ClaimEntry
			for i, e := range entries {
				if e.Owner == args[0] && (home == nil || e.Location < home.Location) {
					home = &entries[i]
				}
			}
			if home == nil {
				return fmt.Errorf("%s has no claim", args[0])
			}
			printEntries([]common.ClaimEntry{*home})
			return nil
		},
	}
	watchCmd = &cobra.Command{
		Use:   "watch",
		Short: "Prints claim changes until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			session.OnMessage(func(msg common.Message) {
				if msg.MsgType != common.MsgTClaim {
					return
				}
				c := msg.Claim
				switch c.StepMode {
				case common.ClaimAdd:
					fmt.Printf("+ %d %s (score %d)\n", c.Location, c.Owner, c.RelationshipScore)
				case common.ClaimRemove:
					fmt.Printf("- %d\n", c.Location)
				default:
					fmt.Printf("? %d %s\n", c.Location, c.StepMode)
				}
			})
			if err := session.MarkReady(); err != nil {
				return err
			}
			session.WaitForInterrupt()
			fmt.Printf("%d foreign claims in view\n", session.Replica().Len())
			return nil
		},
	}
)

func parseLocation(s string) (int, error) {
	location, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("location must be a number: %w", err)
	}
	return location, nil
}

func snapshot() ([]common.ClaimEntry, error) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(max(1, viper.GetInt("timeout")))*time.Second)
	defer cancel()
	return session.Snapshot(ctx)
}

// confirm runs request and waits until the server handled it. Success is
// silent on the wire, so the request counts as refused if a notice arrived.
func confirm(request func() error, success string) error {
	var mu sync.Mutex
	var refusal string
	session.OnMessage(func(msg common.Message) {
		if msg.MsgType == common.MsgTIllegal || msg.MsgType == common.MsgTError {
			mu.Lock()
			refusal = msg.Err
			mu.Unlock()
		}
	})

	if err := request(); err != nil {
		return err
	}
	if _, err := snapshot(); err != nil {
		return err
	}

	mu.Lock()
	defer mu.Unlock()
	if refusal != "" {
		return fmt.Errorf("refused: %s", refusal)
	}
	fmt.Println(success)
	return nil
}

func printEntries(entries []common.ClaimEntry) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "LOCATION\tOWNER\tSCORE\tFACTION")
	resolver := world.ScoreFactionResolver{Self: session.Username()}
	for _, e := range entries {
		faction := "own"
		if f, ok := resolver.ResolveFaction(e.Owner, e.RelationshipScore); ok {
			faction = f.String()
		}
		_, _ = fmt.Fprintf(w, "%d\t%s\t%d\t%s\n", e.Location, e.Owner, e.RelationshipScore, faction)
	}
	_ = w.Flush()
}

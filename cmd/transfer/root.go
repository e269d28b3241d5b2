package transfer

import (
	"fmt"
	"github.com/ValentinKolb/dSync/cmd/util"
	"github.com/ValentinKolb/dSync/lib/transfer"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"strconv"
)

var (
	// TransferCommands represents the transfer command group
	TransferCommands = &cobra.Command{
		Use:   "transfer",
		Short: "Send units to other players or receive them",
	}

	// sendCmd represents the send command
	sendCmd = &cobra.Command{
		Use:   "send [origin] [destination] [unit]",
		Short: "Send a unit from an own claim to the claim of another player",
		Long: "Send a unit from an own claim to the claim of another player. " +
			"The command waits until the other player accepted or rejected the unit.",
		Args: cobra.ExactArgs(3),
		RunE: runSend,
	}

	// listenCmd represents the listen command
	listenCmd = &cobra.Command{
		Use:   "listen",
		Short: "Receive units from other players until interrupted",
		Args:  cobra.NoArgs,
		RunE:  runListen,
	}
)

func init() {
	// Initialize viper
	cobra.OnInitialize(util.InitConfig)

	// Add subcommands to transfer command
	TransferCommands.AddCommand(sendCmd)
	TransferCommands.AddCommand(listenCmd)

	// Add common RPC flags to the transfer command
	util.SetupRPCClientFlags(TransferCommands)

	// Add flags specific to listen
	listenCmd.Flags().String("auto", string(util.AnswerAsk), util.WrapString("How offered units are answered (accept, reject, ask)"))
	listenCmd.Flags().String("save", "", util.WrapString("File the received units are checkpointed to"))
}

func runSend(cmd *cobra.Command, args []string) error {
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}

	origin, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("origin must be a number: %w", err)
	}
	destination, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("destination must be a number: %w", err)
	}

	session, err := util.NewCLISession(util.AnswerReject, "")
	if err != nil {
		return err
	}
	defer session.Close()

	settled := make(chan transfer.Handshake, 1)
	session.Transfers().OnSettled(func(h transfer.Handshake) {
		select {
		case settled <- h:
		default:
		}
	})

	unit := session.World.SpawnUnit(args[2], origin)
	id, err := session.SendTransfer(unit, origin, destination)
	if err != nil {
		return err
	}
	fmt.Printf("sent %s as transfer %s\n", args[2], id)

	select {
	case h := <-settled:
		fmt.Printf("transfer %s\n", h.Outcome)
		if h.Outcome == transfer.OutcomeRejected {
			fmt.Printf("%d unit(s) back at %d\n", len(session.World.Units()), origin)
		}
	case <-session.Done():
		return fmt.Errorf("connection lost before the transfer settled")
	}
	return nil
}

func runListen(cmd *cobra.Command, _ []string) error {
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}

	policy, err := util.ParseAnswerPolicy(viper.GetString("auto"))
	if err != nil {
		return err
	}

	session, err := util.NewCLISession(policy, viper.GetString("save"))
	if err != nil {
		return err
	}
	defer session.Close()

	session.Transfers().OnSettled(func(h transfer.Handshake) {
		if h.Role == transfer.RoleDestination {
			fmt.Printf("transfer %s from %d %s\n", h.ID, h.OriginLocation, h.Outcome)
		}
	})

	if err := session.MarkReady(); err != nil {
		return err
	}
	fmt.Printf("listening as %s, press Ctrl+C to stop\n", session.Username())
	session.WaitForInterrupt()

	for _, u := range session.World.Units() {
		fmt.Printf("%s at %d\n", u.Name, u.Location)
	}
	return nil
}

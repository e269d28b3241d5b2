package claim

import (
	"github.com/ValentinKolb/dSync/cmd/util"
	"github.com/spf13/cobra"
)

var (
	session *util.CLISession

	// ClaimCommands represents the claim command group
	ClaimCommands = &cobra.Command{
		Use:                "claim",
		Short:              "Perform claim operations",
		PersistentPreRunE:  setupClaimClient,
		PersistentPostRunE: closeClaimClient,
	}
)

func init() {
	// Initialize viper
	cobra.OnInitialize(util.InitConfig)

	// Add common RPC flags to the claim command
	util.SetupRPCClientFlags(ClaimCommands)

	// Add subcommands
	ClaimCommands.AddCommand(addCmd)
	ClaimCommands.AddCommand(removeCmd)
	ClaimCommands.AddCommand(listCmd)
	ClaimCommands.AddCommand(homeCmd)
	ClaimCommands.AddCommand(watchCmd)
}

// setupClaimClient joins the server
func setupClaimClient(cmd *cobra.Command, _ []string) error {
	// Bind command flags to viper
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}

	var err error
	session, err = util.NewCLISession(util.AnswerReject, "")
	return err
}

func closeClaimClient(_ *cobra.Command, _ []string) error {
	if session == nil {
		return nil
	}
	return session.Close()
}

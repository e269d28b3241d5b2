package serve

import (
	"fmt"
	cmdUtil "github.com/ValentinKolb/dSync/cmd/util"
	"github.com/ValentinKolb/dSync/lib/claimstore"
	"github.com/ValentinKolb/dSync/lib/claimstore/bstore"
	"github.com/ValentinKolb/dSync/lib/claimstore/fstore"
	"github.com/ValentinKolb/dSync/lib/claimstore/sqlstore"
	"github.com/ValentinKolb/dSync/lib/scores"
	"github.com/ValentinKolb/dSync/rpc/common"
	"github.com/ValentinKolb/dSync/rpc/server"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
)

var (
	serveCmdConfig = &common.ServerConfig{}
	ServeCmd       = &cobra.Command{
		Use:     "serve",
		Short:   "Start the dSync server",
		Long:    `Start the dSync server with the specified configuration. The configuration can be set via command line flags or environment variables. The format of the environment variables is DSYNC_<flag> (e.g. DSYNC_DATA_DIR=/var/lib/dsync)`,
		PreRunE: processConfig,
		RunE:    run,
	}
)

func init() {
	// initialize viper
	cobra.OnInitialize(cmdUtil.InitConfig)

	// add flags
	key := "store"
	ServeCmd.PersistentFlags().String(key, string(common.StoreTypeFile), cmdUtil.WrapString("Backend of the claim store (fstore, bstore, sqlstore)"))

	key = "data-dir"
	ServeCmd.PersistentFlags().String(key, "data", cmdUtil.WrapString("DataDir is the directory the claim store is kept in"))

	key = "scores-file"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("YAML file with the relationship scores between players. The file is reloaded when it changes. Without a file every score is 0"))

	key = "timeout"
	ServeCmd.PersistentFlags().Int64(key, 5, cmdUtil.WrapString("Timeout in seconds for writing a single message to a client"))

	key = "endpoint"
	ServeCmd.PersistentFlags().String(key, "0.0.0.0:8080", cmdUtil.WrapString("The address on which the server will listen (e.g. localhost:8080, /tmp/dsync.sock, ...)"))

	key = "admin-endpoint"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("The address of the admin HTTP endpoint serving metrics and claims (e.g. localhost:9090). Empty disables it"))

	key = "transport-write-buffer"
	ServeCmd.PersistentFlags().Int(key, 512, cmdUtil.WrapString("The size of the write buffer for the transport (in KB)"))

	key = "transport-read-buffer"
	ServeCmd.PersistentFlags().Int(key, 512, cmdUtil.WrapString("The size of the read buffer for the transport (in KB)"))

	key = "transport-tcp-nodelay"
	ServeCmd.PersistentFlags().Bool(key, true, cmdUtil.WrapString("Whether to disable Nagle's algorithm (only for tcp)"))

	key = "transport-tcp-keepalive"
	ServeCmd.PersistentFlags().Int(key, 0, cmdUtil.WrapString("The keep alive period (in seconds, only for tcp)"))

	key = "transport-tcp-linger"
	ServeCmd.PersistentFlags().Int(key, -1, cmdUtil.WrapString("The linger time (in seconds, only for tcp). 0 resets the connection on close, negative keeps the OS default"))
}

// processConfig reads the configuration from the command line flags and environment variables and converts them to the server configuration
func processConfig(cmd *cobra.Command, _ []string) error {
	// bind the flags to viper and set up the loggers
	if err := cmdUtil.BindCommandFlags(cmd); err != nil {
		return err
	}

	storeType, err := common.ParseStoreType(viper.GetString("store"))
	if err != nil {
		return err
	}

	// read the configuration from the command line flags and environment variables
	serveCmdConfig.StoreType = storeType
	serveCmdConfig.DataDir = viper.GetString("data-dir")
	serveCmdConfig.ScoresFile = viper.GetString("scores-file")
	serveCmdConfig.TimeoutSecond = viper.GetInt64("timeout")
	serveCmdConfig.AdminEndpoint = viper.GetString("admin-endpoint")
	serveCmdConfig.LogLevel = viper.GetString("log-level")
	serveCmdConfig.Transport = common.ServerTransportConfig{
		Endpoint: viper.GetString("endpoint"),
		SocketConf: common.SocketConf{
			WriteBufferSize: viper.GetInt("transport-write-buffer") * 1024,
			ReadBufferSize:  viper.GetInt("transport-read-buffer") * 1024,
		},
		TCPConf: common.TCPConf{
			TCPNoDelay:      viper.GetBool("transport-tcp-nodelay"),
			TCPKeepAliveSec: viper.GetInt("transport-tcp-keepalive"),
			TCPLingerSec:    viper.GetInt("transport-tcp-linger"),
		},
	}

	if serveCmdConfig.DataDir == "" {
		return fmt.Errorf("--data-dir must not be empty")
	}
	return nil
}

// run starts the dSync server
func run(_ *cobra.Command, _ []string) error {
	s, err := cmdUtil.GetSerializer()
	if err != nil {
		return err
	}

	t, err := cmdUtil.GetServerTransport()
	if err != nil {
		return err
	}

	scorer, err := openScorer(serveCmdConfig.ScoresFile)
	if err != nil {
		return err
	}
	defer scorer.Close()

	store, err := openStore(serveCmdConfig.StoreType, serveCmdConfig.DataDir)
	if err != nil {
		return err
	}

	fmt.Print(serveCmdConfig.String())

	serv := server.NewRPCServer(*serveCmdConfig, t, s, store, scorer)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sig
		server.Logger.Infof("Shutting down")
		if err := serv.Close(); err != nil {
			server.Logger.Errorf("Shutdown: %v", err)
		}
	}()

	return serv.Serve()
}

// openStore opens the claim store of the given type inside dataDir
func openStore(storeType common.ServerStoreType, dataDir string) (claimstore.IClaimStore, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	switch storeType {
	case common.StoreTypeFile:
		return fstore.NewFileStore(filepath.Join(dataDir, "claims"))
	case common.StoreTypeBolt:
		return bstore.NewBoltStore(filepath.Join(dataDir, "claims.db"))
	case common.StoreTypeSQLite:
		return sqlstore.NewSQLStore(filepath.Join(dataDir, "claims.sqlite"), int(serveCmdConfig.TimeoutSecond))
	default:
		return nil, fmt.Errorf("invalid store type: %s", storeType)
	}
}

// openScorer loads and watches the score file, without a file every score is 0
func openScorer(path string) (*scores.Scorer, error) {
	if path == "" {
		return scores.NewStaticScorer(0), nil
	}
	scorer, err := scores.LoadFile(path)
	if err != nil {
		return nil, err
	}
	if err := scorer.Watch(); err != nil {
		_ = scorer.Close()
		return nil, err
	}
	return scorer, nil
}

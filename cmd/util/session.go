package util

import (
	"github.com/ValentinKolb/dSync/lib/world"
	"github.com/ValentinKolb/dSync/rpc/client"
	"github.com/spf13/viper"
	"os"
	"os/signal"
	"syscall"
)

// CLISession is a client session backed by an in memory world
type CLISession struct {
	*client.Session
	World   *world.MemoryWorld
	Dialogs *ConsoleDialogs
}

// NewCLISession joins the server with the configuration from viper.
// savePath is where checkpoints of the world are written, empty disables them.
func NewCLISession(policy AnswerPolicy, savePath string) (*CLISession, error) {
	config, err := GetClientConfig()
	if err != nil {
		return nil, err
	}

	s, err := GetSerializer()
	if err != nil {
		return nil, err
	}

	t, err := GetClientTransport()
	if err != nil {
		return nil, err
	}

	w := world.NewMemoryWorld(savePath)
	dialogs := NewConsoleDialogs(os.Stdout, os.Stdin, policy)

	session, err := client.NewSession(*config, t, s, client.Collaborators{
		World:       w,
		Dialogs:     dialogs,
		Checkpoints: w,
		Factions:    world.ScoreFactionResolver{Self: config.Username},
	})
	if err != nil {
		return nil, err
	}

	return &CLISession{Session: session, World: w, Dialogs: dialogs}, nil
}

// Close closes the session and prints the statistics if requested
func (s *CLISession) Close() error {
	if viper.GetBool("stats") {
		s.Stats().Write(os.Stdout)
	}
	return s.Session.Close()
}

// WaitForInterrupt blocks until SIGINT/SIGTERM or until the session is lost
func (s *CLISession) WaitForInterrupt() {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sig)

	select {
	case <-sig:
	case <-s.Done():
	}
}

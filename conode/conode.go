// Conode runs a server hosting the conclave boards. Trustees, proposers and
// authorities talk to it to read and append messages.
//
// First set up a config file for the server:
//
//	./conode setup
//
// Then launch the daemon with:
//
//	./conode
package main

import (
	"os"
	"path"

	"go.dedis.ch/onet/v3/app"
	"go.dedis.ch/onet/v3/cfgpath"
	"go.dedis.ch/onet/v3/log"
	"gopkg.in/urfave/cli.v1"

	"go.dedis.ch/conclave"
	_ "go.dedis.ch/conclave/board"
)

const (
	// DefaultName is the name of the binary and of its configuration
	// directory.
	DefaultName = "conode"

	// Version of this binary
	Version = "1.0"
)

func main() {
	cliApp := cli.NewApp()
	cliApp.Name = DefaultName
	cliApp.Usage = "run a conclave board server"
	cliApp.Version = Version
	serverFlags := []cli.Flag{
		cli.StringFlag{
			Name:  "config, c",
			Value: path.Join(cfgpath.GetConfigPath(DefaultName), app.DefaultServerConfig),
			Usage: "configuration file of the server",
		},
		cli.IntFlag{
			Name:  "debug, d",
			Value: 0,
			Usage: "debug-level: 1 for terse, 5 for maximal",
		},
	}

	cliApp.Commands = []cli.Command{
		{
			Name:    "setup",
			Aliases: []string{"s"},
			Usage:   "Setup server configuration (interactive)",
			Action: func(c *cli.Context) error {
				app.InteractiveConfig(conclave.Suite, DefaultName)
				return nil
			},
		},
		{
			Name:  "server",
			Usage: "Start the board server",
			Action: func(c *cli.Context) error {
				runServer(c)
				return nil
			},
			Flags: serverFlags,
		},
	}
	cliApp.Flags = serverFlags
	cliApp.Before = func(c *cli.Context) error {
		log.SetDebugVisible(c.Int("debug"))
		return nil
	}
	cliApp.Action = func(c *cli.Context) error {
		runServer(c)
		return nil
	}

	err := cliApp.Run(os.Args)
	log.ErrFatal(err)
}

func runServer(c *cli.Context) {
	app.RunServer(c.String("config"))
}

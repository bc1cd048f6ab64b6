// Conclave is the command line interface of a trustee: it creates its
// identity, proposes configurations, posts ballots and runs the trustee on
// the boards it follows.
package main

import (
	"bufio"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	uuid "github.com/satori/go.uuid"
	"go.dedis.ch/onet/v3/cfgpath"
	"go.dedis.ch/onet/v3/log"
	"golang.org/x/xerrors"
	"gopkg.in/urfave/cli.v1"

	"go.dedis.ch/conclave"
	"go.dedis.ch/conclave/board"
	"go.dedis.ch/conclave/message"
	"go.dedis.ch/conclave/session"
	"go.dedis.ch/conclave/trustee"
)

const binaryName = "conclave"

var gitTag = "dev"

var cliApp = cli.NewApp()

func init() {
	cliApp.Name = binaryName
	cliApp.Usage = "Run a trustee of board-mediated elections."
	cliApp.Version = gitTag
	cliApp.Commands = cmds
	cliApp.Flags = []cli.Flag{
		cli.IntFlag{
			Name:  "debug, d",
			Value: 0,
			Usage: "debug-level: 1 for terse, 5 for maximal",
		},
		cli.StringFlag{
			Name:   "config, c",
			EnvVar: "CONCLAVE_CONFIG",
			Value:  filepath.Join(cfgpath.GetConfigPath(binaryName), "config.toml"),
			Usage:  "configuration file of the trustee",
		},
	}
	cliApp.Before = func(c *cli.Context) error {
		log.SetDebugVisible(c.Int("debug"))
		return nil
	}
}

var cmds = cli.Commands{
	{
		Name:   "setup",
		Usage:  "create a new trustee identity and its configuration",
		Action: setup,
		Flags: []cli.Flag{
			cli.StringFlag{Name: "name", Usage: "name of the trustee"},
			cli.StringFlag{Name: "roster", Usage: "group toml of the board server"},
			cli.StringSliceFlag{Name: "board", Usage: "board to follow"},
			cli.StringFlag{Name: "secrets", Usage: "path of the secret store"},
		},
	},
	{
		Name:      "board-name",
		Usage:     "derive the name of a board",
		ArgsUsage: "tenant event",
		Action:    boardName,
		Flags: []cli.Flag{
			cli.BoolFlag{Name: "uuid", Usage: "tenant and event are UUIDs"},
		},
	},
	{
		Name:   "propose",
		Usage:  "post a configuration to a board",
		Action: proposeCmd,
		Flags: []cli.Flag{
			cli.StringFlag{Name: "board", Usage: "name of the board"},
			cli.StringSliceFlag{Name: "trustee", Usage: "hex public key of a trustee, in position order"},
			cli.IntFlag{Name: "threshold", Usage: "number of trustees needed to decrypt"},
			cli.StringFlag{Name: "label", Usage: "description of the instance"},
			cli.StringFlag{Name: "authority", Usage: "hex public key allowed to post ballots"},
		},
	},
	{
		Name:      "ballots",
		Usage:     "encrypt ballots under the joint key and post them",
		ArgsUsage: "[ballot...]",
		Action:    ballots,
		Flags: []cli.Flag{
			cli.StringFlag{Name: "board", Usage: "name of the board"},
			cli.StringFlag{Name: "instance", Usage: "hex hash of the configuration"},
			cli.StringFlag{Name: "file", Usage: "file with one ballot per line"},
		},
	},
	{
		Name:        "run",
		Usage:       "run the trustee on its boards",
		Description: "SIGHUP makes every session poll its board right away.",
		Action:      run,
		Flags: []cli.Flag{
			cli.StringSliceFlag{Name: "board", Usage: "additional board to follow"},
			cli.BoolFlag{Name: "exit", Usage: "stop once every board is complete"},
		},
	},
	{
		Name:   "show",
		Usage:  "show the entries of a board",
		Action: show,
		Flags: []cli.Flag{
			cli.StringFlag{Name: "board", Usage: "name of the board"},
			cli.StringFlag{Name: "roster", Usage: "group toml of the board server, if no configuration"},
		},
	},
}

func main() {
	err := cliApp.Run(os.Args)
	if err != nil {
		log.Fatalf("error: %+v", err)
	}
}

func setup(c *cli.Context) error {
	cfg, err := newConfig(c.String("name"))
	if err != nil {
		return err
	}
	cfg.Roster = c.String("roster")
	cfg.Boards = c.StringSlice("board")
	cfg.Secrets = c.String("secrets")
	path := c.GlobalString("config")
	if cfg.Secrets == "" {
		cfg.Secrets = filepath.Join(filepath.Dir(path), "secrets.db")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	if err := cfg.save(path); err != nil {
		return err
	}
	log.Infof("Wrote %s", path)
	fmt.Println(cfg.Public)
	return nil
}

func boardName(c *cli.Context) error {
	if c.NArg() != 2 {
		return errors.New("please give the tenant and the event")
	}
	tenant, event := c.Args().Get(0), c.Args().Get(1)
	if c.Bool("uuid") {
		name, err := board.ParseName(tenant, event)
		if err != nil {
			return err
		}
		fmt.Println(name)
		return nil
	}
	fmt.Println(board.Name(tenant, event))
	return nil
}

func proposeCmd(c *cli.Context) error {
	cfg, err := loadConfig(c.GlobalString("config"))
	if err != nil {
		return err
	}
	pair, err := cfg.pair()
	if err != nil {
		return err
	}
	keys, err := parsePoints(c.StringSlice("trustee"))
	if err != nil {
		return err
	}
	params := message.Parameters{Label: c.String("label"), Nonce: uuid.NewV4().Bytes()}
	if a := c.String("authority"); a != "" {
		points, err := parsePoints([]string{a})
		if err != nil {
			return err
		}
		if params.Authority, err = points[0].MarshalBinary(); err != nil {
			return err
		}
	}
	cl, err := cfg.client()
	if err != nil {
		return err
	}
	hash, err := propose(context.Background(), cl, pair, cfg.Name, c.String("board"), keys,
		c.Int("threshold"), params)
	if err != nil {
		return err
	}
	fmt.Printf("%x\n", hash)
	return nil
}

func ballots(c *cli.Context) error {
	cfg, err := loadConfig(c.GlobalString("config"))
	if err != nil {
		return err
	}
	pair, err := cfg.pair()
	if err != nil {
		return err
	}
	var hash []byte
	if h := c.String("instance"); h != "" {
		if hash, err = hex.DecodeString(h); err != nil {
			return xerrors.Errorf("instance: %v", err)
		}
	}
	lines := []string(c.Args())
	if fn := c.String("file"); fn != "" {
		more, err := readLines(fn)
		if err != nil {
			return err
		}
		lines = append(lines, more...)
	}

	cl, err := cfg.client()
	if err != nil {
		return err
	}
	ctx := context.Background()
	name := c.String("board")
	in, err := findInstance(ctx, cl, name, hash)
	if err != nil {
		return err
	}
	if err := postBallots(ctx, cl, pair, cfg.Name, name, in, lines); err != nil {
		return err
	}
	log.Infof("Posted %d ballots for %x", len(lines), in.hash)
	return nil
}

func readLines(fn string) ([]string, error) {
	f, err := os.Open(fn)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var lines []string
	s := bufio.NewScanner(f)
	for s.Scan() {
		if s.Text() != "" {
			lines = append(lines, s.Text())
		}
	}
	return lines, s.Err()
}

func run(c *cli.Context) error {
	cfg, err := loadConfig(c.GlobalString("config"))
	if err != nil {
		return err
	}
	pair, err := cfg.pair()
	if err != nil {
		return err
	}
	proposers, err := cfg.proposers()
	if err != nil {
		return err
	}
	instance, err := cfg.instance()
	if err != nil {
		return err
	}
	if cfg.Secrets == "" {
		return xerrors.Errorf("no secret store given: %w", conclave.ErrConfig)
	}
	secrets, err := trustee.OpenBoltSecrets(cfg.Secrets)
	if err != nil {
		return err
	}
	defer secrets.Close()
	cl, err := cfg.client()
	if err != nil {
		return err
	}
	cache, err := board.NewCache(cl, cfg.CachePages)
	if err != nil {
		return err
	}

	metrics := session.NopMetrics()
	if cfg.Metrics != "" {
		metrics = session.PromMetrics()
		srv := &http.Server{Addr: cfg.Metrics, Handler: promhttp.Handler()}
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error("metrics:", err)
			}
		}()
		defer srv.Close()
	}

	runner := session.NewRunner()
	boards := append(cfg.Boards, c.StringSlice("board")...)
	if len(boards) == 0 {
		return xerrors.Errorf("no board to follow: %w", conclave.ErrConfig)
	}
	for _, name := range boards {
		tr, err := trustee.New(trustee.Config{
			Board:     name,
			Name:      cfg.Name,
			Pair:      pair,
			Secrets:   secrets,
			Proposers: proposers,
			Instance:  instance,
		})
		if err != nil {
			return err
		}
		runner.Add(session.New(tr, cache, session.Options{
			Interval:       cfg.Interval.Duration,
			MaxBackoff:     cfg.MaxBackoff.Duration,
			OnAction:       report(name),
			StopOnComplete: c.Bool("exit"),
			Metrics:        metrics,
		}))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sig)
	go handleSignals(sig, runner, cancel)
	log.Lvlf1("Following %d boards as %s", len(boards), pair.Public)
	return runner.Run(ctx)
}

// handleSignals wakes the sessions up on SIGHUP and cancels them on any
// other signal.
func handleSignals(sig <-chan os.Signal, runner *session.Runner, cancel func()) {
	for s := range sig {
		if s == syscall.SIGHUP {
			log.Lvl2("Polling the boards")
			runner.Notify()
			continue
		}
		log.Lvl1("Stopping")
		cancel()
		return
	}
}

// report logs what happens on a board.
func report(name string) func(trustee.Action) {
	return func(a trustee.Action) {
		switch a.Kind {
		case trustee.PhaseChanged:
			log.Infof("%s: %v", name, a.Phase)
		case trustee.CryptographicFault:
			log.Errorf("%s: %v", name, a.Fault)
		case trustee.Completed:
			log.Infof("%s: %d plaintexts, artifact digest %x", name, len(a.Points), a.Digest)
			for _, p := range a.Plaintexts() {
				fmt.Printf("%s\t%s\n", name, p)
			}
		}
	}
}

func show(c *cli.Context) error {
	var cl *board.Client
	var err error
	if r := c.String("roster"); r != "" {
		cl, err = readRoster(r)
	} else {
		var cfg *Config
		if cfg, err = loadConfig(c.GlobalString("config")); err != nil {
			return err
		}
		cl, err = cfg.client()
	}
	if err != nil {
		return err
	}
	entries, err := cl.GetMessages(context.Background(), c.String("board"), board.Beginning)
	if err != nil {
		return err
	}
	return describe(os.Stdout, entries)
}

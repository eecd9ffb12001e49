// Command doomslugsim runs the Doomslug finality gadget's discrete-event
// scenario simulator from the command line and prints a one-line summary
// per scenario.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/shardstake/gtos/consensus/doomslug/simulator"
	"github.com/shardstake/gtos/log"
	"github.com/shardstake/gtos/params"
)

var app *cli.App

func init() {
	app = cli.NewApp()
	app.Name = "doomslugsim"
	app.Usage = "run Doomslug finality gadget simulator scenarios"
	app.Version = "0.1.0"
	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:  "scenario",
			Usage: "scenario to run: s1, s2, s3, or all",
			Value: "all",
		},
	}
	app.Action = run
}

var scenarios = map[string]func() simulator.RunResult{
	"s1": runS1,
	"s2": runS2,
	"s3": runS3,
}

func run(c *cli.Context) error {
	name := c.String("scenario")
	if name == "all" {
		for _, key := range []string{"s1", "s2", "s3"} {
			report(key, scenarios[key]())
		}
		return nil
	}
	fn, ok := scenarios[name]
	if !ok {
		return fmt.Errorf("doomslugsim: unknown scenario %q (want s1, s2, s3, or all)", name)
	}
	report(name, fn())
	return nil
}

func report(name string, result simulator.RunResult) {
	log.Info("scenario finished", "scenario", name,
		"largest_ds_final_height", result.LargestDSFinalHeight,
		"safety_violation", result.SafetyViolation)
}

func scenarioConfig() params.DoomslugConfig {
	return params.DoomslugConfig{
		MinDelay:         100 * time.Millisecond,
		DelayStep:        200 * time.Millisecond,
		MaxDelay:         1000 * time.Millisecond,
		EndorsementDelay: 50 * time.Millisecond,
		ThresholdMode:    params.ThresholdHalfStake,
	}
}

func runS1() simulator.RunResult {
	_, validators, err := simulator.BuildEqualStakeValidators(8, scenarioConfig())
	if err != nil {
		log.Error("building validators", "err", err)
		return simulator.RunResult{}
	}
	network := simulator.NewNetwork(1, 0, 0, 100, 0, 0)
	chain := simulator.NewChain()
	return simulator.NewScheduler(chain, network, validators, 10).Run(60_000)
}

func runS2() simulator.RunResult {
	_, validators, err := simulator.BuildEqualStakeValidators(8, scenarioConfig())
	if err != nil {
		log.Error("building validators", "err", err)
		return simulator.RunResult{}
	}
	network := simulator.NewNetwork(2, 0, 0, 2000, 500_000, 0)
	chain := simulator.NewChain()
	return simulator.NewScheduler(chain, network, validators, 50).Run(600_000)
}

func runS3() simulator.RunResult {
	_, validators, err := simulator.BuildEqualStakeValidators(8, scenarioConfig())
	if err != nil {
		log.Error("building validators", "err", err)
		return simulator.RunResult{}
	}
	validators[0].Byzantine = true
	validators[1].Offline = true
	network := simulator.NewNetwork(3, 0, 100, 100, 120_001, 0.2)
	chain := simulator.NewChain()
	return simulator.NewScheduler(chain, network, validators, 10).Run(120_000)
}

func main() {
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// Package main defines the CLI structure using kong.
package main

import "github.com/alecthomas/kong"

// CLI defines the command-line interface.
type CLI struct {
	Config string `help:"Config file path (default: ./phishwatch.toml)"`

	Watch     WatchCmd     `cmd:"" help:"Follow a simulation run in a live dashboard"`
	Run       RunCmd       `cmd:"" help:"Follow a simulation run headless, printing events"`
	Replay    ReplayCmd    `cmd:"" help:"Replay a recorded run"`
	Runs      RunsCmd      `cmd:"" help:"List recorded runs"`
	Scenarios ScenariosCmd `cmd:"" help:"List scenarios and personas from the catalog"`
	Version   VersionCmd   `cmd:"" help:"Show version information"`
}

// WatchCmd follows a run inside the terminal dashboard.
type WatchCmd struct {
	Scenario string `short:"s" help:"Scenario ID to launch"`
	Offender string `help:"Offender persona ID"`
	Victim   string `help:"Victim persona ID"`
	RunID    string `help:"Attach to a pre-assigned run ID instead of generating one"`
	Record   bool   `short:"r" help:"Record the run to a transcript"`
	Relay    bool   `help:"Republish events to NATS (implies relay config)"`
	LogFile  string `help:"Write structured logs to this file (dashboard owns the terminal)"`
}

// RunCmd follows a run without the dashboard.
type RunCmd struct {
	Scenario string `short:"s" help:"Scenario ID to launch"`
	Offender string `help:"Offender persona ID"`
	Victim   string `help:"Victim persona ID"`
	RunID    string `help:"Attach to a pre-assigned run ID instead of generating one"`
	Record   bool   `short:"r" help:"Record the run to a transcript"`
	Relay    bool   `help:"Republish events to NATS"`
	JSON     bool   `help:"Print events as JSON lines instead of text"`
}

// ReplayCmd replays a recorded run.
type ReplayCmd struct {
	RunID   string `arg:"" optional:"" help:"Run ID to replay (default: most recent)"`
	Verbose int    `short:"v" type:"counter" help:"Verbosity level (-v, -vv)"`
	Live    bool   `help:"Follow a run that is still being recorded"`
	NoPager bool   `help:"Print to stdout instead of the pager"`
}

// RunsCmd lists recorded runs.
type RunsCmd struct{}

// ScenariosCmd lists catalog entries.
type ScenariosCmd struct{}

// VersionCmd shows version information.
type VersionCmd struct{}

// kongVars returns variables for kong (version info).
func kongVars() kong.Vars {
	return kong.Vars{
		"version": version,
	}
}

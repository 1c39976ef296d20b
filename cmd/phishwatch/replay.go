package main

import (
	"fmt"
	"os"

	"github.com/secdrill/phishwatch/internal/catalog"
	"github.com/secdrill/phishwatch/internal/replay"
	"github.com/secdrill/phishwatch/internal/transcript"
)

// Run implements the replay command.
func (c *ReplayCmd) Run(env *appEnv) error {
	store, err := transcript.NewFileStore(env.cfg.Transcripts.Dir)
	if err != nil {
		return err
	}

	runID := c.RunID
	if runID == "" {
		ids, err := store.List()
		if err != nil {
			return err
		}
		if len(ids) == 0 {
			return fmt.Errorf("no recorded runs in %s", env.cfg.Transcripts.Dir)
		}
		runID = ids[0]
	}

	r := replay.New(store, os.Stdout, c.Verbose)
	switch {
	case c.Live:
		return r.ReplayLive(runID)
	case c.NoPager:
		return r.ReplayRun(runID)
	default:
		return r.ReplayInteractive(runID)
	}
}

// Run implements the runs command.
func (c *RunsCmd) Run(env *appEnv) error {
	store, err := transcript.NewFileStore(env.cfg.Transcripts.Dir)
	if err != nil {
		return err
	}
	ids, err := store.List()
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		fmt.Printf("no recorded runs in %s\n", env.cfg.Transcripts.Dir)
		return nil
	}

	for _, id := range ids {
		run, err := store.Load(id)
		if err != nil {
			fmt.Printf("%s  (unreadable: %v)\n", id, err)
			continue
		}
		status := run.CloseReason
		if !run.Complete {
			status = "truncated"
		}
		fmt.Printf("%s  scenario=%s  started=%s  events=%d  %s\n",
			id,
			orDash(run.Header.ScenarioID),
			run.Header.StartedAt.Format("2006-01-02 15:04"),
			len(run.Events),
			status)
	}
	return nil
}

// Run implements the scenarios command.
func (c *ScenariosCmd) Run(env *appEnv) error {
	if env.cfg.Catalog.Path == "" {
		return fmt.Errorf("no catalog path configured (set [catalog] path in phishwatch.toml)")
	}
	cat, err := catalog.Load(env.cfg.Catalog.Path)
	if err != nil {
		return err
	}

	fmt.Println("Scenarios:")
	for _, s := range cat.Scenarios {
		line := fmt.Sprintf("  %-16s %s", s.ID, s.Name)
		if s.Category != "" {
			line += fmt.Sprintf("  [%s]", s.Category)
		}
		if s.Rounds > 0 {
			line += fmt.Sprintf("  rounds=%d", s.Rounds)
		}
		fmt.Println(line)
	}
	fmt.Println("Offenders:")
	for _, p := range cat.Offenders {
		fmt.Printf("  %-16s %s\n", p.ID, p.Name)
	}
	fmt.Println("Victims:")
	for _, p := range cat.Victims {
		fmt.Printf("  %-16s %s\n", p.ID, p.Name)
	}
	return nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

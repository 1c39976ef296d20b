package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/secdrill/phishwatch/internal/stream"
	"github.com/secdrill/phishwatch/internal/telemetry"
)

// Run implements the headless run command: open a session, print every
// event until the run ends, exit non-zero on failed runs.
func (c *RunCmd) Run(env *appEnv) error {
	logger, err := newLogger("")
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdown, err := telemetry.Init(ctx, env.cfg.Telemetry, version)
	if err != nil {
		logger.Warn("telemetry disabled", zap.Error(err))
	} else {
		defer shutdown(context.Background())
	}

	runID := c.RunID
	if runID == "" {
		runID = uuid.NewString()
	}

	sinks, cleanup, err := buildSinks(env, logger, runID, sinkParams{
		record:   c.Record,
		relay:    c.Relay,
		scenario: c.Scenario,
		offender: c.Offender,
		victim:   c.Victim,
	})
	if err != nil {
		cleanup()
		return err
	}
	defer cleanup()

	mgr := stream.NewManager(newTransport(env), logger)
	session, err := mgr.Open(ctx, stream.Params{
		RunID:      runID,
		ScenarioID: c.Scenario,
		OffenderID: c.Offender,
		VictimID:   c.Victim,
	})
	if err != nil {
		return err
	}
	defer session.Close(stream.ReasonManualClose)

	closeReason := ""
	for {
		ev, ok := session.Next(ctx)
		if !ok {
			break
		}
		for _, sink := range sinks {
			sink(ev)
		}
		if ev.Kind == stream.KindControl && ev.Channel == stream.LocalChannel {
			closeReason = ev.Content
		}
		c.print(ev)
	}

	switch closeReason {
	case stream.ReasonError, stream.ReasonTransport:
		return fmt.Errorf("run %s failed: %s", runID, closeReason)
	case "":
		return fmt.Errorf("run %s interrupted", runID)
	}
	return nil
}

func (c *RunCmd) print(ev stream.Event) {
	if c.JSON {
		if data, err := json.Marshal(ev); err == nil {
			fmt.Println(string(data))
		}
		return
	}

	switch ev.Kind {
	case stream.KindTurn:
		if ev.Turn == nil {
			return
		}
		convinced := ""
		if ev.Turn.ConvincedPct != nil {
			convinced = fmt.Sprintf(" (convinced %d%%)", *ev.Turn.ConvincedPct)
		}
		fmt.Printf("[round %d] %s: %s%s\n", ev.Turn.Round, ev.Turn.Role, ev.Turn.DisplayText, convinced)
	case stream.KindJudgement, stream.KindGuidance, stream.KindPrevention:
		fmt.Printf("[round %d] %s\n", ev.Meta.Round, strings.ToUpper(string(ev.Kind)))
	case stream.KindError:
		fmt.Fprintf(os.Stderr, "error: %s\n", ev.Content)
	case stream.KindControl:
		if ev.Channel == stream.LocalChannel {
			fmt.Printf("run closed: %s\n", ev.Content)
		}
	case stream.KindTerminalSignal:
		fmt.Println("run end signaled")
	case stream.KindLog:
		fmt.Printf("  %s\n", ev.Content)
	}
}

// Package main is the entry point for the phishwatch trainer client.
package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/secdrill/phishwatch/internal/config"
)

// Build-time variables (set via ldflags)
var (
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
)

func init() {
	// Load .env for backend tokens and relay credentials
	_ = godotenv.Load()
}

// appEnv carries shared state into kong command Run methods.
type appEnv struct {
	cfg *config.Config
}

func main() {
	var cli CLI
	kctx := kong.Parse(&cli,
		kong.Name("phishwatch"),
		kong.Description("Live client for phishing-awareness simulation runs."),
		kong.UsageOnError(),
		kongVars(),
	)

	cfg, err := loadConfig(cli.Config)
	kctx.FatalIfErrorf(err)

	err = kctx.Run(&appEnv{cfg: cfg})
	kctx.FatalIfErrorf(err)
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	return config.LoadDefault()
}

// newLogger builds the structured logger. With an empty path logs go to
// stderr; commands that own the terminal pass a file path instead.
func newLogger(path string) (*zap.Logger, error) {
	if path == "-" {
		return zap.NewNop(), nil
	}

	zcfg := zap.NewProductionConfig()
	zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if path != "" {
		zcfg.OutputPaths = []string{path}
		zcfg.ErrorOutputPaths = []string{path}
	} else {
		zcfg.OutputPaths = []string{"stderr"}
		zcfg.ErrorOutputPaths = []string{"stderr"}
	}
	logger, err := zcfg.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return logger, nil
}

// Run implements the version command.
func (c *VersionCmd) Run(env *appEnv) error {
	fmt.Fprintf(os.Stdout, "phishwatch version %s (commit: %s, built: %s)\n", version, commit, buildTime)
	return nil
}

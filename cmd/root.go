package cmd

import (
	"context"
	"fmt"
	"os"
	"runtime/pprof"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/traelabs/trae/internal/contract"
	"github.com/traelabs/trae/internal/iocache"
	"github.com/traelabs/trae/schema"
)

// All linker flags will be set by goreleaser infra at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// rootCtx is the root context for all operations.
var rootCtx = context.Background()

// cfg will hold the validated, final configuration.
var cfg = &contract.Config{}

// input holds the raw, unvalidated configuration from all sources (file, env, flags).
// Viper will unmarshal into this struct.
var input = &contract.ConfigRawInput{}

// pprofPrefix enables profiling when non-empty.
var pprofPrefix string

// cacheManager holds the stores opened for the current command.
var cacheManager *iocache.StoreManager

// startProfiling starts CPU and memory profiling if enabled.
func startProfiling() error {
	if pprofPrefix == "" {
		return nil
	}

	cpuFile, err := os.Create(pprofPrefix + ".cpu.prof")
	if err != nil {
		return fmt.Errorf("could not create CPU profile: %w", err)
	}
	if err := pprof.StartCPUProfile(cpuFile); err != nil {
		return fmt.Errorf("could not start CPU profiling: %w", err)
	}

	// Memory profiling will be captured at the end
	_, err = fmt.Fprintf(os.Stderr, "Profiling enabled. CPU profile: %s.cpu.prof, Memory profile: %s.mem.prof\n", pprofPrefix, pprofPrefix)
	return err
}

// stopProfiling stops profiling and writes memory profile.
func stopProfiling() error {
	if pprofPrefix == "" {
		return nil
	}

	pprof.StopCPUProfile()

	memFile, err := os.Create(pprofPrefix + ".mem.prof")
	if err != nil {
		return fmt.Errorf("could not create memory profile: %w", err)
	}
	defer func() { _ = memFile.Close() }()

	if err := pprof.WriteHeapProfile(memFile); err != nil {
		return fmt.Errorf("could not write memory profile: %w", err)
	}

	_, err = fmt.Fprintf(os.Stderr, "Profiling complete. Use 'go tool pprof %s.cpu.prof' to analyze.\n", pprofPrefix)
	return err
}

// rootCmd is the command-line entrypoint for all other commands.
var rootCmd = &cobra.Command{
	Use:                "trae",
	Short:              "Analyze a source tree for defects, score it and repair what can be repaired.",
	Long:               `trae scans a source tree with pattern detectors, scores its quality in defects per million lines and applies automated repairs.`,
	Version:            version,
	SilenceErrors:      true,
	SilenceUsage:       true,
	DisableSuggestions: true,
	Run: func(cmd *cobra.Command, _ []string) {
		_ = cmd.Help()
	},
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	setConfigFile()

	// Set environment variable prefix
	viper.SetEnvPrefix("TRAE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // Read in environment variables that match

	// Set defaults in Viper
	viper.SetDefault("limit", contract.DefaultResultLimit)
	viper.SetDefault("parallelism", contract.AutoParallelism)
	viper.SetDefault("precision", contract.DefaultPrecision)
	viper.SetDefault("output", string(schema.TextOut))
	viper.SetDefault("cache-backend", string(schema.FileBackend))
	viper.SetDefault("cache-db-connect", "")
	viper.SetDefault("cache-ttl-seconds", contract.DefaultCacheTTLSeconds)
	viper.SetDefault("runs-backend", "")
	viper.SetDefault("runs-db-connect", "")
	viper.SetDefault("color", "yes")
	viper.SetDefault("metrics", "yes")
	viper.SetDefault("level", string(schema.SafeLevel))
}

// setConfigFile points viper at --config or the default .trae.yaml locations.
func setConfigFile() {
	if configFile := viper.GetString("config"); configFile != "" {
		viper.SetConfigFile(configFile)
		return
	}
	viper.SetConfigName(".trae") // Name of config file (without extension)
	viper.SetConfigType("yaml")  // We'll use YAML format
	viper.AddConfigPath(".")     // Look in the current directory
	viper.AddConfigPath("$HOME") // Look in the home directory
}

// sharedSetup unmarshals config, runs validation and opens the stores.
func sharedSetup(ctx context.Context, cmd *cobra.Command, args []string) error {
	pprofPrefix = viper.GetString("pprof")
	if err := startProfiling(); err != nil {
		return fmt.Errorf("failed to start profiling: %w", err)
	}

	// 1. Read config file. This merges defaults, file, env, and flags.
	if err := loadConfigFile(); err != nil {
		return err
	}

	// 2. Unmarshal all resolved values from Viper into our raw input struct.
	if err := viper.Unmarshal(input); err != nil {
		return fmt.Errorf("unable to unmarshal config: %w", err)
	}

	// 3. Handle positional arguments (which Viper doesn't do).
	if len(args) == 1 {
		input.RootPathStr = args[0]
	} else {
		input.RootPathStr = "."
	}

	// 4. Run all validation and complex parsing.
	if err := contract.ProcessAndValidate(ctx, cfg, input); err != nil {
		return err
	}
	// The MCP server owns stdout, so its logs go to stderr only
	if err := contract.InitLogger(cfg.LogLevel, cmd.Name() == "mcp"); err != nil {
		return fmt.Errorf("invalid --log-level value: %w", err)
	}

	// 5. Open the stores selected by the validated config
	mgr, err := iocache.OpenStores(iocache.StoreConfigFrom(cfg))
	if err != nil {
		return fmt.Errorf("failed to initialize persistence: %w", err)
	}
	cacheManager = mgr
	return nil
}

// sharedSetupWrapper wraps sharedSetup to provide context for Cobra's PreRunE.
func sharedSetupWrapper(cmd *cobra.Command, args []string) error {
	return sharedSetup(rootCtx, cmd, args)
}

// loadConfigFile handles config file loading logic common to all setup functions.
func loadConfigFile() error {
	setConfigFile()
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			// Config file was found but another error was produced
			return fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found, which is fine; we'll use defaults/env/flags.
	}
	return nil
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.ExecuteContext(rootCtx)
}

// CloseStores releases the stores opened by the last command.
func CloseStores() error {
	if cacheManager == nil {
		return nil
	}
	return cacheManager.Close()
}

// StopProfiling stops profiling if enabled.
func StopProfiling() error {
	return stopProfiling()
}

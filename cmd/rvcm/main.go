package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/easzlab/rvcm/pkg/config"
	"github.com/easzlab/rvcm/pkg/nat"
	"github.com/easzlab/rvcm/pkg/router"
)

var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := newRootCommand().ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

// app carries the state shared by all commands of one invocation.
type app struct {
	v          *viper.Viper
	configPath string
	verbose    bool
	level      zap.AtomicLevel
	logger     *zap.Logger
	configMgr  *config.Manager
}

func newRootCommand() *cobra.Command {
	a := &app{v: viper.New()}

	rootCmd := &cobra.Command{
		Use:               "rvcm",
		Short:             "rvcm - RV6688BCM router control",
		Long:              "Manage port forwarding on an RV6688BCM home router through its web interface.",
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
		PersistentPostRun: a.teardown,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&a.configPath, "config", "c", "", "path to config file (default $HOME/.config/rvcm/rvcm.yaml or /etc/rvcm/rvcm.yaml)")
	flags.StringP("host", "i", "", "router address (host or host:port)")
	flags.StringP("username", "u", config.DefaultUsername, "router admin user")
	flags.StringP("password", "p", config.DefaultPassword, "router admin password")
	flags.String("password-file", "", "read the router password from this file")
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "enable debug logging")
	flags.Bool("debug", false, "log every HTTP request and response")

	for key, name := range map[string]string{
		"router.host":          "host",
		"router.username":      "username",
		"router.password":      "password",
		"router.password_file": "password-file",
		"router.debug":         "debug",
	} {
		if err := a.v.BindPFlag(key, flags.Lookup(name)); err != nil {
			panic(fmt.Sprintf("failed to bind flag %s: %v", name, err))
		}
	}

	rootCmd.AddCommand(
		newInfoCommand(a),
		newCallsCommand(a),
		newNATCommand(a),
		newCreateCommand(a),
		newEnableCommand(a),
		newDisableCommand(a),
		newUpdateCommand(a),
		newRenameCommand(a),
		newRemoveCommand(a),
		newApplyCommand(a),
		newSyncCommand(a),
		newCheckCommand(a),
		newVersionCommand(),
	)

	return rootCmd
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		// Needs neither config nor router.
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
		PersistentPostRun: func(cmd *cobra.Command, args []string) {},
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "rvcm version %s\n", version)
		},
	}
}

// setup builds the logger and loads the configuration before any command runs.
func (a *app) setup(cmd *cobra.Command, args []string) error {
	a.level = zap.NewAtomicLevelAt(zap.InfoLevel)
	if a.verbose {
		a.level.SetLevel(zap.DebugLevel)
	}
	a.logger = newLogger(a.level)

	configMgr, err := config.NewManager(a.v, a.configPath, a.logger.Named("config"))
	if err != nil {
		return err
	}
	a.configMgr = configMgr

	if !a.verbose {
		level, err := zapcore.ParseLevel(configMgr.GetConfig().Global.LogLevel)
		if err != nil {
			return err
		}
		a.level.SetLevel(level)
	}

	a.logger.Debug("configuration loaded",
		zap.String("version", version),
		zap.String("config", configMgr.ConfigFileUsed()),
		zap.String("host", configMgr.GetConfig().Router.Host),
	)
	return nil
}

func (a *app) teardown(cmd *cobra.Command, args []string) {
	if a.logger != nil {
		_ = a.logger.Sync()
	}
}

func (a *app) client() *router.Client {
	return router.NewClient(a.configMgr.GetConfig().Router, a.logger.Named("router"))
}

func (a *app) natService(client *router.Client) *nat.Service {
	return nat.NewService(client, a.logger.Named("nat"))
}

// newLogger creates a zap logger with console encoding for readability.
// Logs go to stderr; stdout carries command output.
func newLogger(level zap.AtomicLevel) *zap.Logger {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "time"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder

	loggerConfig := zap.Config{
		Level:            level,
		Encoding:         "console",
		EncoderConfig:    encoderConfig,
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	}

	logger, err := loggerConfig.Build()
	if err != nil {
		panic(fmt.Sprintf("failed to create logger: %v", err))
	}
	return logger
}

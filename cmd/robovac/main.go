// Robovac state sync service.
//
// Polls Eufy RoboVac devices through an MQTT gateway, keeps one shared state
// cache per vacuum and exposes it over MQTT, HTTP and WebSocket.
//
//	robovac serve --config configs/config.yaml
//	robovac decode --model T2118 payload.json
//	robovac models
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// defaultConfigPath is used when neither --config nor ROBOVAC_CONFIG is set.
const defaultConfigPath = "configs/config.yaml"

var (
	configPath string
	modelsFile string
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "robovac",
		Short: "Robovac state sync service",
		Long: `Robovac keeps a consistent view of Eufy RoboVac state.

Each configured vacuum is polled through the local-protocol gateway on the
MQTT broker. Decoded state lands in one shared cache per vacuum, which feeds
the MQTT bridge, the HTTP API, the SQLite snapshot store and InfluxDB.`,
		Version:       fmt.Sprintf("%s (commit %s, built %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Configuration file (default $ROBOVAC_CONFIG or "+defaultConfigPath+")")
	root.PersistentFlags().StringVar(&modelsFile, "models", "", "Model catalogue YAML overriding the built-in table")

	root.AddCommand(newServeCmd(), newDecodeCmd(), newModelsCmd())
	return root
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// getConfigPath returns --config, then ROBOVAC_CONFIG, then the default.
func getConfigPath() string {
	if configPath != "" {
		return configPath
	}
	if path := os.Getenv("ROBOVAC_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

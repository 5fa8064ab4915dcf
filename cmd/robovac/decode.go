package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/nerrad567/gray-logic-robovac/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-robovac/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-robovac/internal/robovac"
)

func newDecodeCmd() *cobra.Command {
	var (
		model   string
		verbose bool
	)
	cmd := &cobra.Command{
		Use:   "decode [FILE]",
		Short: "Decode a raw DPS payload into a reading",
		Long: `Decode reads a JSON object of DPS values, from FILE or stdin, and prints
the snapshot the poller would publish for it. Use --verbose to log every
field that was skipped as malformed or not supported by the model.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := loadCatalogue(modelsFile)
			if err != nil {
				return err
			}
			m, err := cat.Lookup(model)
			if err != nil {
				return err
			}

			in := cmd.InOrStdin()
			if len(args) == 1 {
				f, err := os.Open(args[0])
				if err != nil {
					return fmt.Errorf("opening payload: %w", err)
				}
				defer f.Close()
				in = f
			}
			raw, err := readPayload(in)
			if err != nil {
				return err
			}

			level := "warn"
			if verbose {
				level = "debug"
			}
			log := logging.NewWithWriter(config.LoggingConfig{Level: level, Format: "text"}, version, cmd.ErrOrStderr())

			reading := robovac.Reading{
				Model:    m.Code,
				At:       time.Now().UTC(),
				Snapshot: robovac.NewDecoder(m, log).Decode(raw),
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(reading)
		},
	}
	cmd.Flags().StringVarP(&model, "model", "m", "", "Model code, e.g. T2118")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Log skipped fields")
	//nolint:errcheck // flag is defined above
	cmd.MarkFlagRequired("model")
	return cmd
}

// readPayload decodes a JSON object keeping numbers exact.
func readPayload(r io.Reader) (robovac.RawPayload, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading payload: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw robovac.RawPayload
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("parsing payload: %w", err)
	}
	return raw, nil
}

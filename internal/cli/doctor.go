package cli

import (
	"fmt"
	"os/exec"

	"github.com/spf13/cobra"
)

// NewDoctorCmd returns a health-check command validating config and environment.
func NewDoctorCmd(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Validate configuration and environment",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Config OK. Providers: %d, models: %d\n", len(cfg.Providers), len(cfg.Models))
			fmt.Fprintf(out, "Verifier backend: %s, timeout: %s, metrics: %v\n",
				cfg.Verifier.Backend, cfg.Verifier.Timeout, cfg.Metrics.Enabled)

			binary := cfg.Verifier.ESBMC.Path
			if cfg.Verifier.Backend == "oracle" {
				binary = cfg.Verifier.Oracle.Command
			}
			if path, err := exec.LookPath(binary); err != nil {
				fmt.Fprintf(out, "Verifier binary %q NOT found: %v\n", binary, err)
			} else {
				fmt.Fprintf(out, "Verifier binary found at %s\n", path)
			}
			return nil
		},
	}
}

/*-
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/mfreeman451/stackradar/pkg/api"
	"github.com/mfreeman451/stackradar/pkg/checker"
	"github.com/mfreeman451/stackradar/pkg/config"
	"github.com/mfreeman451/stackradar/pkg/lifecycle"
	"github.com/mfreeman451/stackradar/pkg/logging"
	"github.com/mfreeman451/stackradar/pkg/models"
	"github.com/mfreeman451/stackradar/pkg/shutdown"
	"github.com/mfreeman451/stackradar/pkg/supervisor"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

const clientTimeout = 3 * time.Minute

type rootCmd struct {
	cmd      *cobra.Command
	exitCode int

	configPath    string
	apiAddr       string
	startServices bool
}

func newRootCmd() *rootCmd {
	r := &rootCmd{}

	r.cmd = &cobra.Command{
		Use:           "stackradar",
		Short:         "Resource monitor and supervisor for a local AI stack",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	r.cmd.PersistentFlags().StringVar(&r.configPath, "config", "", "Path to YAML or JSON config (defaults when empty)")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Monitor resources, dispatch alerts and serve the status API until signalled",
		Args:  cobra.NoArgs,
		RunE:  r.run,
	}
	runCmd.Flags().BoolVar(&r.startServices, "start-services", false, "Start configured services in order")

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show service status, active alerts and the last shutdown",
		Args:  cobra.NoArgs,
		RunE:  r.status,
	}
	statusCmd.Flags().StringVar(&r.apiAddr, "api", "", "Address of a running stackradar API")

	servicesCmd := &cobra.Command{
		Use:   "services",
		Short: "Control services through a running stackradar",
	}
	servicesCmd.PersistentFlags().StringVar(&r.apiAddr, "api", "", "Address of a running stackradar API")

	for _, action := range []string{"start", "stop", "restart"} {
		servicesCmd.AddCommand(&cobra.Command{
			Use:   action + " <name>",
			Short: "Ask the running stackradar to " + action + " a service",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return r.serviceAction(cmd, args[0], action)
			},
		})
	}

	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as YAML",
		Args:  cobra.NoArgs,
		RunE:  r.printConfig,
	}

	r.cmd.AddCommand(runCmd, statusCmd, servicesCmd, configCmd)

	return r
}

func (r *rootCmd) execute() (int, error) {
	if err := r.cmd.Execute(); err != nil {
		if r.exitCode == 0 {
			r.exitCode = 1
		}

		return r.exitCode, err
	}

	return r.exitCode, nil
}

func (r *rootCmd) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(r.configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

func (r *rootCmd) run(cmd *cobra.Command, _ []string) error {
	cfg, err := r.loadConfig()
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}

	stats, err := lifecycle.Run(cmd.Context(), cfg, logger.Logger, lifecycle.RunOptions{
		Options:       lifecycle.Options{Console: cmd.OutOrStdout()},
		StartServices: r.startServices,
		Flush:         logger.Close,
	})
	if err != nil {
		_ = logger.Close()

		return err
	}

	r.exitCode = shutdown.ExitCode(&stats)

	return nil
}

func (r *rootCmd) apiAddress(cfg *config.Config) string {
	if r.apiAddr != "" {
		return r.apiAddr
	}

	return cfg.API.ListenAddr
}

func (r *rootCmd) status(cmd *cobra.Command, _ []string) error {
	cfg, err := r.loadConfig()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	ctx := cmd.Context()

	var (
		services []models.ServiceStatus
		active   []models.Alert
	)

	st, apiErr := api.NewClient(r.apiAddress(cfg), 5*time.Second).Status(ctx)
	if apiErr == nil {
		services, active = st.Services, st.ActiveAlerts
	} else {
		// no running instance; probe ports directly
		fmt.Fprintf(out, "stackradar API not reachable (%v), probing services directly\n\n", apiErr)

		sup := supervisor.NewSupervisor(cfg.Supervisor, cfg.ServiceDescriptors(), nil,
			checker.DefaultRegistry(), logging.Discard())
		services = sup.Status(ctx)
	}

	writeServices(out, services)

	if apiErr == nil {
		fmt.Fprintf(out, "\nActive alerts: %d\n", len(active))

		for i := range active {
			fmt.Fprintf(out, "  [%s] %s\n", active[i].Severity, active[i].Message)
		}
	}

	if last, err := shutdown.ReadStats(cfg.Shutdown.StatsFile); err == nil {
		fmt.Fprintf(out, "\nLast shutdown: %s (%s), %d/%d tasks ok, exit code %d\n",
			last.EndTime.Format(time.RFC3339), last.Reason, last.TasksCompleted, last.TasksTotal, shutdown.ExitCode(last))
	} else if !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(out, "\nLast shutdown: unreadable: %v\n", err)
	}

	return nil
}

func writeServices(out io.Writer, services []models.ServiceStatus) {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SERVICE\tADDRESS\tRUNNING\tMANAGED\tPID")

	for _, s := range services {
		pid := "-"
		if s.PID > 0 {
			pid = fmt.Sprint(s.PID)
		}

		fmt.Fprintf(tw, "%s\t%s:%d\t%t\t%t\t%s\n", s.Name, s.Host, s.Port, s.Running, s.Managed, pid)
	}

	_ = tw.Flush()
}

func (r *rootCmd) serviceAction(cmd *cobra.Command, name, action string) error {
	cfg, err := r.loadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), clientTimeout)
	defer cancel()

	res, err := api.NewClient(r.apiAddress(cfg), clientTimeout).ServiceAction(ctx, name, action)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s %s: ok\n", action, res.Service)

	return nil
}

func (r *rootCmd) printConfig(cmd *cobra.Command, _ []string) error {
	cfg, err := r.loadConfig()
	if err != nil {
		return err
	}

	enc := yaml.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent(2)

	if err := enc.Encode(cfg); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	return enc.Close()
}

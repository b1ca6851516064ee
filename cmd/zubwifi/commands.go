package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/muurk/zubwifi/internal/config"
	"github.com/muurk/zubwifi/internal/link"
	"github.com/muurk/zubwifi/internal/logging"
	"github.com/muurk/zubwifi/internal/server"
	"github.com/muurk/zubwifi/internal/softap"
	"github.com/muurk/zubwifi/internal/station"
	"github.com/muurk/zubwifi/internal/ui"
)

// Run command flags
var (
	runSSID      string
	runPassword  string
	runSave      bool
	runProvision bool
	runTUI       bool
	runNoStatus  bool
)

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVar(&runSSID, "ssid", "", "Connect to this network instead of the stored one")
	runCmd.Flags().StringVar(&runPassword, "password", "", "Password for --ssid")
	runCmd.Flags().BoolVar(&runSave, "save", true, "Store the --ssid credential before connecting")
	runCmd.Flags().BoolVar(&runProvision, "provision", false, "Erase the stored credential and start provisioning")
	runCmd.Flags().BoolVar(&runTUI, "tui", false, "Follow state changes in a terminal view")
	runCmd.Flags().BoolVar(&runNoStatus, "no-status", false, "Do not start the status server")
}

// runCmd runs the connection manager until interrupted
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the connection manager",
	Long: `Start the station and keep it connected.

With a stored credential the station connects to that network and
reconnects after link loss according to the reconnect policy. Without
one, a SoftAP provisioning session is opened under the name
<prefix><last three MAC bytes>, and the first accepted credential is
saved and used.

Press Ctrl+C to disconnect and exit.`,
	Example: `  # Connect with the stored credential, or provision
  zubwifi run

  # Connect to a specific network and store it
  zubwifi run --ssid HomeNet --password secret123

  # Force a new provisioning session
  zubwifi run --provision

  # Follow state changes in a terminal view
  zubwifi run --tui`,
	RunE: runDaemon,
}

// loadConfig reads the config file and initializes logging. The daemon logs
// at the configured level; other commands stay quiet unless --log-level or
// ZUBWIFI_LOG_LEVEL asks otherwise.
func loadConfig(daemon bool) (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	level := logLevel
	if level == "" && daemon && os.Getenv(logging.LogLevelEnvVar) == "" {
		level = cfg.LogLevel
	}
	if err := logging.Initialize(level); err != nil {
		return nil, err
	}
	return cfg, nil
}

// device bundles the orchestrator with its collaborators
type device struct {
	sim  *link.Sim
	prov *softap.Provisioner
	orch *station.Orchestrator
}

func newDevice(cfg *config.Config) (*device, error) {
	simCfg, err := cfg.SimConfig()
	if err != nil {
		return nil, err
	}
	params, err := cfg.ProvisioningParams()
	if err != nil {
		return nil, err
	}
	store, err := cfg.OpenStore()
	if err != nil {
		return nil, fmt.Errorf("failed to open credential store: %w", err)
	}

	d := &device{
		sim:  link.NewSim(simCfg),
		prov: softap.NewProvisioner(cfg.SoftAPConfig()),
	}
	d.orch, err = station.New(station.Config{
		Driver:       d.sim,
		Store:        store,
		Provisioner:  d.prov,
		NamePrefix:   cfg.Provisioning.Prefix,
		Provisioning: params,
		Reconnect:    cfg.Reconnect.BackOff(),
	})
	if err != nil {
		return nil, err
	}
	return d, nil
}

// provisioningParams returns the configured SoftAP settings named after the
// station MAC
func (d *device) provisioningParams(cfg *config.Config) (station.ProvisioningParams, error) {
	params, err := cfg.ProvisioningParams()
	if err != nil {
		return params, err
	}
	mac, err := d.sim.HardwareAddr()
	if err != nil {
		return params, err
	}
	params.Name, err = station.ProvisioningName(cfg.Provisioning.Prefix, mac)
	return params, err
}

func runDaemon(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(true)
	if err != nil {
		return err
	}

	d, err := newDevice(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := d.orch.Close(); err != nil {
			logging.Warn("Station shutdown reported an error", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var srv *server.Server
	if cfg.Status.Enabled && !runNoStatus {
		srvCfg, err := cfg.ServerConfig()
		if err != nil {
			return err
		}
		srv, err = server.New(srvCfg, d.orch)
		if err != nil {
			return fmt.Errorf("failed to create status server: %w", err)
		}
		go func() {
			if err := srv.Start(ctx); err != nil {
				logging.Error("Status server stopped", zap.Error(err))
			}
		}()
	}

	if runTUI {
		return runWithTUI(ctx, cfg, d, srv)
	}

	printer := ui.NewPrinter(os.Stdout)
	printer.PrintHeader("Station", "zubwifi run", map[string]string{
		"Config": configPathOrDefault(),
		"Prefix": cfg.Provisioning.Prefix,
		"Store":  cfg.Store.Backend,
	})

	d.orch.SetObserver(func(s station.State, _ any) {
		if srv != nil {
			srv.Observe(s, nil)
		}
		printer.PrintState(time.Now(), s, stateDetail(d, s))
	}, nil)

	if err := start(ctx, cfg, d); err != nil {
		printer.PrintError("Failed to start", err, nil)
		return err
	}

	<-ctx.Done()
	printer.Newline()
	printer.Println("Shutting down...")
	return nil
}

// start issues the command selected by the run flags
func start(ctx context.Context, cfg *config.Config, d *device) error {
	switch {
	case runProvision:
		params, err := d.provisioningParams(cfg)
		if err != nil {
			return err
		}
		if err := d.orch.Initialize(ctx); err != nil {
			return err
		}
		return d.orch.StartProvisioning(ctx, params)
	case runSSID != "":
		return d.orch.Connect(ctx, runSSID, runPassword, runSave)
	default:
		return d.orch.ConnectStored(ctx)
	}
}

// stateDetail describes the context of the current state
func stateDetail(d *device, s station.State) string {
	switch s {
	case station.Connected:
		return fmt.Sprintf("%s (%s)", d.orch.Identifier(), d.orch.Address())
	case station.Provisioning:
		if session := d.prov.Active(); session != nil {
			return session.URL()
		}
	}
	return ""
}

func runWithTUI(ctx context.Context, cfg *config.Config, d *device, srv *server.Server) error {
	p := tea.NewProgram(ui.NewWatchModel("zubwifi: station state"), tea.WithContext(ctx))

	// Send blocks until the program reads the message; keep it off the
	// orchestrator's event loop.
	lines := make(chan ui.LineMsg, 32)
	done := make(chan struct{})
	defer close(done)
	go func() {
		for {
			select {
			case line := <-lines:
				p.Send(line)
			case <-done:
				return
			}
		}
	}()
	d.orch.SetObserver(func(s station.State, _ any) {
		if srv != nil {
			srv.Observe(s, nil)
		}
		select {
		case lines <- ui.StateLine(time.Now(), s, stateDetail(d, s)):
		default:
		}
	}, nil)

	go func() {
		if err := start(ctx, cfg, d); err != nil {
			p.Send(ui.DoneMsg{Err: err})
			return
		}
		p.Send(ui.StatusMsg("running, press q to quit"))
	}()

	model, err := p.Run()
	d.orch.SetObserver(nil, nil)
	if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return err
	}
	if m, ok := model.(ui.WatchModel); ok && m.Err() != nil {
		return m.Err()
	}
	return nil
}

func configPathOrDefault() string {
	if configPath != "" {
		return configPath
	}
	path, err := config.GetConfigPath()
	if err != nil {
		return "(unknown)"
	}
	return path
}

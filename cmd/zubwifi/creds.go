package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"github.com/muurk/zubwifi/internal/config"
	"github.com/muurk/zubwifi/internal/link"
	"github.com/muurk/zubwifi/internal/logging"
	"github.com/muurk/zubwifi/internal/station"
	"github.com/muurk/zubwifi/internal/ui"
)

// Credential command flags
var (
	credsSSID     string
	credsPassword string
	credsYes      bool
)

func init() {
	rootCmd.AddCommand(credsCmd)
	credsCmd.AddCommand(credsShowCmd)
	credsCmd.AddCommand(credsSetCmd)
	credsCmd.AddCommand(credsClearCmd)

	credsSetCmd.Flags().StringVar(&credsSSID, "ssid", "", "Network name (required)")
	credsSetCmd.Flags().StringVar(&credsPassword, "password", "", "Network password (prompted when omitted)")
	_ = credsSetCmd.MarkFlagRequired("ssid")

	credsClearCmd.Flags().BoolVarP(&credsYes, "yes", "y", false, "Skip the confirmation prompt")

	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
}

var credsCmd = &cobra.Command{
	Use:   "creds",
	Short: "Manage the stored network credential",
}

var credsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the stored network credential",
	Long: `Show the network stored in the credential store.

The password is never printed; only its length is shown.`,
	RunE: runCredsShow,
}

var credsSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Store a network credential",
	Long: `Store a network credential without connecting.

The next 'zubwifi run' connects to this network. When --password is not
given, it is read from the terminal without echo. Leave it empty for an
open network.`,
	Example: `  # Prompt for the password
  zubwifi creds set --ssid HomeNet

  # Open network
  zubwifi creds set --ssid CafeGuest --password ""`,
	RunE: runCredsSet,
}

var credsClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Erase the stored network credential",
	Long: `Erase the stored network credential.

The next 'zubwifi run' starts a SoftAP provisioning session.`,
	RunE: runCredsClear,
}

func openStore() (*config.Config, station.CredentialStore, error) {
	cfg, err := loadConfig(false)
	if err != nil {
		return nil, nil, err
	}
	if cfg.Store.Backend == config.BackendMemory {
		fmt.Fprintln(os.Stderr, "Note: store.backend is memory; credentials do not outlive a process.")
	}
	store, err := cfg.OpenStore()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open credential store: %w", err)
	}
	return cfg, store, nil
}

func runCredsShow(cmd *cobra.Command, args []string) error {
	cfg, store, err := openStore()
	if err != nil {
		return err
	}

	cred, ok, err := store.Load()
	if err != nil {
		return fmt.Errorf("failed to read credential: %w", err)
	}
	if !ok {
		fmt.Println("No network credential stored.")
		fmt.Println("\n'zubwifi run' will start provisioning. Store one with:")
		fmt.Println("  zubwifi creds set --ssid <network>")
		return nil
	}

	secret := logging.Redact(cred.Secret)
	if secret == "" {
		secret = "(open network)"
	}
	printer := ui.NewPrinter(os.Stdout)
	printer.PrintSuccess("Stored network", map[string]string{
		"SSID":      cred.Identifier,
		"Password":  secret,
		"Namespace": cfg.Store.Namespace,
	})
	return nil
}

func runCredsSet(cmd *cobra.Command, args []string) error {
	_, store, err := openStore()
	if err != nil {
		return err
	}

	password := credsPassword
	if !cmd.Flags().Changed("password") {
		password, err = readSecret(fmt.Sprintf("Password for %s: ", credsSSID))
		if err != nil {
			return err
		}
	}

	cred := station.Credential{Identifier: credsSSID, Secret: password}
	if err := cred.Validate(); err != nil {
		return err
	}
	if err := store.Save(cred); err != nil {
		return fmt.Errorf("failed to store credential: %w", err)
	}

	fmt.Printf("✓ Stored credential for %q\n", cred.Identifier)
	return nil
}

func runCredsClear(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(false)
	if err != nil {
		return err
	}
	d, err := newDevice(cfg)
	if err != nil {
		return err
	}
	defer d.orch.Close()

	ctx := cmd.Context()
	has, err := d.orch.HasStoredCredential(ctx)
	if err != nil {
		return err
	}
	if !has {
		fmt.Println("No network credential stored.")
		return nil
	}

	if !credsYes {
		store, err := cfg.OpenStore()
		if err != nil {
			return err
		}
		cred, _, err := store.Load()
		if err != nil {
			return err
		}
		if !ui.ClearCredentialConfirmation(os.Stdin, os.Stdout, cred.Identifier) {
			return nil
		}
	}

	if err := d.orch.ClearStoredCredential(ctx); err != nil {
		return err
	}
	fmt.Println("✓ Stored credential cleared")
	return nil
}

// readSecret prompts for a secret, without echo when stdin is a terminal
func readSecret(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		b, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		return string(b), nil
	}

	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the configuration file",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default configuration file",
	Long: `Write a default configuration file with one example simulated
access point. An existing file is never overwritten.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := config.CreateDefaultConfig(configPath)
		if err != nil {
			return err
		}
		fmt.Printf("✓ Wrote %s\n", path)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Long: `Print the configuration after defaults are applied. The
provisioning PoP and passphrase are redacted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(false)
		if err != nil {
			return err
		}

		shown := *cfg
		shown.Provisioning.PoP = logging.Redact(cfg.Provisioning.PoP)
		shown.Provisioning.Passphrase = logging.Redact(cfg.Provisioning.Passphrase)
		shown.Link.AccessPoints = make([]link.AccessPoint, len(cfg.Link.AccessPoints))
		for i, ap := range cfg.Link.AccessPoints {
			ap.Passphrase = logging.Redact(ap.Passphrase)
			shown.Link.AccessPoints[i] = ap
		}

		data, err := yaml.Marshal(&shown)
		if err != nil {
			return fmt.Errorf("failed to marshal config: %w", err)
		}
		fmt.Printf("# %s\n%s", configPathOrDefault(), data)
		return nil
	},
}

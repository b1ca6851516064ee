package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/muurk/zubwifi/internal/discovery"
	"github.com/muurk/zubwifi/internal/provclient"
	"github.com/muurk/zubwifi/internal/softap"
	"github.com/muurk/zubwifi/internal/station"
	"github.com/muurk/zubwifi/internal/ui"
)

// Session selection flags
var (
	deviceHost  string
	devicePort  int
	deviceName  string
	namePrefix  string
	scanTimeout int
	pop         string
	jsonOutput  bool
)

// Provision command flags
var (
	provSSID     string
	provPassword string
	provSecurity string
	provNoWait   bool
	provWait     int
)

func init() {
	rootCmd.PersistentFlags().StringVar(&deviceHost, "device", "", "Session IP address (skips discovery)")
	rootCmd.PersistentFlags().IntVar(&devicePort, "port", discovery.DefaultPort, "Session HTTP port")
	rootCmd.PersistentFlags().StringVar(&deviceName, "name", "", "SoftAP name to wait for, e.g. zubIOT_01AB0F")
	rootCmd.PersistentFlags().StringVar(&namePrefix, "prefix", "", "Only consider SoftAP names with this prefix")
	rootCmd.PersistentFlags().IntVar(&scanTimeout, "timeout", 5, "Discovery timeout in seconds")
	rootCmd.PersistentFlags().StringVar(&pop, "pop", "", "Proof of possession (default "+station.DefaultPoP+" for authenticated sessions)")

	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(provisionCmd)
	rootCmd.AddCommand(watchCmd)

	statusCmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the raw status as JSON")

	provisionCmd.Flags().StringVar(&provSSID, "ssid", "", "Network the station should join (required)")
	provisionCmd.Flags().StringVar(&provPassword, "password", "", "Network password (prompted when omitted)")
	provisionCmd.Flags().StringVar(&provSecurity, "security", "", "WPA2 or OPEN (default: inferred from the password)")
	provisionCmd.Flags().BoolVar(&provNoWait, "no-wait", false, "Return once the credential is accepted")
	provisionCmd.Flags().IntVar(&provWait, "wait", 30, "Seconds to wait for the session to end")
	_ = provisionCmd.MarkFlagRequired("ssid")
}

// scanCmd discovers provisioning sessions on the network
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan for provisioning sessions",
	Long: `Scan for zubwifi provisioning sessions using mDNS/DNS-SD discovery.

Sessions advertise themselves as ` + softap.ServiceType + ` under their
SoftAP name, with the session ID and security mode in TXT records.`,
	Example: `  # Scan for 5 seconds (default)
  zubwifi-prov scan

  # Longer scan, only default-prefixed stations
  zubwifi-prov scan --timeout 15 --prefix zubIOT_`,
	RunE: runScan,
}

// statusCmd reads a session's status
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the status of a provisioning session",
	Example: `  # Discover the session
  zubwifi-prov status

  # Address it directly
  zubwifi-prov status --device 192.168.4.1`,
	RunE: runStatus,
}

// provisionCmd sends a network credential to a session
var provisionCmd = &cobra.Command{
	Use:   "provision",
	Short: "Send a network credential to a station",
	Long: `Send a network credential to a provisioning session.

The session is found by discovery unless --device is given. Authenticated
sessions require the proof of possession (--pop). After the credential is
accepted the command follows the event stream until the session ends.`,
	Example: `  # Prompt for the password
  zubwifi-prov provision --ssid HomeNet

  # Non-default PoP on a known address
  zubwifi-prov provision --device 192.168.4.1 --pop s3cret --ssid HomeNet --password secret123

  # Open network
  zubwifi-prov provision --ssid CafeGuest --security OPEN`,
	RunE: runProvision,
}

// watchCmd follows a session's event stream
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow a provisioning session's events",
	Long: `Follow the event stream of a provisioning session until it ends
or you press q.`,
	RunE: runWatch,
}

func runScan(cmd *cobra.Command, args []string) error {
	fmt.Printf("Scanning for provisioning sessions (timeout: %ds)...\n\n", scanTimeout)

	scanner := &discovery.Scanner{
		Timeout: time.Duration(scanTimeout) * time.Second,
		Prefix:  namePrefix,
	}
	devices, err := scanner.ScanForDevicesWithContext(cmd.Context())
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}

	if len(devices) == 0 {
		fmt.Println("No provisioning sessions found.")
		printScanTroubleshooting()
		return nil
	}

	fmt.Printf("Found %d session(s):\n\n", len(devices))
	for i, d := range devices {
		fmt.Printf("%d. %s\n", i+1, d.Name)
		fmt.Printf("   Address:  %s\n", d.BaseURL())
		if d.SessionID != "" {
			fmt.Printf("   Session:  %s\n", d.SessionID)
		}
		security := "open"
		if d.Secure {
			security = "authenticated (PoP required)"
		}
		fmt.Printf("   Security: %s\n", security)
		fmt.Println()
	}
	return nil
}

func printScanTroubleshooting() {
	fmt.Println("\nTroubleshooting:")
	fmt.Println("  - Ensure the station is running and has no stored network")
	fmt.Println("  - Check that you joined the station's SoftAP")
	fmt.Println("  - Try increasing --timeout for slower networks")
	fmt.Println("  - Use --device to specify the address if discovery fails")
}

// resolveSession returns a client for the selected session and its label
func resolveSession(ctx context.Context) (*provclient.Client, string, error) {
	if deviceHost != "" {
		client := provclient.NewClient(deviceHost, devicePort)
		return client, client.BaseURL, nil
	}

	scanner := &discovery.Scanner{
		Timeout: time.Duration(scanTimeout) * time.Second,
		Prefix:  namePrefix,
	}

	var device *discovery.Device
	if deviceName != "" {
		d, err := scanner.WaitForDeviceWithContext(ctx, deviceName)
		if err != nil {
			return nil, "", err
		}
		device = d
	} else {
		devices, err := scanner.ScanForDevicesWithContext(ctx)
		if err != nil {
			return nil, "", fmt.Errorf("scan failed: %w", err)
		}
		switch len(devices) {
		case 0:
			return nil, "", fmt.Errorf("no provisioning sessions found (use --device to skip discovery)")
		case 1:
			device = devices[0]
		default:
			names := make([]string, len(devices))
			for i, d := range devices {
				names[i] = d.Name
			}
			return nil, "", fmt.Errorf("found %d sessions (%s); pick one with --name", len(devices), strings.Join(names, ", "))
		}
	}

	client := provclient.NewClientWithURL(device.BaseURL())
	if device.Secure && pop == "" {
		client.SetPoP(station.DefaultPoP)
	}
	return client, device.String(), nil
}

// applyPoP sets the PoP from the flag, or the default for authenticated sessions
func applyPoP(client *provclient.Client, status *softap.Status) {
	switch {
	case pop != "":
		client.SetPoP(pop)
	case status != nil && status.Security == station.SecurityAuthenticated.String() && client.PoP == "":
		client.SetPoP(station.DefaultPoP)
	}
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	client, label, err := resolveSession(ctx)
	if err != nil {
		return err
	}

	status, err := client.Status(ctx)
	if err != nil {
		return sessionError("Failed to read session status", err)
	}

	if jsonOutput {
		data, err := json.MarshalIndent(status, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	}

	ui.NewPrinter(os.Stdout).PrintSuccess("Provisioning session", map[string]string{
		"Session":     status.SessionID,
		"SoftAP":      status.Name,
		"Address":     label,
		"Security":    status.Security,
		"State":       status.State,
		"Provisioned": fmt.Sprintf("%t", status.Provisioned),
	})
	return nil
}

func runProvision(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	progress := ui.NewProgress("Provisioning", ui.ProvisionSteps)
	render := func() { fmt.Print(progress.Render()) }

	password := provPassword
	if !cmd.Flags().Changed("password") && !strings.EqualFold(provSecurity, softap.SecurityOpen) {
		var err error
		password, err = readSecret(fmt.Sprintf("Password for %s: ", provSSID))
		if err != nil {
			return err
		}
	}
	wifi := provclient.WiFiConfig{SSID: provSSID, Password: password, SecurityType: provSecurity}.Normalized()
	if err := wifi.Validate(); err != nil {
		return err
	}

	progress.StartStep(1, "")
	client, label, err := resolveSession(ctx)
	if err != nil {
		progress.FailStep(1, err.Error())
		render()
		return err
	}
	progress.CompleteStep(1, label)

	progress.StartStep(2, "")
	status, err := client.Status(ctx)
	if err != nil {
		progress.FailStep(2, provclient.GetShortErrorMessage(err))
		render()
		return sessionError("Failed to read session status", err)
	}
	applyPoP(client, status)
	if status.State != softap.StateAdvertising {
		progress.FailStep(2, status.State)
		render()
		return fmt.Errorf("session %s is %s and no longer accepts credentials", status.SessionID, status.State)
	}
	progress.CompleteStep(2, fmt.Sprintf("%s, %s", status.Name, status.Security))

	progress.StartStep(3, "")
	if err := client.SendCredentials(ctx, wifi); err != nil {
		progress.FailStep(3, provclient.GetShortErrorMessage(err))
		render()
		return sessionError("Credential not accepted", err)
	}
	progress.CompleteStep(3, wifi.SSID)

	if provNoWait {
		progress.SkipStep(4, "--no-wait")
		render()
		return nil
	}

	progress.StartStep(4, "")
	waitCtx, cancel := context.WithTimeout(ctx, time.Duration(provWait)*time.Second)
	defer cancel()

	var last softap.Event
	err = client.WatchEvents(waitCtx, func(ev softap.Event) bool {
		last = ev
		return ev.Kind != station.ProvisioningEnded.String()
	})
	switch {
	case err == nil:
		progress.CompleteStep(4, last.Kind)
	case errors.Is(err, context.DeadlineExceeded):
		progress.SkipStep(4, "still running")
	default:
		progress.FailStep(4, provclient.GetShortErrorMessage(err))
	}
	render()

	ui.NewPrinter(os.Stdout).PrintSuccess("Credential delivered", map[string]string{
		"Network": wifi.SSID,
		"Session": status.SessionID,
		"SoftAP":  status.Name,
	})
	fmt.Println("The station leaves its SoftAP and joins the network. Reconnect this")
	fmt.Println("machine to your own network.")
	return nil
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	client, label, err := resolveSession(ctx)
	if err != nil {
		return err
	}
	status, err := client.Status(ctx)
	if err != nil {
		return sessionError("Failed to read session status", err)
	}
	applyPoP(client, status)

	p := tea.NewProgram(ui.NewWatchModel("session "+label), tea.WithContext(ctx))
	go func() {
		p.Send(ui.StatusMsg("following events"))
		err := client.WatchEvents(ctx, func(ev softap.Event) bool {
			p.Send(eventLine(ev))
			return ev.Kind != station.ProvisioningEnded.String()
		})
		p.Send(ui.DoneMsg{Err: err})
	}()

	model, err := p.Run()
	cancel()
	if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return err
	}
	if m, ok := model.(ui.WatchModel); ok && m.Err() != nil {
		return sessionError("Event stream failed", m.Err())
	}
	return nil
}

// eventLine renders a session event for the watch view
func eventLine(ev softap.Event) ui.LineMsg {
	color := ui.MutedColor
	switch ev.Kind {
	case station.ProvisioningStarted.String():
		color = ui.InfoColor
	case station.ProvisioningCredentialsReceived.String():
		color = ui.PrimaryColor
	case station.ProvisioningCredentialsFailed.String():
		color = ui.ErrorColor
	case station.ProvisioningCredentialsSucceeded.String():
		color = ui.SuccessColor
	}

	detail := ev.SSID
	if ev.Reason != "" {
		detail = strings.TrimSpace(detail + " " + ev.Reason)
	}
	at := ev.Time
	if at.IsZero() {
		at = time.Now()
	}
	return ui.LineMsg{Time: at, Label: ev.Kind, Color: color, Detail: detail}
}

// sessionError prints an error box with a troubleshooting hint
func sessionError(title string, err error) error {
	var hints []string
	if hint := provclient.GetTroubleshootingHint(err); hint != "" {
		hints = strings.Split(hint, "\n")
	}
	ui.NewPrinter(os.Stderr).PrintError(title, err, hints)
	return err
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

// Package config manages the zubwifi daemon configuration file.
//
// The file is YAML and lives in the platform configuration directory:
//   - Linux: $XDG_CONFIG_HOME/zubwifi/config.yaml or $HOME/.config/zubwifi/config.yaml
//   - macOS: $HOME/.config/zubwifi/config.yaml
//   - Windows: %LOCALAPPDATA%\zubwifi\config.yaml
//
// It selects the credential store, the SoftAP provisioning settings, the
// reconnect policy, the status server and the simulated radio. Durations
// use Go syntax ("500ms", "30s").
//
//	version: 1
//	store:
//	    backend: file
//	    namespace: wifi_config
//	provisioning:
//	    prefix: zubIOT_
//	    security: authenticated
//	    listen: :8080
//	    advertise: true
//	reconnect:
//	    initial_interval: 500ms
//	    max_interval: 30s
//
// # Security
//
// The network credential is never written here; it lives in the
// credential store. The provisioning PoP and SoftAP passphrase are stored
// in plain text, so the file is written with mode 0600.
package config

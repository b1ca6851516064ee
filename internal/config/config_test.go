package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/muurk/zubwifi/internal/credstore"
	"github.com/muurk/zubwifi/internal/link"
	"github.com/muurk/zubwifi/internal/station"
)

func TestGetConfigDir(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("XDG override is Linux only")
	}
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg")

	dir, err := GetConfigDir()
	if err != nil {
		t.Fatalf("GetConfigDir() error = %v", err)
	}
	if dir != "/tmp/xdg/zubwifi" {
		t.Errorf("GetConfigDir() = %q, want /tmp/xdg/zubwifi", dir)
	}

	path, err := GetConfigPath()
	if err != nil {
		t.Fatalf("GetConfigPath() error = %v", err)
	}
	if filepath.Base(path) != "config.yaml" {
		t.Errorf("GetConfigPath() = %q, want config.yaml", path)
	}
}

func TestNewConfigIsValid(t *testing.T) {
	cfg := NewConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("NewConfig().Validate() error = %v", err)
	}
	if cfg.Store.Namespace != credstore.DefaultNamespace {
		t.Errorf("Store.Namespace = %q, want %q", cfg.Store.Namespace, credstore.DefaultNamespace)
	}
	if cfg.Provisioning.Prefix != station.DefaultNamePrefix {
		t.Errorf("Provisioning.Prefix = %q, want %q", cfg.Provisioning.Prefix, station.DefaultNamePrefix)
	}

	params, err := cfg.ProvisioningParams()
	if err != nil {
		t.Fatalf("ProvisioningParams() error = %v", err)
	}
	if params.Security != station.SecurityAuthenticated || params.PoP != station.DefaultPoP {
		t.Errorf("ProvisioningParams() = %+v", params)
	}
	if params.Name != "" {
		t.Errorf("Name = %q, want empty", params.Name)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"version", func(c *Config) { c.Version = 2 }, "version"},
		{"backend", func(c *Config) { c.Store.Backend = "nvs" }, "store.backend"},
		{"namespace", func(c *Config) { c.Store.Namespace = "this_is_far_too_long" }, "store.namespace"},
		{"security", func(c *Config) { c.Provisioning.Security = "wpa3" }, "provisioning.security"},
		{"passphrase", func(c *Config) { c.Provisioning.Passphrase = "short" }, "provisioning"},
		{"long prefix", func(c *Config) { c.Provisioning.Prefix = strings.Repeat("p", 40) }, "provisioning"},
		{"listen", func(c *Config) { c.Provisioning.Listen = "8080" }, "provisioning.listen"},
		{"status listen", func(c *Config) { c.Status.Listen = "localhost" }, "status.listen"},
		{"status port", func(c *Config) { c.Status.Listen = "localhost:http" }, "invalid port"},
		{"half tls", func(c *Config) { c.Status.CertPath = "cert.pem" }, "cert_path"},
		{"mac", func(c *Config) { c.Link.MAC = "nope" }, "link.mac"},
		{"ap ssid", func(c *Config) { c.Link.AccessPoints = []link.AccessPoint{{}} }, "access_points[0]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("Validate() error = nil")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Validate() error = %v, want it to mention %q", err, tt.want)
			}
		})
	}

	cfg := NewConfig()
	cfg.Status.Enabled = false
	cfg.Status.Listen = ""
	if err := cfg.Validate(); err != nil {
		t.Errorf("disabled status server should skip listen check: %v", err)
	}
}

func TestDerivedConfigs(t *testing.T) {
	cfg := NewConfig()
	cfg.Status.Listen = "0.0.0.0:9100"
	cfg.Link.AccessPoints = []link.AccessPoint{{SSID: "HomeNet", Passphrase: "hunter22"}}

	srv, err := cfg.ServerConfig()
	if err != nil {
		t.Fatalf("ServerConfig() error = %v", err)
	}
	if srv.Host != "0.0.0.0" || srv.Port != 9100 {
		t.Errorf("ServerConfig() = %+v", srv)
	}

	sim, err := cfg.SimConfig()
	if err != nil {
		t.Fatalf("SimConfig() error = %v", err)
	}
	if sim.MAC.String() != "24:0a:c4:00:00:01" || len(sim.AccessPoints) != 1 {
		t.Errorf("SimConfig() = %+v", sim)
	}

	ap := cfg.SoftAPConfig()
	if ap.ListenAddr != cfg.Provisioning.Listen || !ap.Advertise {
		t.Errorf("SoftAPConfig() = %+v", ap)
	}
}

func TestOpenStore(t *testing.T) {
	cfg := NewConfig()
	cfg.Store.Dir = t.TempDir()

	store, err := cfg.OpenStore()
	if err != nil {
		t.Fatalf("OpenStore() error = %v", err)
	}
	if _, ok := store.(*credstore.FileStore); !ok {
		t.Errorf("OpenStore() = %T, want *credstore.FileStore", store)
	}
	if err := store.Save(station.Credential{Identifier: "HomeNet", Secret: "hunter22"}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(cfg.Store.Dir, "wifi_config.yaml")); err != nil {
		t.Errorf("credential file missing: %v", err)
	}

	cfg.Store.Backend = BackendMemory
	store, err = cfg.OpenStore()
	if err != nil {
		t.Fatalf("OpenStore(memory) error = %v", err)
	}
	if _, ok, _ := store.Load(); ok {
		t.Error("fresh memory store should be empty")
	}
}

func TestLoadMissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Version != CurrentVersion {
		t.Errorf("Version = %d, want %d", cfg.Version, CurrentVersion)
	}
}

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.yaml")

	cfg := NewConfig()
	cfg.Provisioning.PoP = "s3cret"
	cfg.Reconnect.MaxAttempts = 5
	cfg.Reconnect.InitialInterval = 2 * time.Second
	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat() error = %v", err)
	}
	if runtime.GOOS != "windows" && info.Mode().Perm() != 0600 {
		t.Errorf("mode = %v, want 0600", info.Mode().Perm())
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("temporary file left behind")
	}

	data, _ := os.ReadFile(path)
	if !strings.HasPrefix(string(data), "# zubwifi configuration file") {
		t.Errorf("missing header:\n%s", data)
	}
	if !strings.Contains(string(data), "initial_interval: 2s") {
		t.Errorf("durations should be written as strings:\n%s", data)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.Provisioning.PoP != "s3cret" {
		t.Errorf("PoP = %q, want s3cret", loaded.Provisioning.PoP)
	}
	if loaded.Reconnect.MaxAttempts != 5 || loaded.Reconnect.InitialInterval != 2*time.Second {
		t.Errorf("Reconnect = %+v", loaded.Reconnect)
	}
}

func TestLoadPartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := "version: 1\nprovisioning:\n    prefix: lab_\n    listen: 127.0.0.1:9000\nreconnect:\n    initial_interval: 250ms\n"
	if err := os.WriteFile(path, []byte(data), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Provisioning.Prefix != "lab_" || cfg.Provisioning.Listen != "127.0.0.1:9000" {
		t.Errorf("Provisioning = %+v", cfg.Provisioning)
	}
	if cfg.Reconnect.InitialInterval != 250*time.Millisecond {
		t.Errorf("InitialInterval = %v, want 250ms", cfg.Reconnect.InitialInterval)
	}
	if cfg.Store.Namespace != credstore.DefaultNamespace {
		t.Errorf("Store.Namespace = %q, want default", cfg.Store.Namespace)
	}
	if !cfg.Provisioning.Advertise {
		t.Error("Advertise default lost")
	}
}

func TestLoadRejectsBadFiles(t *testing.T) {
	tests := map[string]string{
		"syntax":  "version: [1",
		"version": "version: 9\n",
		"invalid": "version: 1\nstore:\n    backend: floppy\n",
	}
	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			if err := os.WriteFile(path, []byte(data), 0600); err != nil {
				t.Fatal(err)
			}
			if _, err := Load(path); err == nil {
				t.Error("Load() error = nil")
			}
		})
	}
}

func TestCreateDefaultConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	got, err := CreateDefaultConfig(path)
	if err != nil {
		t.Fatalf("CreateDefaultConfig() error = %v", err)
	}
	if got != path {
		t.Errorf("path = %q, want %q", got, path)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(cfg.Link.AccessPoints) != 1 || cfg.Link.AccessPoints[0].SSID != "HomeNet" {
		t.Errorf("AccessPoints = %+v", cfg.Link.AccessPoints)
	}

	if _, err := CreateDefaultConfig(path); err == nil {
		t.Error("second CreateDefaultConfig() should refuse to overwrite")
	}
}

package credstore

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/muurk/zubwifi/internal/logging"
	"github.com/muurk/zubwifi/internal/station"
)

// document is the on-disk form of a credential. Pointers distinguish a
// missing key from an empty value.
type document struct {
	SSID *string `yaml:"wifi_ssid"`
	Pass *string `yaml:"wifi_pass"`
}

// FileStore keeps one credential per namespace as a YAML file.
type FileStore struct {
	dir       string
	namespace string

	mu sync.Mutex
}

// NewFileStore returns a store for namespace under dir. The directory is
// created on first Save.
func NewFileStore(dir, namespace string) (*FileStore, error) {
	if err := ValidateNamespace(namespace); err != nil {
		return nil, err
	}
	if dir == "" {
		return nil, fmt.Errorf("credential store directory is empty")
	}
	return &FileStore{dir: dir, namespace: namespace}, nil
}

// Namespace returns the store's namespace.
func (s *FileStore) Namespace() string {
	return s.namespace
}

// Path returns the file holding the credential.
func (s *FileStore) Path() string {
	return filepath.Join(s.dir, s.namespace+".yaml")
}

// Save replaces the stored credential atomically.
func (s *FileStore) Save(cred station.Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.dir, 0700); err != nil {
		return fmt.Errorf("failed to create credential directory: %w", err)
	}

	data, err := yaml.Marshal(&document{SSID: &cred.Identifier, Pass: &cred.Secret})
	if err != nil {
		return fmt.Errorf("failed to marshal credential: %w", err)
	}
	data = append([]byte("# zubwifi credential store ("+s.namespace+")\n"), data...)

	// Write to a temporary file, then rename over the old one
	path := s.Path()
	tmpPath := path + ".tmp"
	if err := writeSynced(tmpPath, data); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write temporary credential file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to save credential file: %w", err)
	}
	if err := syncDir(s.dir); err != nil {
		return fmt.Errorf("failed to sync credential directory: %w", err)
	}

	logging.Debug("Credential saved",
		zap.String("namespace", s.namespace),
		zap.String("ssid", cred.Identifier),
		zap.String("path", path),
	)
	return nil
}

// writeSynced creates path with mode 0600, replacing any leftover file, and
// flushes data to disk before returning.
func writeSynced(path string, data []byte) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// syncDir makes a rename inside dir durable.
func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer d.Close()
	return d.Sync()
}

// Load returns the stored credential. A missing file or a document without
// both keys reports ok=false.
func (s *FileStore) Load() (station.Credential, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.Path())
	if os.IsNotExist(err) {
		return station.Credential{}, false, nil
	}
	if err != nil {
		return station.Credential{}, false, fmt.Errorf("failed to read credential file: %w", err)
	}

	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return station.Credential{}, false, fmt.Errorf("failed to parse credential file: %w", err)
	}
	if doc.SSID == nil || doc.Pass == nil || *doc.SSID == "" {
		logging.Debug("Incomplete credential ignored", zap.String("namespace", s.namespace))
		return station.Credential{}, false, nil
	}

	return station.Credential{Identifier: *doc.SSID, Secret: *doc.Pass}, true, nil
}

// Clear removes the stored credential. Clearing an empty store succeeds.
func (s *FileStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.Path()); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to erase credential file: %w", err)
	}
	logging.Debug("Credential erased", zap.String("namespace", s.namespace))
	return nil
}

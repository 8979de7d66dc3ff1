// internal/auth/store.go
package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/adrg/xdg"
	"github.com/law-makers/forumgrep/pkg/models"
	"github.com/zalando/go-keyring"
)

const (
	// KeyringService is the service name for keyring storage
	KeyringService = "forumgrep"
	// fallbackSubdir holds credential files under the XDG data home when the
	// keyring is unavailable
	fallbackSubdir = "forumgrep/credentials"
	manifestKey    = "_manifest"
)

// ErrNotFound is returned when no credentials are stored for a site.
var ErrNotFound = errors.New("no stored credentials")

// ErrExpired is returned when stored cookies are past their expiry.
var ErrExpired = errors.New("stored credentials expired")

// Store keeps per-site credentials in the OS keyring, or in 0600 JSON files
// where no keyring is reachable (containers, CI).
type Store struct {
	service string
	dir     string

	once    sync.Once
	useFile bool
	force   bool
}

// StoreOptions configures a Store. Zero values use the keyring service
// "forumgrep" and the XDG data directory.
type StoreOptions struct {
	Service string
	Dir     string
	// FileOnly skips the keyring probe and always uses files
	FileOnly bool
}

// NewStore creates a credential store
func NewStore(opts StoreOptions) *Store {
	if opts.Service == "" {
		opts.Service = KeyringService
	}
	if opts.Dir == "" {
		opts.Dir = filepath.Join(xdg.DataHome, fallbackSubdir)
	}
	return &Store{service: opts.Service, dir: opts.Dir, force: opts.FileOnly}
}

// fileBased reports whether the store falls back to files. The keyring is
// probed once.
func (s *Store) fileBased() bool {
	s.once.Do(func() {
		if s.force || os.Getenv("CODESPACES") != "" || os.Getenv("CI") != "" {
			s.useFile = true
			return
		}

		testKey := "_test_keyring_access_"
		if err := keyring.Set(s.service, testKey, "test"); err != nil {
			s.useFile = true
			return
		}
		_ = keyring.Delete(s.service, testKey)
	})
	return s.useFile
}

// Backend names the storage in use
func (s *Store) Backend() string {
	if s.fileBased() {
		return "file:" + s.dir
	}
	return "keyring:" + s.service
}

func (s *Store) path(site string) (string, error) {
	if err := os.MkdirAll(s.dir, 0700); err != nil {
		return "", err
	}
	return filepath.Join(s.dir, site+".json"), nil
}

// Save stores creds under creds.Site, replacing what was there
func (s *Store) Save(creds models.Credentials) error {
	if creds.Site == "" {
		return fmt.Errorf("site cannot be empty")
	}
	if creds.CreatedAt.IsZero() {
		creds.CreatedAt = time.Now()
	}

	data, err := json.Marshal(creds)
	if err != nil {
		return fmt.Errorf("failed to serialize credentials: %w", err)
	}

	if s.fileBased() {
		path, err := s.path(creds.Site)
		if err != nil {
			return fmt.Errorf("failed to get credentials path: %w", err)
		}
		if err := os.WriteFile(path, data, 0600); err != nil {
			return fmt.Errorf("failed to save credentials file: %w", err)
		}
		return nil
	}

	if err := keyring.Set(s.service, creds.Site, string(data)); err != nil {
		return fmt.Errorf("failed to save to keyring: %w", err)
	}
	return s.updateManifest(creds.Site, true)
}

// Load returns the credentials stored for site. Expired credentials are
// reported as ErrExpired.
func (s *Store) Load(site string) (models.Credentials, error) {
	creds, err := s.Inspect(site)
	if err != nil {
		return models.Credentials{}, err
	}
	if creds.Expired(time.Now()) {
		return models.Credentials{}, fmt.Errorf("%w for %s", ErrExpired, site)
	}
	return creds, nil
}

// Inspect returns the credentials stored for site without checking expiry.
func (s *Store) Inspect(site string) (models.Credentials, error) {
	if site == "" {
		return models.Credentials{}, fmt.Errorf("site cannot be empty")
	}

	var data []byte
	if s.fileBased() {
		path, err := s.path(site)
		if err != nil {
			return models.Credentials{}, fmt.Errorf("failed to get credentials path: %w", err)
		}
		data, err = os.ReadFile(path)
		if errors.Is(err, os.ErrNotExist) {
			return models.Credentials{}, fmt.Errorf("%w for %s", ErrNotFound, site)
		}
		if err != nil {
			return models.Credentials{}, fmt.Errorf("failed to load credentials file: %w", err)
		}
	} else {
		secret, err := keyring.Get(s.service, site)
		if errors.Is(err, keyring.ErrNotFound) {
			return models.Credentials{}, fmt.Errorf("%w for %s", ErrNotFound, site)
		}
		if err != nil {
			return models.Credentials{}, fmt.Errorf("failed to load from keyring: %w", err)
		}
		data = []byte(secret)
	}

	var creds models.Credentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return models.Credentials{}, fmt.Errorf("failed to deserialize credentials: %w", err)
	}
	return creds, nil
}

// Delete removes the credentials stored for site
func (s *Store) Delete(site string) error {
	if site == "" {
		return fmt.Errorf("site cannot be empty")
	}

	if s.fileBased() {
		path, err := s.path(site)
		if err != nil {
			return fmt.Errorf("failed to get credentials path: %w", err)
		}
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to delete credentials file: %w", err)
		}
		return nil
	}

	if err := keyring.Delete(s.service, site); err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("failed to delete from keyring: %w", err)
	}
	return s.updateManifest(site, false)
}

// List returns the sites with stored credentials
func (s *Store) List() ([]string, error) {
	if s.fileBased() {
		entries, err := os.ReadDir(s.dir)
		if err != nil {
			if os.IsNotExist(err) {
				return []string{}, nil
			}
			return nil, err
		}

		var sites []string
		for _, entry := range entries {
			if !entry.IsDir() && filepath.Ext(entry.Name()) == ".json" {
				sites = append(sites, strings.TrimSuffix(entry.Name(), ".json"))
			}
		}
		return sites, nil
	}

	manifest, err := keyring.Get(s.service, manifestKey)
	if err != nil {
		// No manifest exists yet
		return []string{}, nil
	}

	var sites []string
	if err := json.Unmarshal([]byte(manifest), &sites); err != nil {
		return nil, fmt.Errorf("failed to deserialize manifest: %w", err)
	}
	return sites, nil
}

// updateManifest adds or removes a site from the keyring manifest, which
// exists because keyrings cannot enumerate entries
func (s *Store) updateManifest(site string, add bool) error {
	sites, _ := s.List()

	if add {
		if !slices.Contains(sites, site) {
			sites = append(sites, site)
		}
	} else {
		sites = slices.DeleteFunc(sites, func(x string) bool { return x == site })
	}

	data, err := json.Marshal(sites)
	if err != nil {
		return err
	}
	return keyring.Set(s.service, manifestKey, string(data))
}

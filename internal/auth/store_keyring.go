package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/zalando/go-keyring"
)

// KeyringService is the service name sessions are stored under.
const KeyringService = "iqscrape"

const manifestKey = "_manifest"

// keyringAvailable writes and removes a probe entry. CI and Codespaces never
// have a usable keyring.
func keyringAvailable(service string) bool {
	if os.Getenv("CODESPACES") != "" || os.Getenv("CI") != "" {
		return false
	}
	const testKey = "_test_keyring_access_"
	if err := keyring.Set(service, testKey, "test"); err != nil {
		return false
	}
	_ = keyring.Delete(service, testKey)
	return true
}

// KeyringStore keeps sessions in the OS keyring. The keyring cannot be
// enumerated, so a manifest entry tracks the stored names.
type KeyringStore struct {
	Service string

	mu sync.Mutex
}

func NewKeyringStore(service string) *KeyringStore {
	return &KeyringStore{Service: service}
}

func (k *KeyringStore) Load(name string) (*Session, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	data, err := keyring.Get(k.Service, name)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return nil, ErrNoSession
		}
		return nil, fmt.Errorf("failed to load from keyring: %w", err)
	}

	var s Session
	if err := json.Unmarshal([]byte(data), &s); err != nil {
		return nil, fmt.Errorf("failed to deserialize session: %w", err)
	}
	return &s, nil
}

func (k *KeyringStore) Save(s *Session) error {
	if err := ValidateName(s.Name); err != nil {
		return err
	}
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to serialize session: %w", err)
	}

	k.mu.Lock()
	defer k.mu.Unlock()
	if err := keyring.Set(k.Service, s.Name, string(data)); err != nil {
		return fmt.Errorf("failed to save to keyring: %w", err)
	}
	return k.updateManifest(s.Name, true)
}

func (k *KeyringStore) Delete(name string) error {
	if err := ValidateName(name); err != nil {
		return err
	}

	k.mu.Lock()
	defer k.mu.Unlock()
	if err := keyring.Delete(k.Service, name); err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("failed to delete from keyring: %w", err)
	}
	return k.updateManifest(name, false)
}

func (k *KeyringStore) List() ([]string, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.manifest()
}

func (k *KeyringStore) manifest() ([]string, error) {
	data, err := keyring.Get(k.Service, manifestKey)
	if err != nil {
		// No manifest exists yet
		return []string{}, nil
	}
	var sessions []string
	if err := json.Unmarshal([]byte(data), &sessions); err != nil {
		return nil, fmt.Errorf("failed to deserialize manifest: %w", err)
	}
	return sessions, nil
}

// updateManifest adds or removes a session name. Caller holds mu.
func (k *KeyringStore) updateManifest(name string, add bool) error {
	sessions, err := k.manifest()
	if err != nil {
		sessions = []string{}
	}

	kept := []string{}
	for _, s := range sessions {
		if s != name {
			kept = append(kept, s)
		}
	}
	if add {
		kept = append(kept, name)
	}
	sort.Strings(kept)

	data, err := json.Marshal(kept)
	if err != nil {
		return err
	}
	if err := keyring.Set(k.Service, manifestKey, string(data)); err != nil {
		return fmt.Errorf("failed to update keyring manifest: %w", err)
	}
	return nil
}

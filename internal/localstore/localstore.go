// Package localstore is the keyed string storage used as the anonymous-mode
// backing store and the always-present fallback for the sync service.
package localstore

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// Namespaced keys, one per concern.
const (
	KeyPlan        = "nexus_plan"
	KeyTrialExpiry = "nexus_trial_expiry"
	KeyUsedTrials  = "nexus_used_trials"
	KeyCredits     = "nexus_credits"
	KeyImageCount  = "nexus_image_count"
	KeyCustomPlan  = "nexus_custom_plan"
	KeySessions    = "nexus_v2_sessions"
	KeyUsers       = "nexus_cloud_users"
	KeyDataPrefix  = "nexus_data_" // + user id
)

// Store is a flat key/value string store persisted as a single JSON file.
type Store struct {
	mu   sync.Mutex
	path string
	data map[string]string
}

func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	s := &Store{
		path: filepath.Join(dir, "localstore.json"),
		data: make(map[string]string),
	}

	raw, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(raw, &s.data); err != nil {
		// Corrupt store starts over rather than blocking startup.
		s.data = make(map[string]string)
	}
	return s, nil
}

func (s *Store) Get(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.data[key]
	return v, ok
}

func (s *Store) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
	return s.flush()
}

// Keys lists stored keys with the given prefix.
func (s *Store) Keys(prefix string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var keys []string
	for k := range s.data {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

func (s *Store) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return s.flush()
}

// flush writes the store atomically. Callers hold the lock.
func (s *Store) flush() error {
	raw, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

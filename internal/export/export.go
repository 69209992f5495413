// Package export renders chat sessions into downloadable markdown archives.
// Vault-eligible plans get their archives sealed with the vault key.
package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"nexus.chat/internal/chat"
	"nexus.chat/internal/entitlement"
	"nexus.chat/internal/storage"
	"nexus.chat/internal/vault"
)

var ErrNotAllowed = errors.New("export: plan does not include export")

type Service struct {
	store storage.ObjectStore
	keys  vault.KeyManager // nil disables sealing
}

func NewService(store storage.ObjectStore, keys vault.KeyManager) *Service {
	return &Service{store: store, keys: keys}
}

// Export renders and stores one session, returning the archive key.
func (s *Service) Export(ctx context.Context, userID string, session chat.Session, ep entitlement.EffectivePlan) (string, error) {
	if !ep.CanExport {
		return "", ErrNotAllowed
	}

	payload := []byte(Render(session))
	contentType := "text/markdown"
	suffix := ".md"

	if ep.VaultEligible && s.keys != nil {
		sealed, err := s.keys.Encrypt(payload)
		if err != nil {
			return "", err
		}
		payload = sealed
		contentType = "application/octet-stream"
		suffix = ".md.sealed"
	}

	key := fmt.Sprintf("%s/%s-%d%s", userID, session.ID, time.Now().UnixMilli(), suffix)
	if err := s.store.Put(ctx, key, bytes.NewReader(payload), int64(len(payload)), contentType); err != nil {
		return "", err
	}
	log.Info().Str("user", userID).Str("key", key).Msg("export: archive stored")
	return key, nil
}

// Fetch returns the archive plaintext, opening sealed archives transparently.
func (s *Service) Fetch(ctx context.Context, key string) ([]byte, error) {
	obj, err := s.store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, err
	}

	if strings.HasSuffix(key, ".sealed") {
		if s.keys == nil {
			return nil, vault.ErrNoKey
		}
		return s.keys.Decrypt(data)
	}
	return data, nil
}

// Render formats a session as a markdown transcript.
func Render(session chat.Session) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n\n", session.Title)
	fmt.Fprintf(&b, "Model: %s  \nExported: %s\n\n", session.ModelID, time.Now().UTC().Format(time.RFC3339))

	for _, msg := range session.Messages {
		who := "You"
		if msg.Role == chat.RoleModel {
			who = "Nexus"
		}
		fmt.Fprintf(&b, "## %s\n\n%s\n\n", who, msg.Text)
		for _, a := range msg.Attachments {
			fmt.Fprintf(&b, "*[attachment: %s]*\n\n", a.MimeType)
		}
	}
	return b.String()
}

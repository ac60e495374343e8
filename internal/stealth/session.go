package stealth

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/chernistry/tavily/internal/metadata"
	"github.com/chernistry/tavily/pkg/fileutil"
)

/*
Session store.

A session is persisted as one directory per session id holding the storage
snapshot and the device profile. Reload restores both: the profile is reused
verbatim so the fingerprint never drifts within a session.

Corrupt or missing files fall back to a fresh session; that is a warning,
never an error. Cookie values live only in the snapshot files — they are
never recorded through the metadata sink.
*/

const (
	profileFileName = "profile.json"
	storageFileName = "storage_state.json"
)

type SessionStore struct {
	metadataSink metadata.MetadataSink
	baseDir      string
}

func NewSessionStore(metadataSink metadata.MetadataSink, baseDir string) SessionStore {
	return SessionStore{
		metadataSink: metadataSink,
		baseDir:      baseDir,
	}
}

// Load restores the session for id. A missing or unreadable session yields
// a fresh one: a newly selected profile and empty storage.
func (s *SessionStore) Load(id string, region string) Session {
	dir := s.sessionDir(id)

	profile, profileErr := readJSON[DeviceProfile](filepath.Join(dir, profileFileName))
	storage, storageErr := readJSON[StorageState](filepath.Join(dir, storageFileName))

	if profileErr != nil {
		if !os.IsNotExist(profileErr) {
			s.metadataSink.RecordWarning(
				"stealth",
				"session unreadable, starting fresh",
				[]metadata.Attribute{
					metadata.NewAttr(metadata.AttrSessionID, id),
					metadata.NewAttr(metadata.AttrMessage, profileErr.Error()),
				},
			)
		}
		return Session{
			ID:      id,
			Profile: SelectProfile(id, region),
		}
	}

	if storageErr != nil && !os.IsNotExist(storageErr) {
		s.metadataSink.RecordWarning(
			"stealth",
			"session storage unreadable, keeping profile with empty storage",
			[]metadata.Attribute{
				metadata.NewAttr(metadata.AttrSessionID, id),
			},
		)
		storage = StorageState{}
	}

	return Session{
		ID:      id,
		Profile: profile,
		Storage: storage,
	}
}

// Save persists the session atomically: profile and storage snapshot are
// each written with write-then-rename.
func (s *SessionStore) Save(session Session) *SessionError {
	dir := s.sessionDir(session.ID)
	if err := fileutil.EnsureDir(dir); err != nil {
		return &SessionError{
			Message:   err.Error(),
			Retryable: false,
			Cause:     ErrCauseSessionWrite,
		}
	}

	if err := writeJSON(filepath.Join(dir, profileFileName), session.Profile); err != nil {
		return err
	}
	if err := writeJSON(filepath.Join(dir, storageFileName), session.Storage); err != nil {
		return err
	}

	s.metadataSink.RecordArtifact(
		metadata.ArtifactSession,
		dir,
		[]metadata.Attribute{
			metadata.NewAttr(metadata.AttrSessionID, session.ID),
		},
	)
	return nil
}

func (s *SessionStore) sessionDir(id string) string {
	return filepath.Join(s.baseDir, id)
}

func readJSON[T any](path string) (T, error) {
	var out T
	data, err := os.ReadFile(path)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return out, err
	}
	return out, nil
}

func writeJSON(path string, value any) *SessionError {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return &SessionError{
			Message:   fmt.Sprintf("%v", err),
			Retryable: false,
			Cause:     ErrCauseSessionWrite,
		}
	}
	data = append(data, '\n')
	if writeErr := fileutil.WriteFileAtomic(path, data, 0600); writeErr != nil {
		return &SessionError{
			Message:   writeErr.Error(),
			Retryable: true,
			Cause:     ErrCauseSessionWrite,
		}
	}
	return nil
}

// Touch updates the session's save timestamp. Used when only storage
// changed.
func (session *Session) Touch() {
	session.SavedAt = time.Now()
}

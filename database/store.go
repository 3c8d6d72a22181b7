// Package database persists the booking aggregates as JSON files with
// backup rotation, atomic writes and checksum sidecars.
package database

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"campsite/config"
	"campsite/models"
	"campsite/utils"
)

// ErrChecksumMismatch is returned when a data file does not match its
// checksum sidecar. The file must not be trusted.
var ErrChecksumMismatch = errors.New("checksum mismatch")

// Store reads and writes the live and archive aggregates.
type Store struct {
	LivePath    string
	ArchivePath string
	MaxBackups  int
	Mappings    *config.FieldMappings
	Location    *time.Location
}

// NewStore builds a store over the two data file paths.
func NewStore(livePath, archivePath string, maxBackups int, mappings *config.FieldMappings, loc *time.Location) *Store {
	if maxBackups < 1 {
		maxBackups = 1
	}
	return &Store{
		LivePath:    livePath,
		ArchivePath: archivePath,
		MaxBackups:  maxBackups,
		Mappings:    mappings,
		Location:    loc,
	}
}

// SaveLive persists the live aggregate.
func (s *Store) SaveLive(data *models.LiveData) error {
	return s.saveJSON(data, s.LivePath)
}

// SaveArchive persists the archive aggregate.
func (s *Store) SaveArchive(data *models.ArchiveData) error {
	return s.saveJSON(data, s.ArchivePath)
}

// LoadLive loads, migrates and validates the live aggregate. A missing file
// yields an empty aggregate. Checksum and validation failures are hard
// errors; the caller must not continue with a half-trusted aggregate.
func (s *Store) LoadLive(verifyChecksum bool) (*models.LiveData, error) {
	raw, err := s.readVerified(s.LivePath, verifyChecksum)
	if err != nil {
		return nil, fmt.Errorf("LoadLive: %w", err)
	}
	if raw == nil {
		return models.NewLiveData(time.Now().In(s.Location)), nil
	}

	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("LoadLive: parse %s: %w", s.LivePath, err)
	}

	doc, err = migrateLiveDocument(doc, s.Mappings)
	if err != nil {
		return nil, fmt.Errorf("LoadLive: migrate %s: %w", s.LivePath, err)
	}

	var data models.LiveData
	if err := decodeDocument(doc, &data); err != nil {
		return nil, fmt.Errorf("LoadLive: decode %s: %w", s.LivePath, err)
	}
	data.Normalize(s.Location)
	if err := data.Validate(); err != nil {
		return nil, fmt.Errorf("LoadLive: validate %s: %w", s.LivePath, err)
	}
	return &data, nil
}

// LoadArchive loads and validates the archive aggregate. A missing file
// yields an empty aggregate.
func (s *Store) LoadArchive(verifyChecksum bool) (*models.ArchiveData, error) {
	raw, err := s.readVerified(s.ArchivePath, verifyChecksum)
	if err != nil {
		return nil, fmt.Errorf("LoadArchive: %w", err)
	}
	if raw == nil {
		return models.NewArchiveData(time.Now().In(s.Location)), nil
	}

	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("LoadArchive: parse %s: %w", s.ArchivePath, err)
	}

	if err := checkArchiveVersion(doc); err != nil {
		return nil, fmt.Errorf("LoadArchive: %s: %w", s.ArchivePath, err)
	}

	var data models.ArchiveData
	if err := decodeDocument(doc, &data); err != nil {
		return nil, fmt.Errorf("LoadArchive: decode %s: %w", s.ArchivePath, err)
	}
	data.Normalize(s.Location)
	if err := data.Validate(); err != nil {
		return nil, fmt.Errorf("LoadArchive: validate %s: %w", s.ArchivePath, err)
	}
	return &data, nil
}

// readVerified reads a data file, optionally checking its checksum sidecar
// first. Returns nil bytes for a missing file.
func (s *Store) readVerified(path string, verifyChecksum bool) ([]byte, error) {
	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if verifyChecksum {
		ok, err := checksumMatches(path, raw)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("%s: %w", path, ErrChecksumMismatch)
		}
	}
	return raw, nil
}

// saveJSON rotates a backup of the existing file, writes the new content via
// a temp file and atomic rename, then writes the checksum sidecar.
func (s *Store) saveJSON(data any, path string) error {
	logger := utils.GetLogger()

	if _, err := os.Stat(path); err == nil {
		// Backup rotation is best-effort: a failure must not block the save.
		if err := backupWithRotation(path, s.MaxBackups); err != nil {
			logger.Warn("Backup rotation failed", zap.String("path", path), zap.Error(err))
		}
	}

	serialized, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("saveJSON: marshal for %s: %w", path, err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("saveJSON: create dir for %s: %w", path, err)
	}
	if err := atomicWrite(path, serialized); err != nil {
		return fmt.Errorf("saveJSON: write %s: %w", path, err)
	}
	if err := writeChecksum(path, serialized); err != nil {
		return fmt.Errorf("saveJSON: checksum for %s: %w", path, err)
	}
	return nil
}

// atomicWrite writes content to a temp file in the target directory and
// renames it over the target, leaving no partial-write window.
func atomicWrite(path string, content []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+"-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, path)
}

// checksumPath returns the sidecar path for a data file, e.g.
// bookings.json -> bookings.sha256.
func checksumPath(path string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + ".sha256"
}

func writeChecksum(path string, content []byte) error {
	digest := sha256.Sum256(content)
	return os.WriteFile(checksumPath(path), []byte(hex.EncodeToString(digest[:])), 0o644)
}

// checksumMatches recomputes the digest of content and compares it against
// the sidecar. A missing sidecar passes.
func checksumMatches(path string, content []byte) (bool, error) {
	stored, err := os.ReadFile(checksumPath(path))
	if errors.Is(err, os.ErrNotExist) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	digest := sha256.Sum256(content)
	return hex.EncodeToString(digest[:]) == strings.TrimSpace(string(stored)), nil
}

// backupWithRotation copies the current file to a timestamped sibling and
// prunes all but the newest MaxBackups copies.
func backupWithRotation(path string, maxBackups int) error {
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	ext := filepath.Ext(path)
	stamp := time.Now().Format("20060102-150405")
	backupPath := filepath.Join(filepath.Dir(path), fmt.Sprintf("%s-%s%s", stem, stamp, ext))

	content, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := os.WriteFile(backupPath, content, 0o644); err != nil {
		return err
	}

	pattern := filepath.Join(filepath.Dir(path), fmt.Sprintf("%s-*%s", stem, ext))
	backups, err := filepath.Glob(pattern)
	if err != nil {
		return err
	}

	sort.Slice(backups, func(i, j int) bool {
		fi, errI := os.Stat(backups[i])
		fj, errJ := os.Stat(backups[j])
		if errI != nil || errJ != nil {
			return backups[i] > backups[j]
		}
		return fi.ModTime().After(fj.ModTime())
	})

	for _, old := range backups[min(maxBackups, len(backups)):] {
		if err := os.Remove(old); err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
	}
	return nil
}

// decodeDocument round-trips a raw document through JSON into a typed value.
func decodeDocument(doc map[string]any, out any) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

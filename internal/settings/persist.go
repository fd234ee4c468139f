package settings

import (
	"encoding/json"
	"os"
)

// CurrentVersion is bumped whenever the persisted envelope's shape
// changes incompatibly, mirroring the original firmware's
// SETTINGSVERSION byte at EEPROM offset 300.
const CurrentVersion = 1

// Store abstracts the byte-oriented backing store settings are read from
// and written to — an EEPROM on real hardware, a file or in-memory blob
// elsewhere. This interface is persistence's entire surface; callers
// never see the byte layout underneath it.
type Store interface {
	Load() ([]byte, error)
	Save([]byte) error
}

// envelope is the versioned wire format. The original's byte-offset
// layout (version@300, steps@310, settings@340) need not be preserved,
// but the *scheme* — a version byte plus a validity marker, checked
// before trusting the payload — must be.
type envelope struct {
	Version uint8     `json:"version"`
	Valid   bool      `json:"valid"`
	Steps   [3]int64  `json:"steps"`
	Values  Settings  `json:"settings"`
}

// Persist marshals settings and per-axis step counters into the
// versioned envelope and writes it to store. Its caller is the
// supervisor's save when all axes become detached; a $<n>= settings
// write does not call it.
func Persist(store Store, s Settings, steps [3]int64) error {
	env := envelope{Version: CurrentVersion, Valid: true, Steps: steps, Values: s}
	blob, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return store.Save(blob)
}

// Load reads the envelope back. oldSettings is true when the stored
// envelope is absent, malformed, or carries a version older than
// CurrentVersion — the boot-time condition that locks the system to
// settings-only mode (STATE_OLD_SETTINGS) until the four calibration
// keys in OldSettingsUnlockIndices are rewritten.
func Load(store Store) (s Settings, steps [3]int64, oldSettings bool, err error) {
	blob, err := store.Load()
	if err != nil {
		return Default(), steps, true, err
	}

	var env envelope
	if unmarshalErr := json.Unmarshal(blob, &env); unmarshalErr != nil {
		return Default(), steps, true, nil
	}
	if !env.Valid || env.Version < CurrentVersion {
		return Default(), steps, true, nil
	}
	return env.Values, env.Steps, false, nil
}

// MemStore is an in-memory Store, used by tests and the host CLI's
// simulate mode in place of real EEPROM or a file on disk.
type MemStore struct {
	blob []byte
}

// Load returns the last-saved blob, or an error if nothing has been
// saved yet (the boot-time "no valid step data" condition).
func (m *MemStore) Load() ([]byte, error) {
	if m.blob == nil {
		return nil, errNoData
	}
	return m.blob, nil
}

// Save stores blob, replacing any previous contents.
func (m *MemStore) Save(blob []byte) error {
	m.blob = append([]byte(nil), blob...)
	return nil
}

var errNoData = &noDataError{}

type noDataError struct{}

func (*noDataError) Error() string { return "settings: no data saved yet" }

// FileStore is a Store backed by a single file on disk, used by the host
// CLI in place of the real hardware's EEPROM. Grounded on
// standalone/config/config.go's JSON-file pattern: a plain os.ReadFile /
// os.WriteFile pair around the JSON envelope, no directory scanning or
// atomic-rename dance — the original EEPROM write path isn't atomic
// either.
type FileStore struct {
	Path string
}

// Load reads the envelope file. A missing file reports errNoData so Load
// falls back to Default(), matching a first-boot EEPROM with no valid
// data written yet.
func (f *FileStore) Load() ([]byte, error) {
	blob, err := os.ReadFile(f.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errNoData
		}
		return nil, err
	}
	return blob, nil
}

// Save writes blob to Path, creating it if necessary.
func (f *FileStore) Save(blob []byte) error {
	return os.WriteFile(f.Path, blob, 0o644)
}

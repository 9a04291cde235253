// Package store persists, per video device, the set of XU controls known
// to enable its IR emitter (the savelist) and the set known to be unsafe
// to retry (the blacklist). The on-disk format is YAML, keyed by a
// stable /dev/v4l/by-id path when one resolves to the device.
package store

import (
	"os"
	"path/filepath"
	"sort"

	pkgerrors "github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/irutil/ir-emitter-enabler/internal/uvc"
)

// v4lByIDDir holds the stable symlinks this package prefers as storage keys.
const v4lByIDDir = "/dev/v4l/by-id"

// SavedControl is a control value known to enable an emitter.
type SavedControl struct {
	Unit     uint8  `yaml:"unit"`
	Selector uint8  `yaml:"selector"`
	Control  []byte `yaml:"control"`
}

// BlackControl is a control address that must never be tried again.
type BlackControl struct {
	Unit     uint8 `yaml:"unit"`
	Selector uint8 `yaml:"selector"`
}

type onDiskConfiguration struct {
	Savelist  []SavedControl `yaml:"savelist,omitempty"`
	Blacklist []BlackControl `yaml:"blacklist,omitempty"`
}

// onDisk is the literal top-level schema: a map from stable device path to
// its configuration. There is no wrapping key.
type onDisk map[string]onDiskConfiguration

// Store is an injected handle to the on-disk configuration file. It is
// never a package-level singleton, so tests can point it at a temp dir.
type Store struct {
	Path string
}

// NewStore returns a Store backed by path, expanding shell-style
// environment variables (e.g. "$HOME/.config/...") as the original CLI's
// build-time CONFIG/LOG variables are expected to contain.
func NewStore(path string) *Store {
	return &Store{Path: os.ExpandEnv(path)}
}

func (s *Store) load() (onDisk, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return onDisk{}, nil
		}
		return nil, pkgerrors.Wrapf(err, "read configuration store %s", s.Path)
	}
	var all onDisk
	if err := yaml.Unmarshal(data, &all); err != nil {
		return nil, pkgerrors.Wrapf(err, "parse configuration store %s", s.Path)
	}
	if all == nil {
		all = onDisk{}
	}
	return all, nil
}

func (s *Store) saveAll(all onDisk) error {
	if err := os.MkdirAll(filepath.Dir(s.Path), 0o755); err != nil {
		return pkgerrors.Wrapf(err, "create configuration directory for %s", s.Path)
	}
	data, err := yaml.Marshal(all)
	if err != nil {
		return pkgerrors.Wrap(err, "marshal configuration store")
	}
	if err := os.WriteFile(s.Path, data, 0o644); err != nil {
		return pkgerrors.Wrapf(err, "write configuration store %s", s.Path)
	}
	return nil
}

// Print renders the configuration file's raw content prefixed with a
// "# <path>" header, as required by the --config CLI flag.
func (s *Store) Print() (string, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return "# " + s.Path + "\n\n", nil
		}
		return "", pkgerrors.Wrapf(err, "read configuration store %s", s.Path)
	}
	return "# " + s.Path + "\n\n" + string(data), nil
}

// Devices returns the stable paths currently present in the store.
func (s *Store) Devices() ([]string, error) {
	all, err := s.load()
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(all))
	for k := range all {
		out = append(out, k)
	}
	sort.Strings(out)
	return out, nil
}

// ResolveStablePath canonicalizes device, then looks for the first entry
// under /dev/v4l/by-id whose canonical target equals it. If none
// resolves, device is returned verbatim.
func ResolveStablePath(device string) string {
	canon, err := filepath.EvalSymlinks(device)
	if err != nil {
		return device
	}

	entries, err := os.ReadDir(v4lByIDDir)
	if err != nil {
		return device
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)

	for _, name := range names {
		full := filepath.Join(v4lByIDDir, name)
		target, err := filepath.EvalSymlinks(full)
		if err != nil {
			continue
		}
		if target == canon {
			return full
		}
	}
	return device
}

// Configuration is the per-device savelist/blacklist record. It is
// obtained from New or Load and always knows the Store it belongs to, so
// Save can perform the required read-modify-write overwrite.
type Configuration struct {
	store     *Store
	device    string
	savelist  []SavedControl
	blacklist []BlackControl
}

// New resolves device to its stable path and loads any existing record
// for it, falling back to an empty Configuration if none exists yet.
func New(s *Store, device string) (*Configuration, error) {
	stable := ResolveStablePath(device)
	all, err := s.load()
	if err != nil {
		return nil, err
	}
	disk := all[stable]
	return &Configuration{
		store:     s,
		device:    stable,
		savelist:  disk.Savelist,
		blacklist: disk.Blacklist,
	}, nil
}

// Load returns the existing Configuration for device, erroring if the
// store has no entry for its stable path.
func Load(s *Store, device string) (*Configuration, error) {
	stable := ResolveStablePath(device)
	all, err := s.load()
	if err != nil {
		return nil, err
	}
	disk, ok := all[stable]
	if !ok {
		return nil, pkgerrors.Errorf("no configuration found for device %s", stable)
	}
	return &Configuration{store: s, device: stable, savelist: disk.Savelist, blacklist: disk.Blacklist}, nil
}

// Device returns the stable path this Configuration is keyed by.
func (c *Configuration) Device() string { return c.device }

// Savelist returns the raw saved-control records.
func (c *Configuration) Savelist() []SavedControl { return append([]SavedControl(nil), c.savelist...) }

// Blacklist returns the raw blacklisted-address records.
func (c *Configuration) Blacklist() []BlackControl {
	return append([]BlackControl(nil), c.blacklist...)
}

// GetSavelist reconstructs XuControls from the saved records, with all
// optional vectors absent and writable assumed true (they were writable
// when saved).
func (c *Configuration) GetSavelist() ([]uvc.XuControl, error) {
	out := make([]uvc.XuControl, 0, len(c.savelist))
	for _, s := range c.savelist {
		ctrl, err := uvc.New(s.Unit, s.Selector, s.Control, nil, nil, nil, nil, true)
		if err != nil {
			return nil, err
		}
		out = append(out, ctrl)
	}
	return out, nil
}

// IsBlacklisted reports whether ctrl's address is in the blacklist.
func (c *Configuration) IsBlacklisted(ctrl *uvc.XuControl) bool {
	for _, b := range c.blacklist {
		if b.Unit == ctrl.Unit() && b.Selector == ctrl.Selector() {
			return true
		}
	}
	return false
}

// AddToSavelist records ctrl's current value, coalescing duplicates by
// (unit, selector, control) structural equality.
func (c *Configuration) AddToSavelist(ctrl *uvc.XuControl) {
	sc := SavedControl{Unit: ctrl.Unit(), Selector: ctrl.Selector(), Control: append([]byte(nil), ctrl.Cur()...)}
	for _, existing := range c.savelist {
		if savedControlEqual(existing, sc) {
			return
		}
	}
	c.savelist = append(c.savelist, sc)
	sortSavedControls(c.savelist)
}

// AddToBlacklist records ctrl's address, coalescing duplicates.
func (c *Configuration) AddToBlacklist(ctrl *uvc.XuControl) {
	bc := BlackControl{Unit: ctrl.Unit(), Selector: ctrl.Selector()}
	for _, existing := range c.blacklist {
		if existing == bc {
			return
		}
	}
	c.blacklist = append(c.blacklist, bc)
	sortBlackControls(c.blacklist)
}

// Save overwrites this device's entry in the store with the current
// savelist/blacklist, or removes the entry entirely when both are empty.
func (c *Configuration) Save() error {
	all, err := c.store.load()
	if err != nil {
		return err
	}
	if len(c.savelist) == 0 && len(c.blacklist) == 0 {
		delete(all, c.device)
	} else {
		all[c.device] = onDiskConfiguration{Savelist: c.savelist, Blacklist: c.blacklist}
	}
	return c.store.saveAll(all)
}

func savedControlEqual(a, b SavedControl) bool {
	if a.Unit != b.Unit || a.Selector != b.Selector || len(a.Control) != len(b.Control) {
		return false
	}
	for i := range a.Control {
		if a.Control[i] != b.Control[i] {
			return false
		}
	}
	return true
}

func sortSavedControls(s []SavedControl) {
	sort.Slice(s, func(i, j int) bool {
		if s[i].Unit != s[j].Unit {
			return s[i].Unit < s[j].Unit
		}
		return s[i].Selector < s[j].Selector
	})
}

func sortBlackControls(s []BlackControl) {
	sort.Slice(s, func(i, j int) bool {
		if s[i].Unit != s[j].Unit {
			return s[i].Unit < s[j].Unit
		}
		return s[i].Selector < s[j].Selector
	})
}

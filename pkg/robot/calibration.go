package robot

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Default pen heights in millimeters above the paper.
const (
	DefaultPenDownHeight = 0.0
	DefaultPenUpHeight   = 6.0
)

// Profile holds the calibration learned for one arm.
type Profile struct {
	PenDownHeight float64 `json:"pen_down_height"`
	PenUpHeight   float64 `json:"pen_up_height"`
	OriginOffset  Point   `json:"origin_offset"`
	PortOverride  string  `json:"port_override,omitempty"`

	// TiltSlope is the Z correction in mm per mm of Y, for paper that is
	// not level with the arm.
	TiltSlope float64 `json:"tilt_slope,omitempty"`
}

// MaxTiltSlope bounds TiltSlope. Steeper paper needs a better setup, not a
// correction.
const MaxTiltSlope = 0.1

// DefaultProfile returns the profile used before the first calibration.
func DefaultProfile() Profile {
	return Profile{
		PenDownHeight: DefaultPenDownHeight,
		PenUpHeight:   DefaultPenUpHeight,
	}
}

// Validate checks that the pen clears the paper while travelling.
func (p Profile) Validate() error {
	if !(p.PenDownHeight < p.PenUpHeight) {
		return fmt.Errorf("%w: pen_down_height %.2f must be below pen_up_height %.2f",
			ErrConfiguration, p.PenDownHeight, p.PenUpHeight)
	}
	if math.Abs(p.TiltSlope) > MaxTiltSlope {
		return fmt.Errorf("%w: tilt_slope %.4f exceeds %.2f mm/mm",
			ErrConfiguration, p.TiltSlope, MaxTiltSlope)
	}
	return nil
}

// ZAt returns the height h corrected for the paper tilt at y.
func (p Profile) ZAt(h, y float64) float64 {
	return h + p.TiltSlope*y
}

// Travel returns the vertical distance between the two pen heights.
func (p Profile) Travel() float64 {
	return p.PenUpHeight - p.PenDownHeight
}

// Store persists a Profile as JSON. The ready flag marks that the arm was
// calibrated since the last reboot.
type Store struct {
	path      string
	readyFlag string
}

// NewStore creates a store for the profile at path. An empty readyFlag
// disables the ready flag.
func NewStore(path, readyFlag string) *Store {
	return &Store{path: path, readyFlag: readyFlag}
}

// Path returns the profile file path.
func (s *Store) Path() string {
	return s.path
}

// Exists reports whether a profile file has been written.
func (s *Store) Exists() bool {
	_, err := os.Stat(s.path)
	return err == nil
}

// Load reads the profile. A missing or empty file yields DefaultProfile.
func (s *Store) Load() (Profile, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultProfile(), nil
		}
		return Profile{}, pkgerrors.Wrapf(ErrConfiguration, "read calibration file %s: %v", s.path, err)
	}

	if strings.TrimSpace(string(data)) == "" {
		return DefaultProfile(), nil
	}

	// Fields absent from the file keep their defaults.
	p := DefaultProfile()
	if err := json.Unmarshal(data, &p); err != nil {
		return Profile{}, pkgerrors.Wrapf(ErrConfiguration, "parse calibration file %s: %v", s.path, err)
	}
	if err := p.Validate(); err != nil {
		return Profile{}, pkgerrors.Wrapf(err, "calibration file %s", s.path)
	}

	return p, nil
}

// Save atomically replaces the stored profile.
func (s *Store) Save(p Profile) error {
	if err := p.Validate(); err != nil {
		return err
	}

	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return pkgerrors.Wrap(err, "encode calibration")
	}
	data = append(data, '\n')

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return pkgerrors.Wrapf(err, "create directory %s", dir)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return pkgerrors.Wrapf(err, "create temp file in %s", dir)
	}
	tmpName := tmp.Name()
	defer func() {
		// Only left behind when something failed before the rename.
		if _, err := os.Stat(tmpName); err == nil {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return pkgerrors.Wrapf(err, "write %s", tmpName)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return pkgerrors.Wrapf(err, "sync %s", tmpName)
	}
	if err := tmp.Close(); err != nil {
		return pkgerrors.Wrapf(err, "close %s", tmpName)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return pkgerrors.Wrapf(err, "replace %s", s.path)
	}

	logrus.WithFields(p.LogrusFields()).Debugf("calibration saved to %s", s.path)
	return nil
}

// MarkReady records that the arm was calibrated during this boot.
func (s *Store) MarkReady(p Profile) error {
	if s.readyFlag == "" {
		return nil
	}
	line := fmt.Sprintf("calibrated %s pen_up=%.2f pen_down=%.2f\n",
		time.Now().Format(time.RFC3339), p.PenUpHeight, p.PenDownHeight)
	if err := os.WriteFile(s.readyFlag, []byte(line), 0o644); err != nil {
		return pkgerrors.Wrapf(err, "write ready flag %s", s.readyFlag)
	}
	return nil
}

// IsReady reports whether MarkReady ran since the flag was last cleared.
func (s *Store) IsReady() bool {
	if s.readyFlag == "" {
		return true
	}
	_, err := os.Stat(s.readyFlag)
	return err == nil
}

// LogrusFields describes the profile for structured logs.
func (p Profile) LogrusFields() logrus.Fields {
	return logrus.Fields{
		"penDownHeight": p.PenDownHeight,
		"penUpHeight":   p.PenUpHeight,
		"originX":       p.OriginOffset.X,
		"originY":       p.OriginOffset.Y,
		"portOverride":  p.PortOverride,
		"tiltSlope":     p.TiltSlope,
	}
}

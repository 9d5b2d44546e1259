package robot

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestProfile_Validate(t *testing.T) {
	tests := []struct {
		name    string
		profile Profile
		wantErr bool
	}{
		{"default", DefaultProfile(), false},
		{"raised paper", Profile{PenDownHeight: 2, PenUpHeight: 8}, false},
		{"equal heights", Profile{PenDownHeight: 5, PenUpHeight: 5}, true},
		{"inverted", Profile{PenDownHeight: 6, PenUpHeight: 1}, true},
		{"tilted paper", Profile{PenUpHeight: 6, TiltSlope: -0.02}, false},
		{"too steep", Profile{PenUpHeight: 6, TiltSlope: 0.3}, true},
	}

	for _, tt := range tests {
		err := tt.profile.Validate()
		if (err != nil) != tt.wantErr {
			t.Errorf("%s: Validate() error = %v, wantErr %v", tt.name, err, tt.wantErr)
		}
		if err != nil && !errors.Is(err, ErrConfiguration) {
			t.Errorf("%s: error %v does not match ErrConfiguration", tt.name, err)
		}
	}
}

func TestProfile_ZAt(t *testing.T) {
	p := Profile{PenUpHeight: 6, TiltSlope: 0.01}
	if got := p.ZAt(6, 50); got != 6.5 {
		t.Errorf("ZAt(6, 50) = %v, want 6.5", got)
	}
	if got := DefaultProfile().ZAt(6, 50); got != 6 {
		t.Errorf("level ZAt(6, 50) = %v, want 6", got)
	}
}

func TestStore_LoadMissingReturnsDefault(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "calibration.json"), "")

	p, err := s.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if p != DefaultProfile() {
		t.Errorf("Load() = %+v, want default %+v", p, DefaultProfile())
	}
}

func TestStore_SaveLoad(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "calibration.json"), "")

	want := Profile{
		PenDownHeight: 0.5,
		PenUpHeight:   7,
		OriginOffset:  Point{X: 10, Y: -5},
		PortOverride:  "/dev/ttyUSB1",
	}
	if err := s.Save(want); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err := s.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got != want {
		t.Errorf("Load() = %+v, want %+v", got, want)
	}
}

func TestStore_SaveRejectsInvalidProfile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "calibration.json")
	s := NewStore(path, "")

	if err := s.Save(DefaultProfile()); err != nil {
		t.Fatalf("Save(default) error = %v", err)
	}

	err := s.Save(Profile{PenDownHeight: 4, PenUpHeight: 4})
	if !errors.Is(err, ErrConfiguration) {
		t.Fatalf("Save(invalid) error = %v, want ErrConfiguration", err)
	}

	// The previous profile must survive.
	got, err := s.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got != DefaultProfile() {
		t.Errorf("Load() = %+v, want previous default profile", got)
	}
}

func TestStore_SaveLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(filepath.Join(dir, "calibration.json"), "")

	for i := 0; i < 3; i++ {
		if err := s.Save(Profile{PenUpHeight: float64(i + 1)}); err != nil {
			t.Fatalf("Save() error = %v", err)
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("directory has %d entries, want only calibration.json", len(entries))
	}
}

func TestStore_LoadCorrupt(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"garbage", "{not json"},
		{"invalid heights", `{"pen_down_height": 3, "pen_up_height": 1}`},
	}

	for _, tt := range tests {
		path := filepath.Join(t.TempDir(), "calibration.json")
		if err := os.WriteFile(path, []byte(tt.data), 0o644); err != nil {
			t.Fatal(err)
		}

		_, err := NewStore(path, "").Load()
		if !errors.Is(err, ErrConfiguration) {
			t.Errorf("%s: Load() error = %v, want ErrConfiguration", tt.name, err)
		}
	}
}

func TestStore_LoadEmptyAndPartial(t *testing.T) {
	dir := t.TempDir()

	empty := filepath.Join(dir, "empty.json")
	if err := os.WriteFile(empty, []byte("  \n"), 0o644); err != nil {
		t.Fatal(err)
	}
	p, err := NewStore(empty, "").Load()
	if err != nil || p != DefaultProfile() {
		t.Errorf("Load(empty) = %+v, %v; want default profile", p, err)
	}

	// Files written by older versions only carry the travel height.
	partial := filepath.Join(dir, "partial.json")
	if err := os.WriteFile(partial, []byte(`{"pen_up_height": 8}`), 0o644); err != nil {
		t.Fatal(err)
	}
	p, err = NewStore(partial, "").Load()
	if err != nil {
		t.Fatalf("Load(partial) error = %v", err)
	}
	if p.PenUpHeight != 8 || p.PenDownHeight != DefaultPenDownHeight {
		t.Errorf("Load(partial) = %+v", p)
	}
}

func TestStore_ReadyFlag(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(filepath.Join(dir, "calibration.json"), filepath.Join(dir, "ready.flag"))

	if s.IsReady() {
		t.Fatal("IsReady() = true before MarkReady")
	}
	if err := s.MarkReady(DefaultProfile()); err != nil {
		t.Fatalf("MarkReady() error = %v", err)
	}
	if !s.IsReady() {
		t.Error("IsReady() = false after MarkReady")
	}
}

func TestConfig_ResolvePort(t *testing.T) {
	cfg := &Config{}
	p := Profile{PortOverride: "/dev/cu.usbserial-310"}

	if got := cfg.ResolvePort(p); got != p.PortOverride {
		t.Errorf("ResolvePort() = %q, want profile override", got)
	}

	cfg.Port = "/dev/ttyUSB0"
	if got := cfg.ResolvePort(p); got != "/dev/ttyUSB0" {
		t.Errorf("ResolvePort() = %q, want env port", got)
	}
}

package robot

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds the runtime settings, read from the environment.
type Config struct {
	Port            string `env:"HUENIT_PORT"`
	Baud            int    `env:"HUENIT_BAUD" envDefault:"115200"`
	CalibrationFile string `env:"ROBOTROSS_CALIBRATION_FILE" envDefault:"calibration.json"`
	ReadyFlag       string `env:"ROBOTROSS_READY_FLAG"`

	AckTimeout    time.Duration `env:"ROBOTROSS_ACK_TIMEOUT" envDefault:"10s"`
	MotionTimeout time.Duration `env:"ROBOTROSS_MOTION_TIMEOUT" envDefault:"30s"`
	RetryBackoff  time.Duration `env:"ROBOTROSS_RETRY_BACKOFF" envDefault:"250ms"`
	DrawFeed      int           `env:"ROBOTROSS_DRAW_FEED" envDefault:"400"`
	TravelFeed    int           `env:"ROBOTROSS_TRAVEL_FEED" envDefault:"800"`

	Voice              string        `env:"ROBOTROSS_VOICE" envDefault:"Evan"`
	VoiceRate          int           `env:"ROBOTROSS_VOICE_RATE" envDefault:"160"`
	WarningSound       string        `env:"ROBOTROSS_WARNING_SOUND" envDefault:"/System/Library/Sounds/Ping.aiff"`
	CommentaryInterval time.Duration `env:"ROBOTROSS_COMMENTARY_INTERVAL" envDefault:"6s"`
	ScriptFile         string        `env:"ROBOTROSS_SCRIPT_FILE"`

	// Optional Feetech servo that lifts the pen instead of the Z axis.
	PenServoPort string `env:"ROBOTROSS_PEN_SERVO_PORT"`
	PenServoID   int    `env:"ROBOTROSS_PEN_SERVO_ID" envDefault:"1"`
	PenServoUp   int    `env:"ROBOTROSS_PEN_SERVO_UP" envDefault:"2300"`
	PenServoDown int    `env:"ROBOTROSS_PEN_SERVO_DOWN" envDefault:"2048"`

	Listen       string `env:"ROBOTROSS_LISTEN" envDefault:"127.0.0.1:8765"`
	OTelEndpoint string `env:"ROBOTROSS_OTEL_ENDPOINT"`
}

// LoadConfig reads Config from the environment.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if cfg.ReadyFlag == "" {
		// The temp dir is wiped on reboot, which invalidates the calibration.
		cfg.ReadyFlag = filepath.Join(os.TempDir(), "huenit_ready.flag")
	}
	return &cfg, nil
}

// Store returns the calibration store described by the config.
func (c *Config) Store() *Store {
	return NewStore(c.CalibrationFile, c.ReadyFlag)
}

// ResolvePort picks the serial port: the environment wins over the
// calibration profile. An empty result means auto-detect.
func (c *Config) ResolvePort(p Profile) string {
	if c.Port != "" {
		return c.Port
	}
	return p.PortOverride
}

package projection

import (
	"embed"
	"fmt"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/aquaforge/pondops-backend/internal/modules/projection/curve"
	"github.com/aquaforge/pondops-backend/internal/platform/logger"
)

const reforecastTuningEnv = "REFORECAST_TUNING_YAML"

//go:embed reforecast.yaml
var reforecastTuningFS embed.FS

var tuningOnce sync.Once
var tuningCache Config
var tuningErr error

// LoadConfig returns the reforecast tuning shipped with the binary, or
// the file REFORECAST_TUNING_YAML points at. Load failures fall back to
// DefaultConfig so a bad override never takes the triggers down.
func LoadConfig(log *logger.Logger) Config {
	tuningOnce.Do(func() {
		tuningCache, tuningErr = loadTuning()
	})
	if tuningErr != nil {
		if log != nil {
			log.Warn("reforecast tuning load failed; using defaults", "error", tuningErr)
		}
		return DefaultConfig()
	}
	return tuningCache
}

func loadTuning() (Config, error) {
	data, err := readTuning()
	if err != nil {
		return Config{}, err
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, err
	}
	if err := validateTuning(cfg); err != nil {
		return Config{}, err
	}
	return cfg.normalized(), nil
}

func readTuning() ([]byte, error) {
	if path := strings.TrimSpace(os.Getenv(reforecastTuningEnv)); path != "" {
		return os.ReadFile(path)
	}
	return reforecastTuningFS.ReadFile("reforecast.yaml")
}

func validateTuning(cfg Config) error {
	if _, err := curve.Parse(string(cfg.WeightShape), curve.ShapeSCurve); err != nil {
		return fmt.Errorf("weight_shape: %w", err)
	}
	if _, err := curve.Parse(string(cfg.SurvivalShape), curve.ShapeLinear); err != nil {
		return fmt.Errorf("survival_shape: %w", err)
	}
	if cfg.CoverageThreshold < 0 || cfg.CoverageThreshold > 1 {
		return fmt.Errorf("coverage_threshold out of range: %v", cfg.CoverageThreshold)
	}
	if cfg.WindowRadiusDays < 0 {
		return fmt.Errorf("window_radius_days negative: %d", cfg.WindowRadiusDays)
	}
	return nil
}

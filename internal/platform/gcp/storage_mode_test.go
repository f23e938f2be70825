package gcp

import (
	"strings"
	"testing"
)

func TestResolveObjectStorageConfigFromEnv_DefaultIsGCS(t *testing.T) {
	t.Setenv("OBJECT_STORAGE_MODE", "")
	t.Setenv("STORAGE_EMULATOR_HOST", "")

	cfg, err := ResolveObjectStorageConfigFromEnv()
	if err != nil {
		t.Fatalf("resolve: unexpected error: %v", err)
	}
	if cfg.Mode != ObjectStorageModeGCS {
		t.Fatalf("mode: want=%q got=%q", ObjectStorageModeGCS, cfg.Mode)
	}
	if cfg.CompatibilityFallback {
		t.Fatalf("compatibility fallback: want=false got=true")
	}
	if got := cfg.ModeSource(); got != "explicit_or_default" {
		t.Fatalf("mode source: want=%q got=%q", "explicit_or_default", got)
	}
}

func TestResolveObjectStorageConfigFromEnv_EmulatorHostFallback(t *testing.T) {
	t.Setenv("OBJECT_STORAGE_MODE", "")
	t.Setenv("STORAGE_EMULATOR_HOST", "http://fake-gcs:4443")

	cfg, err := ResolveObjectStorageConfigFromEnv()
	if err != nil {
		t.Fatalf("resolve: unexpected error: %v", err)
	}
	if cfg.Mode != ObjectStorageModeGCSEmulator {
		t.Fatalf("mode: want=%q got=%q", ObjectStorageModeGCSEmulator, cfg.Mode)
	}
	if !cfg.CompatibilityFallback {
		t.Fatalf("compatibility fallback: want=true got=false")
	}
	if got := cfg.ModeSource(); got != "compatibility_fallback" {
		t.Fatalf("mode source: want=%q got=%q", "compatibility_fallback", got)
	}
}

func TestResolveObjectStorageConfigFromEnv_ExplicitEmulator(t *testing.T) {
	t.Setenv("OBJECT_STORAGE_MODE", "gcs_emulator")
	t.Setenv("STORAGE_EMULATOR_HOST", "http://localhost:4443")

	cfg, err := ResolveObjectStorageConfigFromEnv()
	if err != nil {
		t.Fatalf("resolve: unexpected error: %v", err)
	}
	if !cfg.IsEmulatorMode() {
		t.Fatalf("emulator mode: want=true got=false")
	}
	if cfg.CompatibilityFallback {
		t.Fatalf("compatibility fallback: want=false got=true")
	}
}

func TestResolveObjectStorageConfigFromEnv_InvalidMode(t *testing.T) {
	t.Setenv("OBJECT_STORAGE_MODE", "s3")
	t.Setenv("STORAGE_EMULATOR_HOST", "")

	_, err := ResolveObjectStorageConfigFromEnv()
	if err == nil {
		t.Fatalf("resolve: want error for invalid mode, got nil")
	}
	if !strings.Contains(err.Error(), "OBJECT_STORAGE_MODE") {
		t.Fatalf("error should name the env var, got: %v", err)
	}
}

func TestValidateObjectStorageConfig_EmulatorNeedsHost(t *testing.T) {
	err := ValidateObjectStorageConfig(ObjectStorageConfig{Mode: ObjectStorageModeGCSEmulator})
	if err == nil {
		t.Fatalf("validate: want error for missing emulator host, got nil")
	}
}

func TestValidateObjectStorageConfig_EmulatorHostMustBeAbsoluteURL(t *testing.T) {
	for _, host := range []string{"fake-gcs:4443", "/just/a/path", "://bad"} {
		err := ValidateObjectStorageConfig(ObjectStorageConfig{
			Mode:         ObjectStorageModeGCSEmulator,
			EmulatorHost: host,
		})
		if err == nil {
			t.Fatalf("validate host=%q: want error, got nil", host)
		}
	}

	err := ValidateObjectStorageConfig(ObjectStorageConfig{
		Mode:         ObjectStorageModeGCSEmulator,
		EmulatorHost: "http://fake-gcs:4443",
	})
	if err != nil {
		t.Fatalf("validate absolute host: unexpected error: %v", err)
	}
}

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/klor-lang/klor/internal/types"
)

func TestRegistryScoping(t *testing.T) {
	r := NewRegistry(DefaultOptions())
	if r.Current().VerifySignature {
		t.Fatalf("expected default VerifySignature=false")
	}

	r.With(Options{VerifySignature: true}, func() {
		if !r.Current().VerifySignature {
			t.Errorf("expected scoped VerifySignature=true inside With")
		}
	})

	if r.Current().VerifySignature {
		t.Errorf("expected VerifySignature=false after With scope closes")
	}
}

func TestSetDefault(t *testing.T) {
	r := NewRegistry(DefaultOptions())
	r.SetDefault(Options{VerifySignature: true})
	if !r.Current().VerifySignature {
		t.Errorf("alter-opts!-equivalent SetDefault did not take effect")
	}
}

func TestLoadFileMissingIsDefault(t *testing.T) {
	opts, err := LoadFile("/nonexistent/klor.yaml")
	if err != nil {
		t.Fatalf("missing config file should not error: %v", err)
	}
	if opts.VerifySignature || opts.VerifyAgreement.Enabled {
		t.Errorf("missing config file should yield defaults, got %+v", opts)
	}
}

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "klor.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("writing test config: %v", err)
	}
	return path
}

func TestLoadFileDecentralizedAgreement(t *testing.T) {
	path := writeConfig(t, "verify:\n  agreement: \"true\"\n  signature: true\n")
	opts, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if !opts.VerifyAgreement.Enabled || !opts.VerifyAgreement.Decentralized {
		t.Fatalf("expected decentralized agreement verification, got %+v", opts.VerifyAgreement)
	}
	if !opts.VerifySignature {
		t.Fatalf("expected VerifySignature=true")
	}
}

func TestLoadFileCentralizedAgreement(t *testing.T) {
	path := writeConfig(t, "verify:\n  agreement: Bank\n")
	opts, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if !opts.VerifyAgreement.Enabled || opts.VerifyAgreement.Decentralized {
		t.Fatalf("expected centralized agreement verification, got %+v", opts.VerifyAgreement)
	}
	if opts.VerifyAgreement.CentralAt != types.Role("Bank") {
		t.Fatalf("expected CentralAt=Bank, got %q", opts.VerifyAgreement.CentralAt)
	}
}

func TestLoadFileMalformedYAML(t *testing.T) {
	path := writeConfig(t, "verify: [this is not a mapping")
	if _, err := LoadFile(path); err == nil {
		t.Fatalf("expected an error for malformed YAML")
	}
}

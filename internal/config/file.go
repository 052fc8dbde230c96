package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/klor-lang/klor/internal/types"
)

// fileOptions is the on-disk shape of a klor.yaml configuration file,
// decoded with gopkg.in/yaml.v3: a thin external struct that gets
// translated into the richer internal Options value rather than decoded
// directly into it, so the file format can evolve independently of the
// in-memory representation.
type fileOptions struct {
	Verify struct {
		Agreement string `yaml:"agreement"` // "false" | "true" | a role name
		Signature bool   `yaml:"signature"`
	} `yaml:"verify"`
}

// LoadFile reads a klor.yaml configuration file and returns the Options
// it describes. A missing file is not an error: it simply yields
// DefaultOptions so callers can unconditionally try to load one.
func LoadFile(path string) (Options, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultOptions(), nil
		}
		return Options{}, fmt.Errorf("reading config %s: %w", path, err)
	}

	var raw fileOptions
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return Options{}, fmt.Errorf("parsing config %s: %w", path, err)
	}

	opts := DefaultOptions()
	switch raw.Verify.Agreement {
	case "", "false":
		// leave disabled
	case "true":
		opts.VerifyAgreement = AgreementVerification{Enabled: true, Decentralized: true}
	default:
		opts.VerifyAgreement = AgreementVerification{Enabled: true, CentralAt: types.Role(raw.Verify.Agreement)}
	}
	opts.VerifySignature = raw.Verify.Signature

	return opts, nil
}

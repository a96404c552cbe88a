package client

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	yaml "gopkg.in/yaml.v3"
)

// envelope is the minimal shape read first to pick the concrete profile type.
type envelope struct {
	ClientType Type `yaml:"client_type" json:"client_type"`
}

// LoadFromPath reads an intake profile (YAML or JSON) and returns the parsed
// client. Format is detected by extension (.yaml/.yml/.json) or by content.
func LoadFromPath(path string) (Client, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read intake profile: %w", err)
	}
	return Load(data, filepath.Ext(path))
}

// Load parses an intake profile from bytes. ext is the file extension for
// format hint; empty = detect from content.
func Load(data []byte, ext string) (Client, error) {
	asJSON := false
	switch strings.ToLower(ext) {
	case ".json":
		asJSON = true
	case ".yaml", ".yml":
	default:
		asJSON = strings.HasPrefix(strings.TrimSpace(string(data)), "{")
	}

	unmarshal := yaml.Unmarshal
	format := "yaml"
	if asJSON {
		unmarshal = json.Unmarshal
		format = "json"
	}

	var env envelope
	if err := unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("parse intake profile %s: %w", format, err)
	}

	switch env.ClientType {
	case TypeIndividual:
		var c Individual
		if err := unmarshal(data, &c); err != nil {
			return nil, fmt.Errorf("parse individual profile %s: %w", format, err)
		}
		if err := validateIndividual(&c); err != nil {
			return nil, err
		}
		return &c, nil
	case TypeBusiness:
		var c Business
		if err := unmarshal(data, &c); err != nil {
			return nil, fmt.Errorf("parse business profile %s: %w", format, err)
		}
		if err := validateBusiness(&c); err != nil {
			return nil, err
		}
		return &c, nil
	case "":
		return nil, fmt.Errorf("intake profile missing client_type (individual or business)")
	default:
		return nil, fmt.Errorf("unknown client_type %q (want individual or business)", env.ClientType)
	}
}

func validateIndividual(c *Individual) error {
	if strings.TrimSpace(c.FullName) == "" {
		return fmt.Errorf("individual profile missing full_name")
	}
	return nil
}

func validateBusiness(c *Business) error {
	if strings.TrimSpace(c.LegalName) == "" {
		return fmt.Errorf("business profile missing legal_name")
	}
	for i, o := range c.BeneficialOwners {
		if strings.TrimSpace(o.FullName) == "" {
			return fmt.Errorf("beneficial owner %d missing full_name", i+1)
		}
	}
	return nil
}

package config

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Validate checks the configuration for structural and cross-field
// problems. Call after ApplyDefaults: required fields with defaults are
// expected to be filled in.
func Validate(cfg *Config) error {
	validate := validator.New()
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}

	if err := cfg.SMPP.Validate(); err != nil {
		return fmt.Errorf("smpp: %w", err)
	}

	if cfg.Database.Enabled {
		if err := cfg.Database.Config.Validate(); err != nil {
			return fmt.Errorf("database: %w", err)
		}
	}

	return nil
}

// formatValidationError turns validator's error list into one readable
// message naming each offending field.
func formatValidationError(err error) error {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}

	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("%s failed %q validation (value: %v)",
			fe.Namespace(), fe.Tag(), fe.Value()))
	}
	return fmt.Errorf("invalid configuration: %s", strings.Join(parts, "; "))
}

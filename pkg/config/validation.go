package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Validate checks a Config for structural and value errors using the
// `validate` struct tags declared on Config and its nested types, plus a
// handful of cross-field checks the tags cannot express (duplicate
// instance IDs, LAK collisions).
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}

	seenIDs := make(map[int]bool, len(cfg.Instances))
	seenLAKs := make(map[uint8]bool, len(cfg.Instances))
	for _, inst := range cfg.Instances {
		if seenIDs[inst.ID] {
			return fmt.Errorf("duplicate instance id %d", inst.ID)
		}
		seenIDs[inst.ID] = true

		if seenLAKs[inst.LAK] {
			return fmt.Errorf("duplicate lak 0x%02x across instances", inst.LAK)
		}
		seenLAKs[inst.LAK] = true
	}

	return nil
}

func formatValidationError(err error) error {
	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	msgs := make([]string, 0, len(validationErrors))
	for _, fe := range validationErrors {
		msgs = append(msgs, fmt.Sprintf("%s: failed %q validation (value: %v)", fe.Namespace(), fe.Tag(), fe.Value()))
	}

	return fmt.Errorf("invalid configuration: %v", msgs)
}

package sismos

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Validate checks the collection against the normalized schema.
func (c *Collection) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid normalized collection: %w", err)
	}
	return nil
}

// Validate checks the collection against the provider schema.
func (c *RawCollection) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid provider collection: %w", err)
	}
	return nil
}

package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"strikearr/internal/arr"
	"strikearr/internal/patterns"
	"strikearr/internal/services"
	"strikearr/internal/strike"
)

var structValidate = newStructValidator()

func newStructValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("toml"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return field.Name
		}
		return name
	})
	return v
}

// Validate ensures the configuration is usable. Every failure wraps
// services.ErrConfiguration.
func (c *Config) Validate() error {
	if err := c.validateStruct(); err != nil {
		return invalid("schema", err)
	}
	checks := []struct {
		name string
		fn   func() error
	}{
		{"thresholds", c.validateThresholds},
		{"block_rules", func() error { return validateBlockRules(c.BlockRules) }},
		{"instances", c.validateInstances},
		{"notifications", c.validateNotifications},
	}
	for _, check := range checks {
		if err := check.fn(); err != nil {
			return invalid(check.name, err)
		}
	}
	return nil
}

func invalid(operation string, err error) error {
	return services.Wrap(services.ErrConfiguration, "config", operation, "", err)
}

func (c *Config) validateStruct() error {
	err := structValidate.Struct(c)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		field := fe.Namespace()
		if _, rest, ok := strings.Cut(field, "."); ok {
			field = rest
		}
		rule := fe.Tag()
		if fe.Param() != "" {
			rule += "=" + fe.Param()
		}
		msgs = append(msgs, fmt.Sprintf("%s fails %s (got %v)", field, rule, fe.Value()))
	}
	return errors.New(strings.Join(msgs, "; "))
}

func validateThresholdMap(scope string, values map[string]int) error {
	for key := range values {
		if _, err := strike.ParseCategory(key); err != nil {
			return fmt.Errorf("%s: %w", scope, err)
		}
	}
	return nil
}

func (c *Config) validateThresholds() error {
	if err := validateThresholdMap("global", c.Thresholds.Global); err != nil {
		return err
	}
	for service, overrides := range c.Thresholds.Service {
		if _, err := arr.ParseServiceType(service); err != nil {
			return fmt.Errorf("service.%s: %w", service, err)
		}
		if err := validateThresholdMap("service."+service, overrides); err != nil {
			return err
		}
	}
	return nil
}

func validateBlockRules(rules BlockRules) error {
	if _, err := patterns.ParseMode(rules.Mode); err != nil {
		return err
	}
	if _, err := patterns.Compile(rules.Patterns); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateInstances() error {
	seen := make(map[string]struct{}, len(c.Instances))
	for _, inst := range c.Instances {
		key := strings.ToLower(inst.Name)
		if _, dup := seen[key]; dup {
			return fmt.Errorf("duplicate instance name %q", inst.Name)
		}
		seen[key] = struct{}{}

		if inst.IsEnabled() && inst.APIKey == "" {
			return fmt.Errorf("%s: api_key is required (or set %s)", inst.Name, APIKeyEnv(inst.Name))
		}
		if err := validateThresholdMap(inst.Name+".thresholds", inst.Thresholds); err != nil {
			return err
		}
		if inst.BlockRules != nil {
			if err := validateBlockRules(*inst.BlockRules); err != nil {
				return fmt.Errorf("%s.block_rules: %w", inst.Name, err)
			}
		}
	}
	return nil
}

func (c *Config) validateNotifications() error {
	n := c.Notifications
	if n.Apprise.Enabled && n.Apprise.URL == "" {
		return errors.New("apprise.url must be set when apprise.enabled is true")
	}
	if n.Notifiarr.Enabled && n.Notifiarr.APIKey == "" {
		return errors.New("notifiarr.api_key must be set when notifiarr.enabled is true")
	}
	if n.Ntfy.Enabled && n.Ntfy.Topic == "" {
		return errors.New("ntfy.topic must be set when ntfy.enabled is true")
	}
	return nil
}

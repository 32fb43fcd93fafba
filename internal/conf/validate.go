// validate.go - settings validation
package conf

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/rcanpahali/BirdNet/internal/errors"
)

// ValidationError represents a collection of validation errors
type ValidationError struct {
	Errors []string
}

// Error returns a string representation of the validation errors
func (ve ValidationError) Error() string {
	return fmt.Sprintf("Validation errors: %v", ve.Errors)
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// ValidateSettings validates the entire Settings struct
func ValidateSettings(settings *Settings) error {
	if settings == nil {
		return errors.Newf("settings cannot be nil").
			Component("conf").
			Category(errors.CategoryValidation).
			Build()
	}

	ve := ValidationError{}

	if err := validate.Struct(settings); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return err
		}
		for _, fe := range fieldErrs {
			ve.Errors = append(ve.Errors, describeFieldError(fe))
		}
	}

	if err := validateUpstreamSettings(&settings.Upstream); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if err := validateDatabaseSettings(&settings.Database); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if err := validateSentrySettings(&settings.Sentry); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if len(ve.Errors) > 0 {
		return ve
	}
	return nil
}

// describeFieldError renders a validator failure with the config key it came from.
func describeFieldError(fe validator.FieldError) string {
	// Namespace is "Settings.Server.Port"; config keys are lower case without the root
	key := strings.ToLower(strings.TrimPrefix(fe.Namespace(), "Settings."))
	if fe.Param() != "" {
		return fmt.Sprintf("%s: failed '%s=%s' (got %v)", key, fe.Tag(), fe.Param(), fe.Value())
	}
	return fmt.Sprintf("%s: failed '%s' (got %v)", key, fe.Tag(), fe.Value())
}

func validateUpstreamSettings(settings *UpstreamSettings) error {
	if settings.URL == "" {
		// reported by the struct rules
		return nil
	}
	u, err := url.Parse(settings.URL)
	if err != nil {
		return fmt.Errorf("upstream.url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("upstream.url: scheme must be http or https, got %q", u.Scheme)
	}
	return nil
}

func validateDatabaseSettings(settings *DatabaseSettings) error {
	switch settings.Type {
	case "sqlite":
		if strings.TrimSpace(settings.Path) == "" {
			return fmt.Errorf("database.path: required when database.type is sqlite")
		}
	case "mysql":
		var missing []string
		if settings.MySQL.Host == "" {
			missing = append(missing, "host")
		}
		if settings.MySQL.Username == "" {
			missing = append(missing, "username")
		}
		if settings.MySQL.Database == "" {
			missing = append(missing, "database")
		}
		if len(missing) > 0 {
			return fmt.Errorf("database.mysql: %s required when database.type is mysql", strings.Join(missing, ", "))
		}
	}
	return nil
}

func validateSentrySettings(settings *SentrySettings) error {
	if settings.Enabled && settings.DSN == "" {
		return fmt.Errorf("sentry.dsn: required when sentry is enabled")
	}
	return nil
}

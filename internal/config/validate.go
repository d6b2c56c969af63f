package config

import (
	"errors"
	"fmt"
)

// ValidationError reports a single invalid manifest field.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// validateManifest checks a single manifest for internal consistency.
// Cross-manifest checks (duplicate names) happen in Discover.
func validateManifest(m *Manifest) error {
	var errs []error

	if m.Name == "" {
		errs = append(errs, ValidationError{Field: "name", Message: "name is required"})
	}

	switch m.OS {
	case "", OSAny, OSWindows, OSLinux, OSDarwin, OSBSD:
	default:
		errs = append(errs, ValidationError{
			Field:   "os",
			Message: fmt.Sprintf("unknown os filter: %s", m.OS),
		})
	}

	for _, opt := range m.StartOptions {
		switch opt {
		case OptReplaceEnv, OptWinJobCloseChildren:
		default:
			errs = append(errs, ValidationError{
				Field:   "start_options",
				Message: fmt.Sprintf("unknown start option: %s", opt),
			})
		}
	}

	if m.RedirectLogRotateFiles < 0 {
		errs = append(errs, ValidationError{
			Field:   "redirect_log_rotate_files",
			Message: "must be >= 0",
		})
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

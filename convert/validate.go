package convert

import (
	"fmt"
	"regexp"

	"github.com/halcyon-automation/meridian/meta"
)

// Validate checks v against every serializable ValidationRule attached to
// desc plus its Min/Max/AllowedValues constraints, per spec.md §4.6 ("every
// property write is validated against serializable rules"). The first
// failing rule is returned as the error.
func Validate(desc PropertyDescriptor, v meta.Value) error {
	if desc.Min != nil || desc.Max != nil {
		if d, ok := v.AsDouble(); ok {
			if desc.Min != nil && d < *desc.Min {
				return fmt.Errorf("convert: value %g is below minimum %g", d, *desc.Min)
			}
			if desc.Max != nil && d > *desc.Max {
				return fmt.Errorf("convert: value %g is above maximum %g", d, *desc.Max)
			}
		}
	}
	if len(desc.AllowedValues) > 0 {
		if s, ok := v.AsString(); ok {
			found := false
			for _, a := range desc.AllowedValues {
				if a == s {
					found = true
					break
				}
			}
			if !found {
				return fmt.Errorf("convert: %q is not one of the allowed values", s)
			}
		}
	}
	for _, rule := range desc.Validation {
		if err := validateRule(rule, v); err != nil {
			return err
		}
	}
	return nil
}

func validateRule(rule ValidationRule, v meta.Value) error {
	switch rule.Kind {
	case ValidationRange:
		d, ok := v.AsDouble()
		if !ok {
			return nil
		}
		if d < rule.Min || d > rule.Max {
			return fmt.Errorf("convert: value %g outside range [%g, %g]", d, rule.Min, rule.Max)
		}
	case ValidationRegex:
		s, ok := v.AsString()
		if !ok {
			return nil
		}
		re, err := regexp.Compile(rule.Pattern)
		if err != nil {
			return fmt.Errorf("convert: invalid validation pattern %q: %w", rule.Pattern, err)
		}
		if !re.MatchString(s) {
			return fmt.Errorf("convert: value %q does not match pattern %q", s, rule.Pattern)
		}
	case ValidationMinLength:
		s, ok := v.AsString()
		if !ok {
			return nil
		}
		if len(s) < rule.MinLength {
			return fmt.Errorf("convert: value %q is shorter than minimum length %d", s, rule.MinLength)
		}
	}
	return nil
}

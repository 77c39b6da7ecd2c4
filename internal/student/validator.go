package student

import (
	"fmt"
	"regexp"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/cast"
)

// emailPattern is deliberately loose: local-part@domain.tld shape only
var emailPattern = regexp.MustCompile(`^[\w.-]+@[\w.-]+\.\w+$`)

var requiredFields = []string{"first_name", "last_name", "email", "major", "enrollment_date"}

// ValidationError is a user-correctable input error with a single message
// identifying the first rule violated.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

var validate = validator.New()

// Validate checks student fields against the business rules. Rules run in a
// fixed order and validation stops at the first failure. On the update path
// (isUpdate true) no field is mandatory; each present field is checked
// independently.
func Validate(fields map[string]any, isUpdate bool) error {
	if !isUpdate {
		for _, field := range requiredFields {
			if _, ok := fields[field]; !ok {
				return &ValidationError{Message: fmt.Sprintf("Missing required field: %s", field)}
			}
		}
	}

	if email, ok := fields["email"]; ok {
		if !emailPattern.MatchString(cast.ToString(email)) {
			return &ValidationError{Message: "Invalid email format"}
		}
	}

	if gpa, ok := fields["gpa"]; ok && gpa != nil {
		value, err := cast.ToFloat64E(gpa)
		if err != nil {
			return &ValidationError{Message: "GPA must be a number"}
		}
		if err := validate.Var(value, "gte=0,lte=4"); err != nil {
			return &ValidationError{Message: "GPA must be between 0.0 and 4.0"}
		}
	}

	if semester, ok := fields["semester"]; ok && semester != nil {
		value, err := cast.ToIntE(semester)
		if err != nil {
			return &ValidationError{Message: "Semester must be an integer"}
		}
		if err := validate.Var(value, "gte=1,lte=12"); err != nil {
			return &ValidationError{Message: "Semester must be between 1 and 12"}
		}
	}

	return nil
}

package pipeline

import (
	"encoding/json"
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	apperrors "hlsfn/internal/pkg/errors"
)

var validate = newValidator()

// newValidator reports fields by their JSON name.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return v
}

// DecodeJob parses the request payload. It has no side effects.
func DecodeJob(payload string) (Job, error) {
	if strings.TrimSpace(payload) == "" {
		return Job{}, apperrors.InvalidPayload("payload is empty")
	}

	var job Job
	if err := json.Unmarshal([]byte(payload), &job); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && typeErr.Field != "" {
			return Job{}, apperrors.InvalidPayloadField(typeErr.Field, typeErr.Field+" has the wrong type")
		}
		return Job{}, apperrors.InvalidPayload("payload must be a JSON object").
			WithField("cause", err.Error())
	}

	job.FileID = strings.TrimSpace(job.FileID)

	if err := validate.Struct(job); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			switch fe.Tag() {
			case "required":
				return Job{}, apperrors.InvalidPayloadField(fe.Field(), fe.Field()+" is required")
			case "max":
				return Job{}, apperrors.InvalidPayloadField(fe.Field(), fe.Field()+" exceeds maximum length")
			default:
				return Job{}, apperrors.InvalidPayloadField(fe.Field(), fe.Field()+" is invalid")
			}
		}
		return Job{}, apperrors.InvalidPayload(err.Error())
	}
	return job, nil
}

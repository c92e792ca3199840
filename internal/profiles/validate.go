package profiles

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/sproutwatch/sproutwatch/pkg/models"
)

// ErrInvalidProfile wraps every validation failure.
var ErrInvalidProfile = errors.New("invalid plant profile")

var validate = validator.New()

// Validate checks the active-profile invariant: ordered temperature and
// humidity ranges, a water level within 0..100, and a non-empty name
// without ':' or line breaks.
func Validate(p models.PlantProfile) error {
	if err := validate.Struct(p); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s(%s)", fe.Field(), fe.Tag()))
			}
			return fmt.Errorf("%w: %s", ErrInvalidProfile, strings.Join(fields, ", "))
		}
		return fmt.Errorf("%w: %v", ErrInvalidProfile, err)
	}
	if strings.ContainsAny(p.Name, "\r\n") {
		return fmt.Errorf("%w: Name(single line)", ErrInvalidProfile)
	}
	return nil
}

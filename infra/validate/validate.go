package validate

import (
	"regexp"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/mstgnz/gompesa/infra/config"
)

var (
	// MSISDN in international format without the leading plus, e.g. 251700404709
	msisdnRegex = regexp.MustCompile(`^[1-9][0-9]{8,14}$`)
	// business short codes and till numbers
	shortCodeRegex = regexp.MustCompile(`^[0-9]{4,10}$`)

	registered sync.Map // *validator.Validate -> *registration
)

type registration struct {
	once sync.Once
	err  error
}

// CustomValidate registers the custom tags on the shared validator
func CustomValidate() error {
	return Register(config.App().Validator)
}

// Register adds the msisdn and shortcode tags to v. Each validator instance
// is registered once; later calls return the first outcome. Registration is
// not safe while v is validating, so call it before v is shared.
func Register(v *validator.Validate) error {
	entry, _ := registered.LoadOrStore(v, &registration{})
	reg := entry.(*registration)
	reg.once.Do(func() {
		if err := v.RegisterValidation("msisdn", func(fl validator.FieldLevel) bool {
			return msisdnRegex.MatchString(fl.Field().String())
		}); err != nil {
			reg.err = err
			return
		}
		reg.err = v.RegisterValidation("shortcode", func(fl validator.FieldLevel) bool {
			return shortCodeRegex.MatchString(fl.Field().String())
		})
	})
	return reg.err
}

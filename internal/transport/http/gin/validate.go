package httpgin

import (
	"regexp"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var (
	currencyCode = regexp.MustCompile(`^[A-Za-z]{3}$`)
	registerOnce sync.Once
)

// registerValidators adds the custom binding tags used by the request DTOs.
func registerValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}

		_ = v.RegisterValidation("currency", func(fl validator.FieldLevel) bool {
			return currencyCode.MatchString(fl.Field().String())
		})
	})
}

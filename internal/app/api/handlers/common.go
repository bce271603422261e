package handlers

import (
	"errors"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	mw "github.com/fatflowers/partypay/internal/app/api/middleware"
	"github.com/fatflowers/partypay/internal/app/service/fees"
	"github.com/fatflowers/partypay/pkg/apperr"
	"github.com/fatflowers/partypay/pkg/response"
	"github.com/fatflowers/partypay/pkg/types"
)

var (
	registerOnce sync.Once
	registerErr  error
)

// RegisterValidators adds the custom binding rules. Safe to call more than once.
func RegisterValidators() error {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			registerErr = errors.New("gin validator engine is not go-playground/validator")
			return
		}
		registerErr = v.RegisterValidation("percent", func(fl validator.FieldLevel) bool {
			return fees.ValidPercent(fl.Field().Float())
		})
	})
	return registerErr
}

func bindError(err error) error {
	return apperr.Wrap(apperr.CodeValidation, err, "invalid request")
}

// caller returns the authenticated actor, writing 401 when there is none.
func caller(c *gin.Context) (types.Actor, bool) {
	actor, ok := mw.ActorFrom(c)
	if !ok {
		response.Fail(c, mw.ErrMissingCredentials)
	}
	return actor, ok
}

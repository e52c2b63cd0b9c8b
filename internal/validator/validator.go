// Package validator provides custom validation functions for Gin's binding engine.
package validator

import (
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// Register registers all custom validators with the Gin binding engine.
func Register() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		_ = v.RegisterValidation("side", validateSide)
		_ = v.RegisterValidation("symbol_type", validateSymbolType)
		_ = v.RegisterValidation("account_mode", validateAccountMode)
	}
}

func validateSide(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "BUY", "SELL":
		return true
	}
	return false
}

func validateSymbolType(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "equity", "crypto", "index":
		return true
	}
	return false
}

func validateAccountMode(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "basic", "custom":
		return true
	}
	return false
}

package catalog

import (
	"reflect"
	"strings"

	pkgerrors "github.com/emberline/storefront-backend/pkg/errors"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// Entry is one catalog descriptor as declared in the batch file. ID is zero
// until the pipeline assigns one; ImageRef starts as the declared image file
// reference and is rewritten to the canonical storage address after a
// successful upload.
type Entry struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name" validate:"required,max=255"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Category    string          `json:"category" validate:"required,max=128"`
	ImageRef    string          `json:"image_url"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		tag := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if tag == "" {
			return f.Name
		}
		return tag
	})
	return v
}

// ValidateEntry checks a descriptor before it enters the pipeline.
func ValidateEntry(entry *Entry) error {
	if entry == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "entry is required")
	}
	if err := validate.Struct(entry); err != nil {
		if errs, ok := err.(validator.ValidationErrors); ok {
			details := map[string]string{}
			for _, fieldErr := range errs {
				details[fieldErr.Field()] = fieldErr.Tag()
			}
			return pkgerrors.New(pkgerrors.CodeValidation, "invalid catalog entry").WithDetails(details)
		}
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid catalog entry")
	}
	if entry.Price.IsNegative() {
		return pkgerrors.New(pkgerrors.CodeValidation, "price must not be negative")
	}
	return nil
}

package exam

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
	"github.com/pkg/errors"
)

var (
	validate   *validator.Validate
	translator ut.Translator

	errInvalid = errors.New("invalid input")
)

func init() {
	validate = validator.New()
	enLocale := en.New()
	translator, _ = ut.New(enLocale, enLocale).GetTranslator("en")
	_ = en_translations.RegisterDefaultTranslations(validate, translator)

	// Report JSON names, not Go field names.
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}

// NewExam is the input for creating an exam.
type NewExam struct {
	Title           string     `json:"title" validate:"required,min=3,max=200"`
	Description     string     `json:"description" validate:"max=2000"`
	DurationMinutes int        `json:"duration_minutes" validate:"required,min=1,max=600"`
	Subject         *string    `json:"subject" validate:"omitempty,max=200"`
	ScheduledAt     *time.Time `json:"scheduled_at"`
	BatchID         *string    `json:"batch_id" validate:"omitempty,min=1,max=100"`
	Published       bool       `json:"published"`
}

// ExamPatch carries only the fields being changed. An empty subject or batch id
// clears the value.
type ExamPatch struct {
	Title           *string    `json:"title" validate:"omitempty,min=3,max=200"`
	Description     *string    `json:"description" validate:"omitempty,max=2000"`
	DurationMinutes *int       `json:"duration_minutes" validate:"omitempty,min=1,max=600"`
	Subject         *string    `json:"subject" validate:"omitempty,max=200"`
	ScheduledAt     *time.Time `json:"scheduled_at"`
	BatchID         *string    `json:"batch_id" validate:"omitempty,max=100"`
	Published       *bool      `json:"published"`
}

type NewQuestion struct {
	Text         string   `json:"text" validate:"required,min=1,max=1000"`
	Options      []string `json:"options" validate:"required,min=2,dive,required,min=1,max=500"`
	CorrectIndex *int     `json:"correct_index" validate:"required,min=0"`
}

type QuestionPatch struct {
	Text         *string  `json:"text" validate:"omitempty,min=1,max=1000"`
	Options      []string `json:"options" validate:"omitempty,min=2,dive,required,min=1,max=500"`
	CorrectIndex *int     `json:"correct_index" validate:"omitempty,min=0"`
}

type Submission struct {
	Answers []Answer `json:"answers" validate:"dive"`
}

// Check runs struct-tag validation and converts failures to a *ValidationError.
func Check(v interface{}) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return NewValidationError(err)
	}
	flds := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		flds = append(flds, FieldError{Field: fieldPath(fe), Error: fe.Translate(translator)})
	}
	return NewValidationError(errInvalid, flds...)
}

// fieldPath drops the top-level struct name from the namespace.
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

// checkCorrectIndex enforces 0 <= idx < len(options). It depends on runtime
// data so it cannot be a tag.
func checkCorrectIndex(idx int, options []string) error {
	if idx < 0 || idx >= len(options) {
		return NewValidationError(errInvalid, FieldError{
			Field: "correct_index",
			Error: fmt.Sprintf("correct_index must be between 0 and %d", len(options)-1),
		})
	}
	return nil
}

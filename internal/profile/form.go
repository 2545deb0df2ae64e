// Package profile models the student preference profile form.
package profile

import (
	"errors"
	"fmt"
	"net/url"
	"reflect"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
)

// Option lists shared by several fields.
var (
	Courses       = []string{"Engenharia", "Direito", "Administração"}
	Periods       = []string{"1º", "2º", "3º", "4º", "5º", "6º", "7º", "8º"}
	Methodologies = []string{"Teórica", "Prática", "Mista"}
	Paces         = []string{"Lento", "Moderado", "Rápido"}
	Participation = []string{"Baixo", "Médio", "Alto"}
	Assessments   = []string{"Provas", "Trabalhos", "Projetos"}
	Importance    = []string{"1", "2", "3", "4", "5", "6", "7"}
)

// Form is the preference profile posted to /aluno/me/perfil.
// Every field is required; the importance fields weigh the preference beside them.
type Form struct {
	Curso                    string `json:"curso" validate:"required,oneof=Engenharia Direito Administração"`
	Periodo                  string `json:"periodo" validate:"required,oneof=1º 2º 3º 4º 5º 6º 7º 8º"`
	FormaLecionar            string `json:"formaLecionar" validate:"required,oneof=Teórica Prática Mista"`
	RitmoAula                string `json:"ritmoAula" validate:"required,oneof=Lento Moderado Rápido"`
	Incentivo                string `json:"incentivo" validate:"required,oneof=Baixo Médio Alto"`
	FormaAvaliar             string `json:"formaAvaliar" validate:"required,oneof=Provas Trabalhos Projetos"`
	FormaLecionarImportancia string `json:"formaLecionarImportancia" validate:"required,oneof=1 2 3 4 5 6 7"`
	RitmoAulaImportancia     string `json:"ritmoAulaImportancia" validate:"required,oneof=1 2 3 4 5 6 7"`
	IncentivoImportancia     string `json:"incentivoImportancia" validate:"required,oneof=1 2 3 4 5 6 7"`
	FormaAvaliarImportancia  string `json:"formaAvaliarImportancia" validate:"required,oneof=1 2 3 4 5 6 7"`
}

// Field describes one form field for rendering.
type Field struct {
	Key     string
	Label   string
	Group   string
	Options []string
	Value   string
}

// Flag returns the kebab-case command-line flag for the field,
// e.g. "formaLecionarImportancia" becomes "forma-lecionar-importancia".
func (f Field) Flag() string {
	var sb strings.Builder
	for i, r := range f.Key {
		if unicode.IsUpper(r) {
			if i > 0 {
				sb.WriteByte('-')
			}
			sb.WriteRune(unicode.ToLower(r))
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

// Field groups.
const (
	GroupAcademic    = "Dados Acadêmicos"
	GroupPreferences = "Preferências"
	GroupImportance  = "Importância"
)

// FieldError reports the first invalid field of a form.
type FieldError struct {
	Key     string
	Label   string
	Message string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("campo %q: %s", e.Label, e.Message)
}

var validate = newValidator()

// newValidator reports field errors by JSON key instead of Go field name.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Fields returns the form fields in display order together with their current values.
func (f *Form) Fields() []Field {
	return []Field{
		{Key: "curso", Label: "Curso", Group: GroupAcademic, Options: Courses, Value: f.Curso},
		{Key: "periodo", Label: "Período", Group: GroupAcademic, Options: Periods, Value: f.Periodo},
		{Key: "formaLecionar", Label: "Metodologia", Group: GroupPreferences, Options: Methodologies, Value: f.FormaLecionar},
		{Key: "ritmoAula", Label: "Ritmo da aula", Group: GroupPreferences, Options: Paces, Value: f.RitmoAula},
		{Key: "incentivo", Label: "Participação", Group: GroupPreferences, Options: Participation, Value: f.Incentivo},
		{Key: "formaAvaliar", Label: "Avaliação", Group: GroupPreferences, Options: Assessments, Value: f.FormaAvaliar},
		{Key: "formaLecionarImportancia", Label: "Importância da metodologia", Group: GroupImportance, Options: Importance, Value: f.FormaLecionarImportancia},
		{Key: "ritmoAulaImportancia", Label: "Importância do ritmo da aula", Group: GroupImportance, Options: Importance, Value: f.RitmoAulaImportancia},
		{Key: "incentivoImportancia", Label: "Importância da participação", Group: GroupImportance, Options: Importance, Value: f.IncentivoImportancia},
		{Key: "formaAvaliarImportancia", Label: "Importância da avaliação", Group: GroupImportance, Options: Importance, Value: f.FormaAvaliarImportancia},
	}
}

// Complete reports whether every field has a value.
func (f *Form) Complete() bool {
	for _, field := range f.Fields() {
		if field.Value == "" {
			return false
		}
	}
	return true
}

// Validate checks that every field is set to one of its options.
// It returns a *FieldError for the first offending field.
func (f *Form) Validate() error {
	err := validate.Struct(f)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return fmt.Errorf("failed to validate profile: %w", err)
	}

	ve := verrs[0]
	key := ve.Field()
	label := key
	for _, field := range f.Fields() {
		if field.Key == key {
			label = field.Label
			break
		}
	}

	msg := "valor inválido"
	if ve.Tag() == "required" {
		msg = "obrigatório"
	}
	return &FieldError{Key: key, Label: label, Message: msg}
}

// Set assigns a field by its JSON key. Unknown keys are reported as errors.
func (f *Form) Set(key, value string) error {
	ptr := f.fieldPtr(key)
	if ptr == nil {
		return fmt.Errorf("unknown profile field: %s", key)
	}
	*ptr = value
	return nil
}

// FromValues builds a form from submitted HTML form values.
func FromValues(values url.Values) Form {
	var f Form
	for _, field := range f.Fields() {
		// Keys come from Fields, so Set cannot fail.
		_ = f.Set(field.Key, values.Get(field.Key))
	}
	return f
}

func (f *Form) fieldPtr(key string) *string {
	switch key {
	case "curso":
		return &f.Curso
	case "periodo":
		return &f.Periodo
	case "formaLecionar":
		return &f.FormaLecionar
	case "ritmoAula":
		return &f.RitmoAula
	case "incentivo":
		return &f.Incentivo
	case "formaAvaliar":
		return &f.FormaAvaliar
	case "formaLecionarImportancia":
		return &f.FormaLecionarImportancia
	case "ritmoAulaImportancia":
		return &f.RitmoAulaImportancia
	case "incentivoImportancia":
		return &f.IncentivoImportancia
	case "formaAvaliarImportancia":
		return &f.FormaAvaliarImportancia
	default:
		return nil
	}
}

// Package config loads and validates analysis definitions.
package config

import (
	"fmt"
	"os"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/hashicorp/go-multierror"
	"gopkg.in/yaml.v2"

	"github.com/lox/eurorates/internal/ingest"
	"github.com/lox/eurorates/internal/models"
	"github.com/lox/eurorates/internal/reference"
	"github.com/lox/eurorates/internal/standardize"
)

type File struct {
	Analyses []Analysis `yaml:"analyses" validate:"required,min=1,dive"`
}

// Analysis is one end-to-end run: load a numerator and a population file,
// standardize, fit a reference and write outputs.
type Analysis struct {
	Name        string              `yaml:"name" validate:"required"`
	Domain      models.Domain       `yaml:"domain" validate:"required,oneof=mortality fertility"`
	Numerator   ingest.FileSpec     `yaml:"numerator"`
	Population  ingest.FileSpec     `yaml:"population"`
	Filter      ingest.Rules        `yaml:"filter"`
	AgeRange    *AgeRange           `yaml:"age_range"`
	Weights     []standardize.Entry `yaml:"weights" validate:"omitempty,dive"`
	Reference   Reference           `yaml:"reference"`
	OutputYears reference.Window    `yaml:"output_years"`
	Output      Output              `yaml:"output"`
	Severity    ingest.Severity     `yaml:"severity" validate:"omitempty,oneof=reject fail"`
}

// AgeRange restricts standardization to the age groups within [From, To].
// A negative To keeps the open-ended group.
type AgeRange struct {
	From int `yaml:"from" validate:"gte=0"`
	To   int `yaml:"to"`
}

type Reference struct {
	Strategy reference.Strategy `yaml:"strategy" validate:"required,oneof=linear_trend mean_baseline"`
	Window   reference.Window   `yaml:"window"`
}

type Output struct {
	Dir   string `yaml:"dir" validate:"required"`
	XLSX  bool   `yaml:"xlsx"`
	Chart bool   `yaml:"chart"`
}

// Load reads a YAML analysis file, fills defaults and validates it.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var f File
	if err := yaml.UnmarshalStrict(data, &f); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	f.applyDefaults()

	if err := f.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &f, nil
}

func (f *File) applyDefaults() {
	for i := range f.Analyses {
		a := &f.Analyses[i]
		if a.Severity == "" {
			a.Severity = ingest.Reject
		}
		a.Numerator.Columns = a.Numerator.Columns.WithDefaults()
		a.Population.Columns = a.Population.Columns.WithDefaults()
	}
}

// Validate checks struct tags and the cross-field rules of every analysis.
func (f *File) Validate() error {
	if err := newValidator().Struct(f); err != nil {
		return formatValidationErrors(err)
	}

	var result *multierror.Error
	seen := make(map[string]bool, len(f.Analyses))
	for _, a := range f.Analyses {
		if seen[a.Name] {
			result = multierror.Append(result, fmt.Errorf("analysis %q: duplicate name", a.Name))
		}
		seen[a.Name] = true
		if err := a.validate(); err != nil {
			result = multierror.Append(result, fmt.Errorf("analysis %q: %w", a.Name, err))
		}
	}
	return result.ErrorOrNil()
}

func (a Analysis) validate() error {
	if strings.ContainsAny(a.Name, `/\ `) {
		return fmt.Errorf("name must not contain slashes or spaces")
	}
	if a.OutputYears.From < a.Filter.MinYear {
		return fmt.Errorf("output years %s start before min_year %d", a.OutputYears, a.Filter.MinYear)
	}
	w := a.Reference.Window
	if w.From < a.OutputYears.From || w.To > a.OutputYears.To {
		return fmt.Errorf("reference window %s outside output years %s", w, a.OutputYears)
	}
	for _, y := range a.Filter.SkipYears {
		if w.Contains(y) {
			return fmt.Errorf("reference window %s contains skipped year %d", w, y)
		}
	}
	if _, err := a.StandardWeights(); err != nil {
		return err
	}
	for _, e := range a.Weights {
		if !a.Domain.Contains(e.AgeGroup) {
			return fmt.Errorf("weight for %s outside the %s age groups", e.AgeGroup, a.Domain)
		}
	}
	return nil
}

// StandardWeights returns the analysis weights: the configured table or the
// domain default, restricted to AgeRange when set.
func (a Analysis) StandardWeights() (*standardize.Weights, error) {
	ws := standardize.ForDomain(a.Domain)
	if len(a.Weights) > 0 {
		var err error
		if ws, err = standardize.NewWeights(a.Weights); err != nil {
			return nil, err
		}
	}
	if a.AgeRange != nil {
		return ws.Subset(a.AgeRange.From, a.AgeRange.To)
	}
	return ws, nil
}

func (a Analysis) Estimator() (reference.Estimator, error) {
	return reference.NewEstimator(a.Reference.Strategy, a.Reference.Window)
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("yaml"), ",", 2)[0]
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})
	return v
}

func formatValidationErrors(err error) error {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}
	var result *multierror.Error
	for _, fe := range verrs {
		result = multierror.Append(result, fmt.Errorf("%s: %s", fieldPath(fe), describe(fe)))
	}
	return result.ErrorOrNil()
}

// fieldPath drops the root type name from "File.analyses[0].name".
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return ns
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must have at least %s entries", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of: %s", strings.ReplaceAll(fe.Param(), " ", ", "))
	case "gte":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "gtefield":
		return fmt.Sprintf("must not be before %s", fe.Param())
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}

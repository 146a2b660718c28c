// Package equation describes the second-order equation families the
// application knows how to set up for the solver.
package equation

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const (
	Harmonic = "harmonic"
	Damped   = "damped"
	Forced   = "forced"
	Custom   = "custom"
)

const DefaultCustomEquation = "y''[t] + y[t] == 0"

var (
	// ErrInvalidParameter indicates a control value that is not a number.
	ErrInvalidParameter = errors.New("equation: invalid parameter value")

	// ErrUnknownType indicates an equation family with no expression template.
	ErrUnknownType = errors.New("equation: unknown equation type")
)

// Param maps a stored parameter to the UI control that holds its value.
type Param struct {
	Name    string
	Control string
	Default float64
}

var families = map[string][]Param{
	Harmonic: {
		{Name: "omega", Control: "omega_harmonic", Default: 1.0},
	},
	Damped: {
		{Name: "omega", Control: "omega_damped", Default: 1.0},
		{Name: "beta", Control: "beta_damped", Default: 0.1},
	},
	Forced: {
		{Name: "omega", Control: "omega_forced", Default: 1.0},
		{Name: "beta", Control: "beta_forced", Default: 0.1},
		{Name: "force", Control: "force_forced", Default: 1.0},
		{Name: "frequency", Control: "freq_forced", Default: 0.5},
	},
}

var descriptions = map[string]string{
	Harmonic: "y'' + ω²y = 0",
	Damped:   "y'' + 2βy' + ω²y = 0",
	Forced:   "y'' + 2βy' + ω²y = F·cos(Ωt)",
	Custom:   "user supplied",
}

// Types lists the built-in families in display order.
func Types() []string {
	return []string{Harmonic, Damped, Forced, Custom}
}

// Describe returns a short formula for a family, or "" if unknown.
func Describe(eqType string) string {
	return descriptions[eqType]
}

// Schema returns the numeric parameters of a family.
func Schema(eqType string) []Param {
	return families[eqType]
}

// Parameters turns the current control values into the flat mapping stored
// with a simulation. Controls that are absent take the family default.
// Unknown families are passed through unchanged.
func Parameters(eqType string, controls map[string]any) (map[string]any, error) {
	if eqType == Custom {
		expr := DefaultCustomEquation
		if v, ok := controls["custom_equation"]; ok {
			s, ok := v.(string)
			if !ok {
				return nil, fmt.Errorf("%w: custom_equation must be text", ErrInvalidParameter)
			}
			expr = s
		}
		return map[string]any{"equation": expr}, nil
	}

	schema, known := families[eqType]
	if !known {
		out := make(map[string]any, len(controls))
		for k, v := range controls {
			out[k] = v
		}
		return out, nil
	}

	out := make(map[string]any, len(schema))
	for _, p := range schema {
		raw, ok := controls[p.Control]
		if !ok {
			// stored records may already use the short names
			raw, ok = controls[p.Name]
		}
		if !ok {
			out[p.Name] = p.Default
			continue
		}
		f, err := toFloat(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidParameter, p.Control, err)
		}
		out[p.Name] = f
	}
	return out, nil
}

// Expression renders the solver input for a family.
func Expression(eqType string, params map[string]any) (string, error) {
	num := func(name string) string {
		for _, p := range families[eqType] {
			if p.Name == name {
				v, err := toFloat(params[name])
				if err != nil {
					v = p.Default
				}
				return formatNumber(v)
			}
		}
		return "0.0"
	}

	switch eqType {
	case Harmonic:
		w := num("omega")
		return fmt.Sprintf("y''[t] + %s*%s * y[t] == 0", w, w), nil
	case Damped:
		w := num("omega")
		return fmt.Sprintf("y''[t] + 2*%s*y'[t] + %s*%s * y[t] == 0", num("beta"), w, w), nil
	case Forced:
		w := num("omega")
		return fmt.Sprintf("y''[t] + 2*%s*y'[t] + %s*%s * y[t] == %s*Cos[%s*t]",
			num("beta"), w, w, num("force"), num("frequency")), nil
	case Custom:
		if s, ok := params["equation"].(string); ok && s != "" {
			return s, nil
		}
		return DefaultCustomEquation, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownType, eqType)
	}
}

func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case json.Number:
		return n.Float64()
	case string:
		return strconv.ParseFloat(strings.TrimSpace(n), 64)
	case nil:
		return 0, errors.New("missing value")
	default:
		return 0, fmt.Errorf("unsupported type %T", v)
	}
}

// formatNumber prints integral values with a trailing ".0" so expressions
// read the same as the solver's own output.
func formatNumber(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.ContainsAny(s, ".NI") {
		s += ".0"
	}
	return s
}

package config

import "sort"

// Preset is a named starting point for one equation family.
type Preset struct {
	Params map[string]float64
	Y0     float64
	YP0    float64
	TMin   float64
	TMax   float64
}

var Presets = map[string]map[string]*Preset{
	"harmonic": {
		"unit": {
			Params: map[string]float64{"omega": 1.0},
			Y0:     0.0, YP0: 1.0, TMin: 0, TMax: 20,
		},
		"fast": {
			Params: map[string]float64{"omega": 4.0},
			Y0:     1.0, YP0: 0.0, TMin: 0, TMax: 10,
		},
	},
	"damped": {
		"light": {
			Params: map[string]float64{"omega": 1.0, "beta": 0.05},
			Y0:     1.0, YP0: 0.0, TMin: 0, TMax: 60,
		},
		"critical": {
			Params: map[string]float64{"omega": 1.0, "beta": 1.0},
			Y0:     1.0, YP0: 0.0, TMin: 0, TMax: 15,
		},
		"heavy": {
			Params: map[string]float64{"omega": 1.0, "beta": 2.5},
			Y0:     1.0, YP0: 0.0, TMin: 0, TMax: 15,
		},
	},
	"forced": {
		"resonance": {
			Params: map[string]float64{"omega": 1.0, "beta": 0.05, "force": 1.0, "frequency": 1.0},
			Y0:     0.0, YP0: 0.0, TMin: 0, TMax: 100,
		},
		"beats": {
			Params: map[string]float64{"omega": 1.0, "beta": 0.0, "force": 0.5, "frequency": 1.1},
			Y0:     0.0, YP0: 0.0, TMin: 0, TMax: 150,
		},
	},
}

func GetPreset(eqType, preset string) *Preset {
	typePresets, ok := Presets[eqType]
	if !ok {
		return nil
	}
	p, ok := typePresets[preset]
	if !ok {
		return nil
	}
	return p
}

func ListPresets(eqType string) []string {
	typePresets, ok := Presets[eqType]
	if !ok {
		return nil
	}
	names := make([]string, 0, len(typePresets))
	for name := range typePresets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

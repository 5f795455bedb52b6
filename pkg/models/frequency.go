package models

import (
	"encoding/json"
	"fmt"

	"github.com/danielgtaylor/huma/v2"
	"gopkg.in/yaml.v3"
)

// FrequencyBand is an inclusive frequency range in MHz, serialised as [min, max]
type FrequencyBand struct {
	MinMHz float64
	MaxMHz float64
}

// Contains reports whether freqMHz lies inside the band, both ends included
func (b FrequencyBand) Contains(freqMHz float64) bool {
	return b.MinMHz <= freqMHz && freqMHz <= b.MaxMHz
}

// Valid reports whether the band satisfies MinMHz <= MaxMHz
func (b FrequencyBand) Valid() bool {
	return b.MinMHz <= b.MaxMHz
}

// Width returns the band width in MHz
func (b FrequencyBand) Width() float64 {
	return b.MaxMHz - b.MinMHz
}

func (b FrequencyBand) String() string {
	return fmt.Sprintf("%.2f-%.2f MHz", b.MinMHz, b.MaxMHz)
}

// MarshalJSON encodes the band as a two-element array
func (b FrequencyBand) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]float64{b.MinMHz, b.MaxMHz})
}

// UnmarshalJSON decodes a two-element array, min first
func (b *FrequencyBand) UnmarshalJSON(data []byte) error {
	var pair []float64
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("frequency band must be a [min, max] array: %w", err)
	}
	return b.fromPair(pair)
}

// MarshalYAML encodes the band as a flow sequence
func (b FrequencyBand) MarshalYAML() (interface{}, error) {
	return []float64{b.MinMHz, b.MaxMHz}, nil
}

// UnmarshalYAML decodes a two-element sequence, min first
func (b *FrequencyBand) UnmarshalYAML(node *yaml.Node) error {
	var pair []float64
	if err := node.Decode(&pair); err != nil {
		return fmt.Errorf("frequency band must be a [min, max] sequence: %w", err)
	}
	return b.fromPair(pair)
}

// Schema describes the wire form to the OpenAPI document
func (FrequencyBand) Schema(r huma.Registry) *huma.Schema {
	two := 2
	return &huma.Schema{
		Type:        huma.TypeArray,
		Items:       &huma.Schema{Type: huma.TypeNumber},
		MinItems:    &two,
		MaxItems:    &two,
		Description: "Inclusive [min, max] range in MHz",
	}
}

func (b *FrequencyBand) fromPair(pair []float64) error {
	if len(pair) != 2 {
		return fmt.Errorf("frequency band needs exactly 2 values, got %d", len(pair))
	}
	b.MinMHz, b.MaxMHz = pair[0], pair[1]
	return nil
}

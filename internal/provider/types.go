// Package provider defines the pluggable image-generation backends: their
// declarative descriptors, the generic settings validator, and the registry
// that applies the direct-vs-relay dispatch policy to every call.
package provider

import "context"

// SettingKind enumerates the value kinds a setting item can declare.
type SettingKind string

const (
	SettingKindString  SettingKind = "string"
	SettingKindSecret  SettingKind = "secret"
	SettingKindURL     SettingKind = "url"
	SettingKindNumber  SettingKind = "number"
	SettingKindBoolean SettingKind = "boolean"
)

// SettingItem declares one configurable key of a provider.
type SettingItem struct {
	Key      string      `json:"key"`
	Kind     SettingKind `json:"kind"`
	Required bool        `json:"required"`
	Default  any         `json:"defaultValue,omitempty"`
	Min      *float64    `json:"min,omitempty"`
	Max      *float64    `json:"max,omitempty"`
	Options  []string    `json:"options,omitempty"`
}

// Schema is an ordered list of setting items.
type Schema []SettingItem

// Settings is a flat key/value configuration map, loosely typed on input and
// strongly typed after ParseSettings.
type Settings map[string]any

// Model describes one generation capability exposed by a provider.
type Model struct {
	ID                string `json:"modelId"`
	Name              string `json:"name"`
	SupportsImageEdit bool   `json:"supportsImageEdit"`
	EnabledByDefault  bool   `json:"enabledByDefault"`
}

// Descriptor is the static declarative description of one backend.
type Descriptor struct {
	ID               string  `json:"providerId"`
	Name             string  `json:"name"`
	Models           []Model `json:"models"`
	EnabledByDefault bool    `json:"enabledByDefault"`
	// SupportsDirectCall marks providers that are safe to call from an
	// untrusted caller without relaying through the backend.
	SupportsDirectCall bool `json:"supportsDirectCall"`
}

// GenerateRequest is the normalized request passed to any provider.
type GenerateRequest struct {
	ProviderID string `json:"providerId"`
	ModelID    string `json:"modelId"`
	Prompt     string `json:"prompt"`
	N          int    `json:"n,omitempty"`
	// Images holds base64-encoded reference images, no data-URL prefix.
	Images []string `json:"images,omitempty"`
}

// GenerateResponse carries the generated images as base64 strings.
type GenerateResponse struct {
	Images []string `json:"images"`
}

// Provider is the contract implemented by every backend.
type Provider interface {
	Descriptor() Descriptor
	// SettingsSchema returns the current settings schema. It is a method
	// rather than a field because some providers compute their schema from
	// deployment mode.
	SettingsSchema() Schema
	Generate(ctx context.Context, req GenerateRequest, settings Settings) (*GenerateResponse, error)
}

// Model lookup by id within a descriptor.
func (d Descriptor) Model(modelID string) (Model, bool) {
	for _, m := range d.Models {
		if m.ID == modelID {
			return m, true
		}
	}
	return Model{}, false
}

package openapi

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/specwise/specchat/internal/domain"
)

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want domain.SpecFormat
	}{
		{"json object", `{"openapi": "3.0.0"}`, domain.SpecFormatJSON},
		{"json with leading whitespace", "\n\t {\"openapi\": \"3.0.0\"}", domain.SpecFormatJSON},
		{"yaml document", "openapi: 3.0.0\npaths: {}", domain.SpecFormatYAML},
		{"empty", "", domain.SpecFormatYAML},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectFormat([]byte(tt.raw)))
		})
	}
}

func TestParseJSON(t *testing.T) {
	raw := `{
		"openapi": "3.0.0",
		"info": {"title": "Petstore", "version": "1.0.0", "description": "Pets"},
		"paths": {"/pets": {}}
	}`

	doc, err := Parse([]byte(raw), domain.SpecFormatJSON)
	require.NoError(t, err)

	assert.Equal(t, "3.0.0", doc.Version)
	assert.Equal(t, domain.SpecFormatJSON, doc.Format)
	assert.Equal(t, "Petstore", doc.Info.Title)
	assert.Equal(t, "1.0.0", doc.Info.Version)
	assert.Equal(t, "Pets", doc.Info.Description)
	assert.Contains(t, doc.Root, "paths")
}

func TestParseYAML(t *testing.T) {
	raw := `
openapi: 3.1.0
info:
  title: Petstore
  version: 2.0.0
paths:
  /pets:
    get:
      summary: List all pets
`

	doc, err := Parse([]byte(raw), domain.SpecFormatYAML)
	require.NoError(t, err)

	assert.Equal(t, "3.1.0", doc.Version)
	assert.Equal(t, "Petstore", doc.Info.Title)

	paths, ok := AsMap(doc.Root["paths"])
	require.True(t, ok)
	assert.Contains(t, paths, "/pets")
}

func TestParseSwagger2Version(t *testing.T) {
	raw := `{"swagger": "2.0", "info": {"title": "Legacy", "version": "1"}, "paths": {}}`

	doc, err := Parse([]byte(raw), domain.SpecFormatJSON)
	require.NoError(t, err)
	assert.Equal(t, "2.0", doc.Version)
}

func TestParseComponentsOnly(t *testing.T) {
	raw := `{"openapi": "3.0.0", "components": {"schemas": {"Pet": {"type": "object"}}}}`

	_, err := Parse([]byte(raw), domain.SpecFormatJSON)
	require.NoError(t, err)
}

func TestParseRejections(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		format domain.SpecFormat
	}{
		{"empty document", "", domain.SpecFormatJSON},
		{"invalid json", "{not json", domain.SpecFormatJSON},
		{"invalid yaml", "foo: [unclosed", domain.SpecFormatYAML},
		{"missing version field", `{"info": {"title": "x"}, "paths": {}}`, domain.SpecFormatJSON},
		{"neither paths nor components", `{"openapi": "3.0.0", "info": {"title": "x"}}`, domain.SpecFormatJSON},
		{"info not a mapping", `{"openapi": "3.0.0", "info": "bad", "paths": {}}`, domain.SpecFormatJSON},
		{"unknown format", `{"openapi": "3.0.0", "paths": {}}`, domain.SpecFormat("xml")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.raw), tt.format)
			require.Error(t, err)

			var domainErr *domain.DomainError
			require.True(t, errors.As(err, &domainErr))
			assert.Equal(t, domain.ErrCodeValidation, domainErr.Code)
		})
	}
}

func TestParseStructuralRejectionsUseSentinel(t *testing.T) {
	for _, raw := range []string{
		`{"info": {"title": "x"}, "paths": {}}`,
		`{"openapi": "3.0.0", "info": {"title": "x"}}`,
	} {
		_, err := Parse([]byte(raw), domain.SpecFormatJSON)
		require.Error(t, err)

		var domainErr *domain.DomainError
		require.True(t, errors.As(err, &domainErr))
		assert.Equal(t, domain.ErrNotOpenAPI.Message, domainErr.Message)
	}
}

func TestAsMapNormalizesYAMLMaps(t *testing.T) {
	in := map[any]any{"a": 1, "b": "two"}

	out, ok := AsMap(in)
	require.True(t, ok)
	assert.Equal(t, 1, out["a"])
	assert.Equal(t, "two", out["b"])

	_, ok = AsMap(map[any]any{1: "non-string key"})
	assert.False(t, ok)

	_, ok = AsMap("scalar")
	assert.False(t, ok)
}

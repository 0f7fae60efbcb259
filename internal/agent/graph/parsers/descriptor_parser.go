package parsers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/invopop/jsonschema"
	"github.com/xeipuuv/gojsonschema"

	"github.com/defi-rag-assistant/server/internal/agent/model"
	errx "github.com/defi-rag-assistant/server/internal/core/error"
	logx "github.com/defi-rag-assistant/server/pkg/logger"
)

// basic safety limits to avoid pathological inputs
const (
	maxContentLen = 128 * 1024 // 128KB
	maxErrSnippet = 200        // limit error snippet size
)

const codeFence = "```"

var (
	descriptorSchemaOnce sync.Once
	descriptorSchema     *gojsonschema.Schema
	descriptorSchemaErr  error
)

// DescriptorSchema returns the JSON Schema the extractor output is validated against.
// It is reflected from model.QueryDescriptor, so every field without omitempty is required.
func DescriptorSchema() (*gojsonschema.Schema, error) {
	descriptorSchemaOnce.Do(func() {
		r := &jsonschema.Reflector{
			Anonymous:                 true,
			DoNotReference:            true,
			AllowAdditionalProperties: true,
		}
		s := r.Reflect(&model.QueryDescriptor{})
		// gojsonschema does not know the 2020-12 meta schema
		s.Version = ""

		raw, err := json.Marshal(s)
		if err != nil {
			descriptorSchemaErr = fmt.Errorf("marshal descriptor schema: %w", err)
			return
		}
		descriptorSchema, descriptorSchemaErr = gojsonschema.NewSchema(gojsonschema.NewBytesLoader(raw))
		if descriptorSchemaErr != nil {
			descriptorSchemaErr = fmt.Errorf("compile descriptor schema: %w", descriptorSchemaErr)
		}
	})
	return descriptorSchema, descriptorSchemaErr
}

// ParseQueryDescriptor decodes the extractor model's reply. The reply must be a
// single JSON object, optionally wrapped in one Markdown code fence. Any error
// means the caller should fall back to model.DefaultQueryDescriptor.
func ParseQueryDescriptor(content string) (desc model.QueryDescriptor, err error) {
	// panic safety
	defer func() {
		if r := recover(); r != nil {
			logx.Error().Str("component", "descriptor_parser").Msgf("panic recovered: %v", r)
			err = errx.New(fmt.Errorf("descriptor parser panic"), http.StatusInternalServerError, errx.SystemErrorMessage)
			desc = model.QueryDescriptor{}
		}
	}()

	if len(content) > maxContentLen {
		return model.QueryDescriptor{}, fmt.Errorf("content too large: %d bytes", len(content))
	}

	body := stripCodeFence(content)
	if body == "" {
		return model.QueryDescriptor{}, fmt.Errorf("empty content")
	}

	schema, err := DescriptorSchema()
	if err != nil {
		return model.QueryDescriptor{}, err
	}

	result, err := schema.Validate(gojsonschema.NewStringLoader(body))
	if err != nil {
		return model.QueryDescriptor{}, fmt.Errorf("invalid json: %s: %w", safeSnippet(body), err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return model.QueryDescriptor{}, fmt.Errorf("schema violation: %s", strings.Join(msgs, "; "))
	}

	if err := json.Unmarshal([]byte(body), &desc); err != nil {
		return model.QueryDescriptor{}, fmt.Errorf("decode descriptor: %w", err)
	}
	if !desc.Intent.Valid() {
		return model.QueryDescriptor{}, fmt.Errorf("unknown intent %q", desc.Intent)
	}

	return desc.Normalize(), nil
}

// stripCodeFence removes a single surrounding ``` or ```json fence.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, codeFence) {
		return s
	}
	nl := strings.IndexByte(s, '\n')
	if nl < 0 {
		return ""
	}
	s = s[nl+1:]
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, codeFence)
	return strings.TrimSpace(s)
}

// --- helpers ---

// safeSnippet returns valid UTF-8 of at most maxErrSnippet bytes, cut on a rune boundary.
func safeSnippet(s string) string {
	s = strings.ToValidUTF8(strings.TrimSpace(s), "\uFFFD")
	if len(s) <= maxErrSnippet {
		return s
	}
	cut := maxErrSnippet
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

package server

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/getkin/kin-openapi/openapi3"
)

//go:embed openapi.yaml
var openapiSpec []byte

// loadOpenAPI は埋め込んだ OpenAPI ドキュメントを読み込んで検証する
func loadOpenAPI(ctx context.Context) (*openapi3.T, error) {
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromData(openapiSpec)
	if err != nil {
		return nil, fmt.Errorf("OpenAPIドキュメントの読み込みに失敗: %w", err)
	}
	if err := doc.Validate(ctx); err != nil {
		return nil, fmt.Errorf("OpenAPIドキュメントが不正です: %w", err)
	}
	return doc, nil
}

// schemaValidator はリクエストボディをスキーマで検証する
type schemaValidator struct {
	schema *openapi3.Schema
}

func newSchemaValidator(doc *openapi3.T, name string) (*schemaValidator, error) {
	ref, ok := doc.Components.Schemas[name]
	if !ok || ref.Value == nil {
		return nil, fmt.Errorf("スキーマ %s が見つかりません", name)
	}
	return &schemaValidator{schema: ref.Value}, nil
}

// Validate は JSON をデコードした値を検証する
func (v *schemaValidator) Validate(value any) error {
	return v.schema.VisitJSON(value)
}

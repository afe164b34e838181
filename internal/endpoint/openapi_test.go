package endpoint

import (
	"testing"

	"github.com/mcp2api/internal/spec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const petsSpecJSON = `{
  "openapi": "3.0.0",
  "info": {"title": "Pets", "version": "1.0.0"},
  "servers": [{"url": "https://api.pets.example"}],
  "components": {
    "securitySchemes": {
      "ApiKeyAuth": {"type": "apiKey", "in": "header", "name": "X-API-Key"}
    }
  },
  "paths": {
    "/pets": {
      "summary": "pet collection",
      "get": {
        "summary": "List pets",
        "tags": ["pets"],
        "parameters": [
          {"name": "limit", "in": "query", "schema": {"type": "integer"}}
        ],
        "responses": {
          "200": {
            "description": "ok",
            "content": {"application/json": {"schema": {"type": "array"}}}
          }
        }
      },
      "post": {
        "operationId": "createPet",
        "summary": "Create a pet",
        "tags": ["pets"],
        "security": [{"ApiKeyAuth": []}],
        "requestBody": {
          "required": true,
          "content": {"application/json": {"schema": {"type": "object"}}}
        },
        "responses": {"201": {"description": "created"}}
      }
    },
    "/pets/{petId}": {
      "get": {
        "summary": "Get one pet",
        "security": [],
        "responses": {"200": {"description": "ok"}}
      }
    }
  }
}`

func parsePetsSpec(t *testing.T) *spec.OpenAPIDocument {
	t.Helper()
	doc, err := spec.ParseOpenAPI([]byte(petsSpecJSON))
	require.NoError(t, err)
	return doc
}

func TestNormalizeOpenAPI_EndpointSet(t *testing.T) {
	cat := NormalizeOpenAPI(parsePetsSpec(t), "")

	assert.Equal(t, FormatOpenAPI, cat.Format)
	assert.Equal(t, "https://api.pets.example", cat.BaseURL)
	require.Len(t, cat.Endpoints, 3)

	// 路径按字典序，同路径内动词按固定顺序
	assert.Equal(t, "GET-/pets", cat.Endpoints[0].ID)
	assert.Equal(t, "createPet", cat.Endpoints[1].ID)
	assert.Equal(t, "GET-/pets/{petId}", cat.Endpoints[2].ID)
}

func TestNormalizeOpenAPI_DerivedID(t *testing.T) {
	cat := NormalizeOpenAPI(parsePetsSpec(t), "")

	ep, ok := cat.ByID("GET-/pets")
	require.True(t, ok)
	assert.Equal(t, "GET", ep.Method)
	assert.Equal(t, "/pets", ep.Locator)
	assert.Equal(t, "List pets", ep.Summary)
	assert.Equal(t, []string{"pets"}, ep.Tags)
}

func TestNormalizeOpenAPI_IDCollisionSuffix(t *testing.T) {
	doc, err := spec.ParseOpenAPI([]byte(`{
		"openapi": "3.0.0",
		"paths": {
			"/a": {"get": {"operationId": "op", "responses": {}}},
			"/b": {"get": {"operationId": "op", "responses": {}}},
			"/c": {"get": {"operationId": "op", "responses": {}}}
		}
	}`))
	require.NoError(t, err)

	cat := NormalizeOpenAPI(doc, "https://x.example")
	require.Len(t, cat.Endpoints, 3)
	assert.Equal(t, "op", cat.Endpoints[0].ID)
	assert.Equal(t, "op-2", cat.Endpoints[1].ID)
	assert.Equal(t, "op-3", cat.Endpoints[2].ID)
}

func TestNormalizeOpenAPI_UndeclaredPathParam(t *testing.T) {
	cat := NormalizeOpenAPI(parsePetsSpec(t), "")

	ep, ok := cat.ByID("GET-/pets/{petId}")
	require.True(t, ok)

	// 语法上出现的 {petId} 未被声明，也要进参数列表
	require.Len(t, ep.Parameters, 1)
	assert.Equal(t, "petId", ep.Parameters[0].Name)
	assert.Equal(t, LocationPath, ep.Parameters[0].Location)
	assert.True(t, ep.Parameters[0].Required)
	assert.Equal(t, "string", ep.Parameters[0].Type)
}

func TestNormalizeOpenAPI_Security(t *testing.T) {
	cat := NormalizeOpenAPI(parsePetsSpec(t), "")

	undeclared, _ := cat.ByID("GET-/pets")
	assert.False(t, undeclared.Unauthenticated())
	assert.Empty(t, undeclared.Security)

	secured, _ := cat.ByID("createPet")
	assert.False(t, secured.Unauthenticated())
	assert.Equal(t, []string{"ApiKeyAuth"}, secured.Security)

	// security: [] 显式声明无需认证
	open, _ := cat.ByID("GET-/pets/{petId}")
	assert.True(t, open.Unauthenticated())

	scheme, ok := cat.Schemes["ApiKeyAuth"]
	require.True(t, ok)
	assert.Equal(t, "apiKey", scheme.Type)
	assert.Equal(t, "X-API-Key", scheme.KeyName)
}

func TestNormalizeOpenAPI_RequestBodyAndResponses(t *testing.T) {
	cat := NormalizeOpenAPI(parsePetsSpec(t), "")

	create, _ := cat.ByID("createPet")
	require.Len(t, create.Bodies, 1)
	assert.Equal(t, "application/json", create.Bodies[0].MediaType)
	assert.True(t, create.Bodies[0].Required)

	list, _ := cat.ByID("GET-/pets")
	resp, ok := list.Responses["200"]
	require.True(t, ok)
	assert.Equal(t, "ok", resp.Description)
	assert.NotNil(t, resp.Schema)
}

func TestNormalizeOpenAPI_EmptyCollectionsNotNil(t *testing.T) {
	cat := NormalizeOpenAPI(parsePetsSpec(t), "")

	for _, ep := range cat.Endpoints {
		assert.NotNil(t, ep.Tags, ep.ID)
		assert.NotNil(t, ep.Parameters, ep.ID)
		assert.NotNil(t, ep.Bodies, ep.ID)
		assert.NotNil(t, ep.Responses, ep.ID)
		assert.NotNil(t, ep.Security, ep.ID)
	}
}

func TestNormalizeOpenAPI_SwaggerV2(t *testing.T) {
	doc, err := spec.ParseOpenAPI([]byte(`
swagger: "2.0"
host: legacy.example
basePath: /v1
schemes: [https]
securityDefinitions:
  key_auth:
    type: apiKey
    in: query
    name: api_key
paths:
  /items:
    post:
      summary: Create item
      parameters:
        - name: payload
          in: body
          required: true
          schema:
            type: object
        - name: dryRun
          in: query
          type: boolean
      responses:
        "200":
          description: ok
          schema:
            type: object
`))
	require.NoError(t, err)
	require.True(t, doc.IsSwagger2())

	cat := NormalizeOpenAPI(doc, "")
	assert.Equal(t, "https://legacy.example/v1", cat.BaseURL)

	ep, ok := cat.ByID("POST-/items")
	require.True(t, ok)

	// v2 的 in:body 参数映射为请求体，不出现在参数列表
	require.Len(t, ep.Bodies, 1)
	assert.Equal(t, "application/json", ep.Bodies[0].MediaType)
	assert.True(t, ep.Bodies[0].Required)

	require.Len(t, ep.Parameters, 1)
	assert.Equal(t, "dryRun", ep.Parameters[0].Name)
	assert.Equal(t, "boolean", ep.Parameters[0].Type)

	resp := ep.Responses["200"]
	assert.NotNil(t, resp.Schema)

	scheme := cat.Schemes["key_auth"]
	assert.Equal(t, "query", scheme.In)
	assert.Equal(t, "api_key", scheme.KeyName)
}

func TestNormalizeOpenAPI_NonOperationKeysSkipped(t *testing.T) {
	doc, err := spec.ParseOpenAPI([]byte(`{
		"openapi": "3.0.0",
		"paths": {
			"/things": {
				"summary": "shared summary",
				"description": "shared description",
				"parameters": [{"name": "shared", "in": "query"}],
				"get": {"responses": {}}
			}
		}
	}`))
	require.NoError(t, err)

	cat := NormalizeOpenAPI(doc, "https://x.example")
	require.Len(t, cat.Endpoints, 1)
	assert.Equal(t, "GET-/things", cat.Endpoints[0].ID)
}

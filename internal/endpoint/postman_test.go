package endpoint

import (
	"testing"

	"github.com/mcp2api/internal/spec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const usersCollectionJSON = `{
  "info": {"name": "Users API", "schema": "https://schema.getpostman.com/json/collection/v2.1.0/collection.json"},
  "variable": [
    {"key": "baseUrl", "value": "https://api.test"},
    {"key": "version", "value": "v1"}
  ],
  "item": [
    {
      "name": "Users",
      "item": [
        {
          "name": "Get User",
          "request": {
            "method": "GET",
            "url": {
              "raw": "{{baseUrl}}/users/:id",
              "variable": [{"key": "id", "value": "42", "description": "user id"}]
            },
            "description": "Fetch a single user"
          }
        },
        {
          "name": "Create User!",
          "request": {
            "method": "POST",
            "url": "{{baseUrl}}/users",
            "header": [
              {"key": "Content-Type", "value": "application/json"},
              {"key": "X-Debug", "value": "1", "disabled": true}
            ],
            "body": {"mode": "raw", "raw": "{\"name\":\"alice\"}"}
          }
        }
      ]
    },
    {
      "name": "Search",
      "request": {
        "method": "GET",
        "url": {
          "raw": "{{baseUrl}}/search?q=test&verbose=true",
          "query": [
            {"key": "q", "value": "test"},
            {"key": "verbose", "value": "true"},
            {"key": "debug", "value": "1", "disabled": true}
          ]
        }
      }
    }
  ]
}`

func parseUsersCollection(t *testing.T) *spec.PostmanCollection {
	t.Helper()
	col, err := spec.ParsePostmanCollection([]byte(usersCollectionJSON))
	require.NoError(t, err)
	return col
}

func TestNormalizePostman_Slugification(t *testing.T) {
	cat := NormalizePostman(parseUsersCollection(t), nil, "")

	require.Len(t, cat.Endpoints, 3)
	assert.Equal(t, "Get_User", cat.Endpoints[0].ID)
	assert.Equal(t, "Create_User", cat.Endpoints[1].ID)
	assert.Equal(t, "Search", cat.Endpoints[2].ID)
}

func TestNormalizePostman_FolderPath(t *testing.T) {
	cat := NormalizePostman(parseUsersCollection(t), nil, "")

	getUser, ok := cat.ByID("Get_User")
	require.True(t, ok)
	assert.Equal(t, "Users", getUser.FolderPath)
	assert.Equal(t, "Get User", getUser.Summary)
	assert.Equal(t, "Fetch a single user", getUser.Description)

	search, _ := cat.ByID("Search")
	assert.Empty(t, search.FolderPath)
}

func TestNormalizePostman_PathParams(t *testing.T) {
	cat := NormalizePostman(parseUsersCollection(t), nil, "")

	getUser, _ := cat.ByID("Get_User")
	assert.Equal(t, "{{baseUrl}}/users/:id", getUser.Locator)

	require.Len(t, getUser.Parameters, 1)
	p := getUser.Parameters[0]
	assert.Equal(t, "id", p.Name)
	assert.Equal(t, LocationPath, p.Location)
	assert.True(t, p.Required)
	// :id 段和 url.variable 声明的是同一个参数，不重复，且声明的元数据保留
	assert.Equal(t, "42", p.Example)
	assert.Equal(t, "user id", p.Description)
}

func TestNormalizePostman_UndeclaredColonSegment(t *testing.T) {
	col, err := spec.ParsePostmanCollection([]byte(`{
		"info": {"name": "mixed"},
		"item": [{
			"name": "Get Post",
			"request": {
				"method": "GET",
				"url": {
					"raw": "{{baseUrl}}/users/:userId/posts/:postId",
					"variable": [{"key": "userId", "value": "7", "description": "owner"}]
				}
			}
		}]
	}`))
	require.NoError(t, err)

	cat := NormalizePostman(col, nil, "")
	ep, ok := cat.ByID("Get_Post")
	require.True(t, ok)
	require.Len(t, ep.Parameters, 2)

	declared := ep.Parameters[0]
	assert.Equal(t, "userId", declared.Name)
	assert.Equal(t, "7", declared.Example)
	assert.Equal(t, "owner", declared.Description)

	// 未声明的 :postId 段按语法补全，无元数据
	bare := ep.Parameters[1]
	assert.Equal(t, "postId", bare.Name)
	assert.Equal(t, LocationPath, bare.Location)
	assert.True(t, bare.Required)
	assert.Nil(t, bare.Example)
}

func TestNormalizePostman_QueryAndHeaderParams(t *testing.T) {
	cat := NormalizePostman(parseUsersCollection(t), nil, "")

	search, _ := cat.ByID("Search")
	names := make(map[string]string)
	for _, p := range search.Parameters {
		names[p.Name] = p.Location
	}
	assert.Equal(t, LocationQuery, names["q"])
	assert.Equal(t, LocationQuery, names["verbose"])
	_, hasDisabled := names["debug"]
	assert.False(t, hasDisabled)

	create, _ := cat.ByID("Create_User")
	headerCount := 0
	for _, p := range create.Parameters {
		if p.Location == LocationHeader {
			headerCount++
			assert.Equal(t, "Content-Type", p.Name)
		}
	}
	assert.Equal(t, 1, headerCount)
}

func TestNormalizePostman_RawBody(t *testing.T) {
	cat := NormalizePostman(parseUsersCollection(t), nil, "")

	create, _ := cat.ByID("Create_User")

	var bodyParam *Parameter
	for i := range create.Parameters {
		if create.Parameters[i].Location == LocationBody {
			bodyParam = &create.Parameters[i]
		}
	}
	require.NotNil(t, bodyParam)
	assert.Equal(t, "body", bodyParam.Name)
	assert.Equal(t, `{"name":"alice"}`, bodyParam.Example)

	require.Len(t, create.Bodies, 1)
	assert.Equal(t, "application/json", create.Bodies[0].MediaType)
}

func TestNormalizePostman_EnvironmentMerge(t *testing.T) {
	enabled := true
	disabled := false
	env := &spec.PostmanEnvironment{
		Name: "staging",
		Values: []spec.PostmanEnvValue{
			{Key: "baseUrl", Value: "https://staging.test", Enabled: &enabled},
			{Key: "token", Value: "ignored", Enabled: &disabled},
			{Key: "region", Value: "eu"},
		},
	}

	cat := NormalizePostman(parseUsersCollection(t), env, "")

	// 环境文件覆盖集合变量，禁用的变量不参与
	assert.Equal(t, "https://staging.test", cat.Environment["baseUrl"])
	assert.Equal(t, "v1", cat.Environment["version"])
	assert.Equal(t, "eu", cat.Environment["region"])
	_, ok := cat.Environment["token"]
	assert.False(t, ok)
}

func TestNormalizePostman_IDCollision(t *testing.T) {
	col, err := spec.ParsePostmanCollection([]byte(`{
		"info": {"name": "dup"},
		"item": [
			{"name": "Ping", "request": {"method": "GET", "url": "https://a.test/ping"}},
			{
				"name": "Admin",
				"item": [
					{"name": "Ping", "request": {"method": "GET", "url": "https://a.test/admin/ping"}},
					{"name": "Ping", "request": {"method": "GET", "url": "https://a.test/admin/ping2"}}
				]
			}
		]
	}`))
	require.NoError(t, err)

	cat := NormalizePostman(col, nil, "")
	require.Len(t, cat.Endpoints, 3)

	assert.Equal(t, "Ping", cat.Endpoints[0].ID)
	// 同名冲突先用文件夹路径消歧，再退到数字后缀
	assert.Equal(t, "Ping_Admin", cat.Endpoints[1].ID)
	assert.Equal(t, "Ping_Admin_2", cat.Endpoints[2].ID)
}

func TestSlugify(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Get User", "Get_User"},
		{"Create User!", "Create_User"},
		{"  a -- b  ", "a_b"},
		{"___", ""},
		{"ok_name", "ok_name"},
		{"100% coverage", "100_coverage"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, slugify(tt.in), tt.in)
	}
}

func TestEndpoint_PathParamNames(t *testing.T) {
	openapi := &Endpoint{Source: FormatOpenAPI, Locator: "/users/{id}/posts/{postId}"}
	names := openapi.PathParamNames()
	assert.True(t, names["id"])
	assert.True(t, names["postId"])
	assert.Len(t, names, 2)

	postman := &Endpoint{Source: FormatPostman, Locator: "{{baseUrl}}/users/:id?full=true"}
	names = postman.PathParamNames()
	assert.True(t, names["id"])
	assert.True(t, names["baseUrl"])
	assert.Len(t, names, 2)
}

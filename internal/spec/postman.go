package spec

import (
	"encoding/json"
	"fmt"
)

// PostmanCollection 表示Postman集合(v2.x)
type PostmanCollection struct {
	Info      PostmanInfo       `json:"info"`
	Items     []PostmanItem     `json:"item"`
	Variables []PostmanVariable `json:"variable"`
}

// PostmanInfo 表示集合元数据
type PostmanInfo struct {
	Name        string      `json:"name"`
	Description PostmanText `json:"description"`
	Schema      string      `json:"schema"`
}

// PostmanItem 表示集合条目树中的一个节点
// Items非空表示文件夹，Request非空表示叶子请求
type PostmanItem struct {
	Name        string          `json:"name"`
	Description PostmanText     `json:"description"`
	Items       []PostmanItem   `json:"item"`
	Request     *PostmanRequest `json:"request"`
}

// IsFolder 判断该条目是否为文件夹
func (i *PostmanItem) IsFolder() bool {
	return i.Request == nil && i.Items != nil
}

// PostmanRequest 表示一个请求定义
type PostmanRequest struct {
	Method      string       `json:"method"`
	URL         PostmanURL   `json:"url"`
	Description PostmanText  `json:"description"`
	Header      []PostmanKV  `json:"header"`
	Body        *PostmanBody `json:"body"`
}

// PostmanURL 表示请求URL，JSON中既可能是裸字符串也可能是对象
type PostmanURL struct {
	Raw       string            `json:"raw"`
	Variables []PostmanVariable `json:"variable"`
	Query     []PostmanKV       `json:"query"`
}

// UnmarshalJSON 同时接受字符串形式和对象形式的URL
func (u *PostmanURL) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err == nil {
		u.Raw = raw
		return nil
	}

	type urlAlias PostmanURL
	var obj urlAlias
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("解析URL字段失败: %w", err)
	}
	*u = PostmanURL(obj)
	return nil
}

// PostmanKV 表示键值对条目（请求头、查询参数等）
type PostmanKV struct {
	Key         string      `json:"key"`
	Value       string      `json:"value"`
	Description PostmanText `json:"description"`
	Disabled    bool        `json:"disabled"`
}

// PostmanBody 表示请求体，目前只消费raw模式
type PostmanBody struct {
	Mode string `json:"mode"`
	Raw  string `json:"raw"`
}

// PostmanVariable 表示一个变量声明
type PostmanVariable struct {
	Key         string      `json:"key"`
	Value       string      `json:"value"`
	Description PostmanText `json:"description"`
}

// PostmanEnvironment 表示Postman环境文件
type PostmanEnvironment struct {
	Name   string            `json:"name"`
	Values []PostmanEnvValue `json:"values"`
}

// PostmanEnvValue 表示环境中的一个变量
type PostmanEnvValue struct {
	Key     string `json:"key"`
	Value   string `json:"value"`
	Enabled *bool  `json:"enabled"` // 缺省视为启用
}

// PostmanText 表示Postman中既可能是字符串也可能是富文本对象的描述字段
type PostmanText string

// UnmarshalJSON 将字符串或 {content: "..."} 形式统一解析为纯文本
func (t *PostmanText) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*t = PostmanText(s)
		return nil
	}

	var obj struct {
		Content string `json:"content"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		// 无法识别的描述形式按空文本处理
		*t = ""
		return nil
	}
	*t = PostmanText(obj.Content)
	return nil
}

// String 返回纯文本内容
func (t PostmanText) String() string {
	return string(t)
}

// ParsePostmanCollection 解析Postman集合JSON
func ParsePostmanCollection(data []byte) (*PostmanCollection, error) {
	var col PostmanCollection
	if err := json.Unmarshal(data, &col); err != nil {
		return nil, fmt.Errorf("解析Postman集合失败: %w", err)
	}
	return &col, nil
}

// ParsePostmanEnvironment 解析Postman环境文件JSON
func ParsePostmanEnvironment(data []byte) (*PostmanEnvironment, error) {
	var env PostmanEnvironment
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("解析Postman环境失败: %w", err)
	}
	return &env, nil
}

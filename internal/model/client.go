package model

import (
	"regexp"
	"strings"
	"time"
)

// Client 客户
type Client struct {
	ID        int64     `json:"id"`
	UserID    string    `json:"user_id"` // 所属用户（多租户隔离）
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone,omitempty"`
	Company   string    `json:"company,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FullName 全名
func (c *Client) FullName() string {
	return strings.TrimSpace(c.FirstName + " " + c.LastName)
}

// ClientInput 创建/更新客户的字段（空值表示未提供）
type ClientInput struct {
	FirstName string
	LastName  string
	Email     string
	Phone     string
	Company   string
}

// Empty 是否没有任何字段
func (in ClientInput) Empty() bool {
	return in == ClientInput{}
}

// ChangedFields 提供了哪些字段
func (in ClientInput) ChangedFields() []string {
	var fields []string
	if in.FirstName != "" {
		fields = append(fields, "first_name")
	}
	if in.LastName != "" {
		fields = append(fields, "last_name")
	}
	if in.Email != "" {
		fields = append(fields, "email")
	}
	if in.Phone != "" {
		fields = append(fields, "phone")
	}
	if in.Company != "" {
		fields = append(fields, "company")
	}
	return fields
}

// Outcome 业务操作结果
type Outcome int

const (
	OutcomeOK Outcome = iota
	OutcomeNotFound
	OutcomeInvalid
)

// ClientResult 客户操作结果（预期内的失败不走 error）
type ClientResult struct {
	Outcome Outcome
	Client  *Client
	Matches int    // 按姓名查询时的匹配数量
	Field   string // OutcomeInvalid 时出错的字段
	Reason  string
}

var emailPattern = regexp.MustCompile(`^[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}$`)

// IsEmail 邮箱格式是否合法
func IsEmail(s string) bool {
	return emailPattern.MatchString(strings.TrimSpace(s))
}

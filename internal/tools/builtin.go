package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/bizdesk/bizdesk-go/internal/model"
	"go.uber.org/zap"
)

// ClientOperations 客户业务服务
type ClientOperations interface {
	CreateClient(ctx context.Context, userID string, in model.ClientInput) (model.ClientResult, error)
	FindClient(ctx context.Context, userID, query string) (model.ClientResult, error)
	ListClients(ctx context.Context, userID, filter string) ([]model.Client, error)
	UpdateClient(ctx context.Context, userID, query string, in model.ClientInput) (model.ClientResult, error)
}

var clientFieldProps = map[string]Property{
	"first_name": {Type: "string", Description: "客户名"},
	"last_name":  {Type: "string", Description: "客户姓"},
	"email":      {Type: "string", Description: "邮箱地址", Format: "email"},
	"phone":      {Type: "string", Description: "电话号码"},
	"company":    {Type: "string", Description: "公司名称"},
}

func props(base map[string]Property, extra map[string]Property) map[string]Property {
	out := make(map[string]Property, len(base)+len(extra))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}

// RegisterBuiltinTools 注册内置命令
//
// client.* 由 clients 处理；project/task/proposal 只声明参数（用于意图识别和补全），
// 执行时返回 ErrNotImplemented。
func RegisterBuiltinTools(registry *Registry, clients ClientOperations, logger *zap.Logger) error {
	logger.Info("注册内置命令...")

	commands := []*Tool{
		{
			Name:        "client.create",
			Description: "Create a new client record",
			Parameters: ParameterSchema{
				Type:       "object",
				Properties: clientFieldProps,
				Required:   []string{"first_name", "last_name", "email"},
			},
			Handler: createClientHandler(clients),
		},
		{
			Name:        "client.read",
			Description: "Show the details of one client, looked up by email or name",
			Parameters: ParameterSchema{
				Type: "object",
				Properties: map[string]Property{
					"name":  {Type: "string", Description: "客户姓名或邮箱"},
					"email": {Type: "string", Description: "邮箱地址", Format: "email"},
				},
				Required: []string{"name"},
			},
			Handler: readClientHandler(clients),
		},
		{
			Name:        "client.list",
			Description: "List clients, optionally filtered by name, email or company",
			Parameters: ParameterSchema{
				Type: "object",
				Properties: map[string]Property{
					"filter": {Type: "string", Description: "过滤条件"},
				},
			},
			Handler: listClientsHandler(clients),
		},
		{
			Name:        "client.update",
			Description: "Update fields of an existing client, looked up by email or name",
			Parameters: ParameterSchema{
				Type: "object",
				Properties: props(clientFieldProps, map[string]Property{
					"name": {Type: "string", Description: "要修改的客户（姓名或邮箱）"},
				}),
				Required: []string{"name"},
			},
			Handler: updateClientHandler(clients),
		},
	}

	commands = append(commands, entitySchemas()...)

	for _, tool := range commands {
		if err := registry.Register(tool); err != nil {
			return err
		}
	}

	logger.Info("内置命令注册完成", zap.Int("count", len(commands)))
	return nil
}

// entitySchemas 项目、任务、提案的参数定义
func entitySchemas() []*Tool {
	type entity struct {
		name     string
		titleKey string
		extra    map[string]Property
	}
	entities := []entity{
		{"project", "name", map[string]Property{
			"client":      {Type: "string", Description: "所属客户"},
			"description": {Type: "string", Description: "项目描述"},
		}},
		{"task", "title", map[string]Property{
			"project":  {Type: "string", Description: "所属项目"},
			"due_date": {Type: "string", Description: "截止日期"},
		}},
		{"proposal", "title", map[string]Property{
			"client": {Type: "string", Description: "提案对象客户"},
		}},
	}

	var out []*Tool
	for _, e := range entities {
		fields := props(map[string]Property{
			e.titleKey: {Type: "string", Description: e.name + " " + e.titleKey},
		}, e.extra)
		out = append(out,
			&Tool{
				Name:        e.name + ".create",
				Description: fmt.Sprintf("Create a new %s", e.name),
				Parameters:  ParameterSchema{Type: "object", Properties: fields, Required: []string{e.titleKey}},
			},
			&Tool{
				Name:        e.name + ".read",
				Description: fmt.Sprintf("Show one %s", e.name),
				Parameters:  ParameterSchema{Type: "object", Properties: fields, Required: []string{e.titleKey}},
			},
			&Tool{
				Name:        e.name + ".list",
				Description: fmt.Sprintf("List %ss", e.name),
				Parameters: ParameterSchema{Type: "object", Properties: map[string]Property{
					"filter": {Type: "string", Description: "过滤条件"},
				}},
			},
			&Tool{
				Name:        e.name + ".update",
				Description: fmt.Sprintf("Update an existing %s", e.name),
				Parameters:  ParameterSchema{Type: "object", Properties: fields, Required: []string{e.titleKey}},
			},
		)
	}
	return out
}

func clientInput(params map[string]string) model.ClientInput {
	return model.ClientInput{
		FirstName: strings.TrimSpace(params["first_name"]),
		LastName:  strings.TrimSpace(params["last_name"]),
		Email:     strings.TrimSpace(params["email"]),
		Phone:     strings.TrimSpace(params["phone"]),
		Company:   strings.TrimSpace(params["company"]),
	}
}

// lookupQuery 查询目标：优先用邮箱
func lookupQuery(params map[string]string) string {
	if email := strings.TrimSpace(params["email"]); model.IsEmail(email) {
		return email
	}
	return strings.TrimSpace(params["name"])
}

func createClientHandler(clients ClientOperations) ToolHandler {
	return func(ctx context.Context, req Request) (*Result, error) {
		res, err := clients.CreateClient(ctx, req.UserID, clientInput(req.Params))
		if err != nil {
			return nil, err
		}

		switch res.Outcome {
		case model.OutcomeOK:
			c := res.Client
			return &Result{
				Success: true,
				Message: fmt.Sprintf("Client %s has been created successfully (%s).", c.FullName(), c.Email),
				Data:    c,
			}, nil
		case model.OutcomeInvalid:
			return &Result{
				Success: false,
				Message: fmt.Sprintf("I couldn't create the client: %s.", res.Reason),
				Data:    map[string]string{"field": res.Field},
			}, nil
		default:
			return &Result{Success: false, Message: "I couldn't create the client."}, nil
		}
	}
}

func readClientHandler(clients ClientOperations) ToolHandler {
	return func(ctx context.Context, req Request) (*Result, error) {
		query := lookupQuery(req.Params)
		res, err := clients.FindClient(ctx, req.UserID, query)
		if err != nil {
			return nil, err
		}

		switch res.Outcome {
		case model.OutcomeOK:
			msg := describeClient(res.Client)
			if res.Matches > 1 {
				msg += fmt.Sprintf("\n(%d other clients also match %q.)", res.Matches-1, query)
			}
			return &Result{Success: true, Message: msg, Data: res.Client}, nil
		case model.OutcomeNotFound:
			return &Result{
				Success: false,
				Message: fmt.Sprintf("Client %q was not found.", query),
			}, nil
		default:
			return &Result{Success: false, Message: fmt.Sprintf("I couldn't look up that client: %s.", res.Reason)}, nil
		}
	}
}

func listClientsHandler(clients ClientOperations) ToolHandler {
	return func(ctx context.Context, req Request) (*Result, error) {
		filter := strings.TrimSpace(req.Params["filter"])
		list, err := clients.ListClients(ctx, req.UserID, filter)
		if err != nil {
			return nil, err
		}

		names := make([]string, len(list))
		for i := range list {
			names[i] = list[i].FullName()
		}

		noun := "clients"
		if len(list) == 1 {
			noun = "client"
		}
		msg := fmt.Sprintf("Found %d %s", len(list), noun)
		if filter != "" {
			msg += fmt.Sprintf(" matching %q", filter)
		}
		if len(names) > 0 {
			msg += ": " + strings.Join(names, ", ")
		}
		return &Result{Success: true, Message: msg + ".", Data: list}, nil
	}
}

func updateClientHandler(clients ClientOperations) ToolHandler {
	return func(ctx context.Context, req Request) (*Result, error) {
		query := strings.TrimSpace(req.Params["name"])
		in := clientInput(req.Params)
		if query == "" || strings.EqualFold(query, in.Email) {
			// 邮箱作为查询条件时不视为修改
			query = in.Email
			in.Email = ""
		}

		if in.Empty() {
			return &Result{
				Success: false,
				Message: fmt.Sprintf("What would you like to change for %s? I can update the name, email, phone or company.", query),
			}, nil
		}

		res, err := clients.UpdateClient(ctx, req.UserID, query, in)
		if err != nil {
			return nil, err
		}

		switch res.Outcome {
		case model.OutcomeOK:
			labels := make([]string, 0, len(in.ChangedFields()))
			for _, f := range in.ChangedFields() {
				labels = append(labels, model.FieldLabel(f))
			}
			return &Result{
				Success: true,
				Message: fmt.Sprintf("Client %s has been updated (%s).", res.Client.FullName(), strings.Join(labels, ", ")),
				Data:    res.Client,
			}, nil
		case model.OutcomeNotFound:
			return &Result{Success: false, Message: fmt.Sprintf("Client %q was not found.", query)}, nil
		default:
			return &Result{Success: false, Message: fmt.Sprintf("I couldn't update the client: %s.", res.Reason)}, nil
		}
	}
}

func describeClient(c *model.Client) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Here are the details for %s:\n- Email: %s", c.FullName(), c.Email)
	if c.Phone != "" {
		fmt.Fprintf(&b, "\n- Phone: %s", c.Phone)
	}
	if c.Company != "" {
		fmt.Fprintf(&b, "\n- Company: %s", c.Company)
	}
	return b.String()
}

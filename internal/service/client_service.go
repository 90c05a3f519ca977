package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bizdesk/bizdesk-go/internal/model"
	"github.com/bizdesk/bizdesk-go/internal/store"
	"go.uber.org/zap"
)

// ClientService 客户业务服务
type ClientService struct {
	repo   store.ClientRepository
	logger *zap.Logger
}

// NewClientService 创建客户服务
func NewClientService(repo store.ClientRepository, logger *zap.Logger) *ClientService {
	return &ClientService{repo: repo, logger: logger}
}

func validateClient(c *model.Client) error {
	if strings.TrimSpace(c.FirstName) == "" {
		return NewValidationError("first_name", "first name is required")
	}
	if strings.TrimSpace(c.LastName) == "" {
		return NewValidationError("last_name", "last name is required")
	}
	if strings.TrimSpace(c.Email) == "" {
		return NewValidationError("email", "email is required")
	}
	if !model.IsEmail(c.Email) {
		return NewValidationError("email", fmt.Sprintf("%q is not a valid email address", c.Email))
	}
	return nil
}

func invalid(err error) (model.ClientResult, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return model.ClientResult{Outcome: model.OutcomeInvalid, Field: ve.Field, Reason: ve.Message}, true
	}
	return model.ClientResult{}, false
}

// CreateClient 新建客户
func (s *ClientService) CreateClient(ctx context.Context, userID string, in model.ClientInput) (model.ClientResult, error) {
	c := &model.Client{
		UserID:    userID,
		FirstName: in.FirstName,
		LastName:  in.LastName,
		Email:     strings.ToLower(in.Email),
		Phone:     in.Phone,
		Company:   in.Company,
	}
	if err := validateClient(c); err != nil {
		res, _ := invalid(err)
		return res, nil
	}

	if err := s.repo.CreateClient(ctx, c); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return model.ClientResult{
				Outcome: model.OutcomeInvalid,
				Field:   "email",
				Reason:  fmt.Sprintf("a client with email %s already exists", c.Email),
			}, nil
		}
		return model.ClientResult{}, fmt.Errorf("创建客户失败: %w", err)
	}

	s.logger.Info("客户已创建",
		zap.String("userId", userID),
		zap.Int64("clientId", c.ID))
	return model.ClientResult{Outcome: model.OutcomeOK, Client: c, Matches: 1}, nil
}

// FindClient 查询客户：邮箱精确匹配，否则按姓名模糊匹配
func (s *ClientService) FindClient(ctx context.Context, userID, query string) (model.ClientResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return model.ClientResult{Outcome: model.OutcomeNotFound}, nil
	}

	if model.IsEmail(query) {
		c, err := s.repo.GetClientByEmail(ctx, userID, query)
		if errors.Is(err, store.ErrNotFound) {
			return model.ClientResult{Outcome: model.OutcomeNotFound}, nil
		}
		if err != nil {
			return model.ClientResult{}, fmt.Errorf("查询客户失败: %w", err)
		}
		return model.ClientResult{Outcome: model.OutcomeOK, Client: c, Matches: 1}, nil
	}

	matches, err := s.repo.FindClientsByName(ctx, userID, query)
	if err != nil {
		return model.ClientResult{}, fmt.Errorf("查询客户失败: %w", err)
	}
	if len(matches) == 0 {
		return model.ClientResult{Outcome: model.OutcomeNotFound}, nil
	}
	return model.ClientResult{Outcome: model.OutcomeOK, Client: &matches[0], Matches: len(matches)}, nil
}

// ListClients 列出客户
func (s *ClientService) ListClients(ctx context.Context, userID, filter string) ([]model.Client, error) {
	clients, err := s.repo.ListClients(ctx, userID, filter)
	if err != nil {
		return nil, fmt.Errorf("查询客户列表失败: %w", err)
	}
	return clients, nil
}

// UpdateClient 修改客户，in 中的空字段保持不变
func (s *ClientService) UpdateClient(ctx context.Context, userID, query string, in model.ClientInput) (model.ClientResult, error) {
	found, err := s.FindClient(ctx, userID, query)
	if err != nil || found.Outcome != model.OutcomeOK {
		return found, err
	}

	c := *found.Client
	if in.FirstName != "" {
		c.FirstName = in.FirstName
	}
	if in.LastName != "" {
		c.LastName = in.LastName
	}
	if in.Email != "" {
		c.Email = strings.ToLower(in.Email)
	}
	if in.Phone != "" {
		c.Phone = in.Phone
	}
	if in.Company != "" {
		c.Company = in.Company
	}
	if err := validateClient(&c); err != nil {
		res, _ := invalid(err)
		return res, nil
	}

	if err := s.repo.UpdateClient(ctx, &c); err != nil {
		switch {
		case errors.Is(err, store.ErrDuplicate):
			return model.ClientResult{
				Outcome: model.OutcomeInvalid,
				Field:   "email",
				Reason:  fmt.Sprintf("a client with email %s already exists", c.Email),
			}, nil
		case errors.Is(err, store.ErrNotFound):
			return model.ClientResult{Outcome: model.OutcomeNotFound}, nil
		}
		return model.ClientResult{}, fmt.Errorf("修改客户失败: %w", err)
	}

	s.logger.Info("客户已修改",
		zap.String("userId", userID),
		zap.Int64("clientId", c.ID),
		zap.Strings("fields", in.ChangedFields()))
	return model.ClientResult{Outcome: model.OutcomeOK, Client: &c, Matches: found.Matches}, nil
}

// CountClients 用户的客户数量
func (s *ClientService) CountClients(ctx context.Context, userID string) (int64, error) {
	return s.repo.CountClients(ctx, userID)
}

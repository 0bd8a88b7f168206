package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"gorm.io/gorm"

	"zeechat/internal/auth"
	"zeechat/internal/config"
	"zeechat/internal/models"
	"zeechat/internal/storage"
)

// AuthService 负责注册、登录和登出。核心域只消费它产出的已认证身份。
type AuthService struct {
	userRepo  storage.UserRepository
	blacklist auth.TokenBlacklist
	authCfg   config.AuthConfig
}

// NewAuthService creates an AuthService. blacklist 可为 nil（登出退化为客户端丢弃令牌）。
func NewAuthService(userRepo storage.UserRepository, blacklist auth.TokenBlacklist, authCfg config.AuthConfig) *AuthService {
	return &AuthService{userRepo: userRepo, blacklist: blacklist, authCfg: authCfg}
}

// RegisterInput 是注册请求的入参。
type RegisterInput struct {
	UserName string
	FullName string
	Email    string
	Password string
}

// Register 创建用户并返回签发的令牌。
func (s *AuthService) Register(ctx context.Context, input RegisterInput) (*models.User, string, error) {
	if strings.TrimSpace(input.UserName) == "" || strings.TrimSpace(input.Password) == "" {
		return nil, "", fmt.Errorf("%w: 用户名和密码不能为空", ErrInvalidInput)
	}

	if _, err := s.userRepo.GetByUserName(ctx, input.UserName); err == nil {
		return nil, "", fmt.Errorf("%w: 用户名已被占用", ErrInvalidInput)
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, "", fmt.Errorf("查询用户名失败: %w", err)
	}

	hash, err := auth.HashPassword(input.Password)
	if err != nil {
		return nil, "", fmt.Errorf("哈希密码失败: %w", err)
	}

	user := &models.User{
		UserName:     input.UserName,
		FullName:     input.FullName,
		Email:        input.Email,
		PasswordHash: hash,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, "", fmt.Errorf("创建用户失败: %w", err)
	}

	token, err := auth.GenerateToken(user.ID, user.UserName, s.authCfg)
	if err != nil {
		return nil, "", err
	}
	log.Printf("用户 %s (ID %d) 注册成功", user.UserName, user.ID)
	return user, token, nil
}

// Login 校验凭证并返回签发的令牌。
func (s *AuthService) Login(ctx context.Context, userName, password string) (*models.User, string, error) {
	user, err := s.userRepo.GetByUserName(ctx, userName)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, "", fmt.Errorf("%w: 用户名或密码错误", ErrNotAuthorized)
		}
		return nil, "", fmt.Errorf("查询用户失败: %w", err)
	}
	if !auth.CheckPasswordHash(password, user.PasswordHash) {
		return nil, "", fmt.Errorf("%w: 用户名或密码错误", ErrNotAuthorized)
	}

	token, err := auth.GenerateToken(user.ID, user.UserName, s.authCfg)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

// Logout 把令牌的 JTI 加入黑名单，直到其自然过期。
func (s *AuthService) Logout(ctx context.Context, claims *auth.Claims) error {
	if s.blacklist == nil {
		return nil
	}
	if claims.ID == "" || claims.ExpiresAt == nil {
		return fmt.Errorf("%w: 令牌缺少吊销所需的声明", ErrInvalidInput)
	}
	if err := s.blacklist.Add(ctx, claims.ID, claims.ExpiresAt.Time); err != nil {
		return fmt.Errorf("吊销令牌失败: %w", err)
	}
	log.Printf("用户 %d 的令牌 %s 已吊销", claims.UserID, claims.ID)
	return nil
}

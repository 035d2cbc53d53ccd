// Package auth は操作者アカウント（ログイン・JWT 発行・ロール判定）を扱う。
package auth

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

const (
	RoleAdmin    = "admin"
	RoleOperator = "operator"

	tokenTTL = 12 * time.Hour
)

var (
	ErrAlreadyExists = errors.New("already exists")
	ErrNotFound      = errors.New("not found")
	ErrAuthFailed    = errors.New("authentication failed")
	ErrDisabled      = errors.New("account disabled")
	ErrInvalidRole   = errors.New("invalid role")
)

type Service struct {
	store  OperatorStore
	secret []byte
	now    func() time.Time
}

func NewService(store OperatorStore, secret []byte) *Service {
	return &Service{store: store, secret: secret, now: time.Now}
}

func (s *Service) Secret() []byte { return s.secret }

// Login: 成功時は HS256 の JWT（sub=操作者ID, role）を返す
func (s *Service) Login(ctx context.Context, id, password string) (string, error) {
	op, err := s.store.GetByID(ctx, id)
	if err != nil {
		return "", err
	}
	if op == nil {
		return "", ErrAuthFailed
	}
	if op.IsDisabled {
		return "", ErrDisabled
	}
	if err := bcrypt.CompareHashAndPassword([]byte(op.PasswordHash), []byte(password)); err != nil {
		return "", ErrAuthFailed
	}

	now := s.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  op.ID,
		"role": op.Role,
		"iat":  now.Unix(),
		"exp":  now.Add(tokenTTL).Unix(),
	})
	return token.SignedString(s.secret)
}

func (s *Service) Register(ctx context.Context, id, password, role string) error {
	if role != RoleAdmin && role != RoleOperator {
		return ErrInvalidRole
	}
	exists, err := s.store.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if exists != nil {
		return ErrAlreadyExists
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	return s.store.Create(ctx, &Operator{ID: id, PasswordHash: string(hash), Role: role})
}

func (s *Service) Delete(ctx context.Context, id string) error {
	n, err := s.store.Delete(ctx, id)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// EnsureAdmin: 起動時に管理者アカウントが無ければ作る。password 未設定なら何もしない
func (s *Service) EnsureAdmin(ctx context.Context, id, password string) error {
	if id == "" || password == "" {
		log.Printf("[WARN] auth: admin password not configured; skipping seed")
		return nil
	}
	err := s.Register(ctx, id, password, RoleAdmin)
	if errors.Is(err, ErrAlreadyExists) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}
	log.Printf("[INFO] auth: seeded admin account %q", id)
	return nil
}

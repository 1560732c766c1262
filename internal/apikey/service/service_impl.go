package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/usagegate/usagegate/internal/apikey/domain"
	"github.com/usagegate/usagegate/internal/clock"
	"github.com/usagegate/usagegate/internal/orgcontext"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const keyScheme = "ug"

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	repo  domain.Repository
	genID *snowflake.Node
	clock clock.Clock
}

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	Repo  domain.Repository
	GenID *snowflake.Node
	Clock clock.Clock
}

func New(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("apikey.service"),
		repo:  p.Repo,
		genID: p.GenID,
		clock: p.Clock,
	}
}

func (s *Service) Create(ctx context.Context, name string) (*domain.SecretResponse, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return nil, domain.ErrInvalidOrganization
	}

	prefix, err := randomHex(6)
	if err != nil {
		return nil, err
	}
	secret, err := randomHex(24)
	if err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now().UTC()
	key := &domain.APIKey{
		ID:         s.genID.Generate(),
		OrgID:      orgID,
		Name:       strings.TrimSpace(name),
		Prefix:     prefix,
		SecretHash: string(hash),
		IsActive:   true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.repo.Create(ctx, s.db, key); err != nil {
		return nil, err
	}

	return &domain.SecretResponse{
		Prefix: prefix,
		APIKey: fmt.Sprintf("%s_%s_%s", keyScheme, prefix, secret),
	}, nil
}

func (s *Service) Verify(ctx context.Context, rawKey string) (snowflake.ID, error) {
	parts := strings.SplitN(strings.TrimSpace(rawKey), "_", 3)
	if len(parts) != 3 || parts[0] != keyScheme {
		return 0, domain.ErrInvalidKey
	}
	prefix, secret := parts[1], parts[2]

	key, err := s.repo.FindByPrefix(ctx, s.db, prefix)
	if err != nil {
		return 0, err
	}
	if key == nil {
		return 0, domain.ErrInvalidKey
	}

	if err := bcrypt.CompareHashAndPassword([]byte(key.SecretHash), []byte(secret)); err != nil {
		return 0, domain.ErrInvalidKey
	}

	now := s.clock.Now().UTC()
	key.LastUsedAt = &now
	key.UpdatedAt = now
	if err := s.repo.Update(ctx, s.db, key); err != nil {
		s.log.Warn("api key last-used update failed", zap.Error(err))
	}

	return key.OrgID, nil
}

func (s *Service) Revoke(ctx context.Context, prefix string) error {
	key, err := s.repo.FindByPrefix(ctx, s.db, prefix)
	if err != nil {
		return err
	}
	if key == nil {
		return domain.ErrKeyNotFound
	}

	key.IsActive = false
	key.UpdatedAt = s.clock.Now().UTC()
	return s.repo.Update(ctx, s.db, key)
}

func randomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

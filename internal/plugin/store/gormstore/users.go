package gormstore

import (
	"context"
	"strings"
	"time"

	"github.com/chirino/chat-service/internal/model"
	registrystore "github.com/chirino/chat-service/internal/registry/store"
	"github.com/google/uuid"
)

func (s *Store) CreateUser(ctx context.Context, req registrystore.CreateUserRequest) (*model.UserView, error) {
	username := strings.TrimSpace(req.Username)
	email := strings.TrimSpace(req.Email)
	if username == "" {
		return nil, &registrystore.ValidationError{Field: "username", Message: "username is required"}
	}
	if email == "" || !strings.Contains(email, "@") {
		return nil, &registrystore.ValidationError{Field: "email", Message: "a valid email is required"}
	}

	user := model.User{
		ID:         uuid.New(),
		Username:   username,
		Email:      email,
		Bio:        req.Bio,
		IsActive:   true,
		DateJoined: time.Now().UTC(),
	}
	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		if s.isUniqueViolation(err) {
			return nil, &registrystore.ConflictError{Message: "a user with that username or email already exists"}
		}
		return nil, err
	}
	view := model.ToUserView(user)
	return &view, nil
}

func (s *Store) ListUsers(ctx context.Context, page int) (*registrystore.PagedUsers, error) {
	q := s.db.WithContext(ctx).Model(&model.User{}).Where("is_active = ?", true)

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, err
	}

	var rows []model.User
	err := q.Order("username ASC").
		Offset(pageOffset(page)).
		Limit(registrystore.PageSize).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	views := make([]model.UserView, 0, len(rows))
	for _, u := range rows {
		views = append(views, model.ToUserView(u))
	}
	return &registrystore.PagedUsers{Data: views, Total: total, Page: normalizePage(page)}, nil
}

func (s *Store) GetUser(ctx context.Context, userID uuid.UUID) (*model.UserView, error) {
	var user model.User
	err := s.db.WithContext(ctx).
		Where("id = ? AND is_active = ?", userID, true).
		First(&user).Error
	if err != nil {
		return nil, translateNotFound(err, "user", userID.String())
	}
	view := model.ToUserView(user)
	return &view, nil
}

func (s *Store) UpdateUser(ctx context.Context, userID uuid.UUID, update registrystore.UserUpdate) (*model.UserView, error) {
	var user model.User
	err := s.db.WithContext(ctx).
		Where("id = ? AND is_active = ?", userID, true).
		First(&user).Error
	if err != nil {
		return nil, translateNotFound(err, "user", userID.String())
	}

	if update.Email != nil {
		email := strings.TrimSpace(*update.Email)
		if email == "" || !strings.Contains(email, "@") {
			return nil, &registrystore.ValidationError{Field: "email", Message: "a valid email is required"}
		}
		user.Email = email
	}
	if update.Bio != nil {
		user.Bio = *update.Bio
	}

	if err := s.db.WithContext(ctx).Save(&user).Error; err != nil {
		if s.isUniqueViolation(err) {
			return nil, &registrystore.ConflictError{Message: "a user with that email already exists"}
		}
		return nil, err
	}
	view := model.ToUserView(user)
	return &view, nil
}

func (s *Store) DeactivateUser(ctx context.Context, userID uuid.UUID) error {
	// Soft delete only: the row stays so conversations and messages keep a
	// valid sender reference.
	result := s.db.WithContext(ctx).
		Model(&model.User{}).
		Where("id = ? AND is_active = ?", userID, true).
		Update("is_active", false)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return notFound("user", userID.String())
	}
	return nil
}

package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apperrors "cdm/internal/errors"
	"cdm/internal/model"
)

func strPtr(s string) *string { return &s }

func TestProfileService_GetProfileUsesCache(t *testing.T) {
	repo := new(MockUserRepository)
	cache := newMemoryCache()
	repo.On("FindByID", mock.Anything, uint(3)).Return(&model.User{ID: 3, Email: "c@example.com", Nickname: "C"}, nil).Once()

	svc := NewProfileService(repo, cache, NewValidator(), nil)

	first, err := svc.GetProfile(context.Background(), 3)
	require.NoError(t, err)
	second, err := svc.GetProfile(context.Background(), 3)
	require.NoError(t, err)

	assert.Equal(t, first.Email, second.Email)
	assert.Contains(t, cache.items, "profile:3")
	repo.AssertNumberOfCalls(t, "FindByID", 1)
}

func TestProfileService_GetProfileNotFound(t *testing.T) {
	repo := new(MockUserRepository)
	repo.On("FindByID", mock.Anything, uint(9)).Return(nil, apperrors.ErrUserNotFound)

	svc := NewProfileService(repo, nil, NewValidator(), nil)
	_, err := svc.GetProfile(context.Background(), 9)
	assert.ErrorIs(t, err, apperrors.ErrUserNotFound)
}

func TestProfileService_UpdateProfile(t *testing.T) {
	tests := []struct {
		name          string
		current       *model.User
		input         UpdateProfileInput
		setupMock     func(*MockUserRepository)
		expectedError error
		check         func(*testing.T, *Profile)
	}{
		{
			name:    "sets username and preferences",
			current: &model.User{ID: 1, Nickname: "A"},
			input:   UpdateProfileInput{Username: strPtr("gandalf"), Preferences: strPtr(`{"theme":"dark"}`)},
			setupMock: func(r *MockUserRepository) {
				r.On("ExistsByUsername", mock.Anything, "gandalf", uint(1)).Return(false, nil)
				r.On("UpdateProfile", mock.Anything, mock.Anything).Return(nil)
			},
			check: func(t *testing.T, p *Profile) {
				assert.Equal(t, "gandalf", *p.Username)
				assert.Equal(t, `{"theme":"dark"}`, *p.Preferences)
			},
		},
		{
			name:    "username taken by someone else",
			current: &model.User{ID: 1, Nickname: "A"},
			input:   UpdateProfileInput{Username: strPtr("gandalf")},
			setupMock: func(r *MockUserRepository) {
				r.On("ExistsByUsername", mock.Anything, "gandalf", uint(1)).Return(true, nil)
			},
			expectedError: apperrors.ErrUsernameTaken,
		},
		{
			name:    "unchanged username skips uniqueness check",
			current: &model.User{ID: 1, Nickname: "A", Username: strPtr("gandalf")},
			input:   UpdateProfileInput{Username: strPtr("gandalf"), Nickname: strPtr("Grey")},
			setupMock: func(r *MockUserRepository) {
				r.On("UpdateProfile", mock.Anything, mock.Anything).Return(nil)
			},
			check: func(t *testing.T, p *Profile) {
				assert.Equal(t, "Grey", p.Nickname)
			},
		},
		{
			name:    "blank username is ignored",
			current: &model.User{ID: 1, Nickname: "A", Username: strPtr("gandalf")},
			input:   UpdateProfileInput{Username: strPtr("   ")},
			setupMock: func(r *MockUserRepository) {
				r.On("UpdateProfile", mock.Anything, mock.Anything).Return(nil)
			},
			check: func(t *testing.T, p *Profile) {
				assert.Equal(t, "gandalf", *p.Username)
			},
		},
		{
			name:    "unique index race",
			current: &model.User{ID: 1, Nickname: "A"},
			input:   UpdateProfileInput{Username: strPtr("frodo")},
			setupMock: func(r *MockUserRepository) {
				r.On("ExistsByUsername", mock.Anything, "frodo", uint(1)).Return(false, nil)
				r.On("UpdateProfile", mock.Anything, mock.Anything).Return(apperrors.ErrUsernameTaken)
			},
			expectedError: apperrors.ErrUsernameTaken,
		},
		{
			name:    "empty preferences clears them",
			current: &model.User{ID: 1, Nickname: "A", Preferences: strPtr(`{}`)},
			input:   UpdateProfileInput{Preferences: strPtr("")},
			setupMock: func(r *MockUserRepository) {
				r.On("UpdateProfile", mock.Anything, mock.Anything).Return(nil)
			},
			check: func(t *testing.T, p *Profile) {
				assert.Nil(t, p.Preferences)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(MockUserRepository)
			repo.On("FindByID", mock.Anything, tt.current.ID).Return(tt.current, nil)
			tt.setupMock(repo)

			cache := newMemoryCache()
			cache.items["profile:1"] = []byte(`{"id":1}`)
			svc := NewProfileService(repo, cache, NewValidator(), nil)

			profile, err := svc.UpdateProfile(context.Background(), tt.current.ID, tt.input)
			if tt.expectedError != nil {
				assert.ErrorIs(t, err, tt.expectedError)
				assert.Nil(t, profile)
				return
			}
			require.NoError(t, err)
			tt.check(t, profile)
			assert.NotContains(t, cache.items, "profile:1")
			repo.AssertExpectations(t)
		})
	}
}

func TestProfileService_UpdateProfileValidation(t *testing.T) {
	repo := new(MockUserRepository)
	svc := NewProfileService(repo, nil, NewValidator(), nil)

	_, err := svc.UpdateProfile(context.Background(), 1, UpdateProfileInput{Username: strPtr("ab")})
	fields := validationFields(t, err)
	assert.Equal(t, []string{"Username must be between 3 and 30 characters"}, fields["username"])

	_, err = svc.UpdateProfile(context.Background(), 1, UpdateProfileInput{Preferences: strPtr("not json")})
	fields = validationFields(t, err)
	assert.Contains(t, fields, "preferences")

	repo.AssertNotCalled(t, "FindByID", mock.Anything, mock.Anything)
}

func TestProfileService_IsUsernameAvailable(t *testing.T) {
	repo := new(MockUserRepository)
	repo.On("ExistsByUsername", mock.Anything, "gandalf", uint(2)).Return(true, nil)
	repo.On("ExistsByUsername", mock.Anything, "gandalf", uint(1)).Return(false, nil)

	svc := NewProfileService(repo, nil, NewValidator(), nil)
	ctx := context.Background()

	ok, err := svc.IsUsernameAvailable(ctx, "  ", 1)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = svc.IsUsernameAvailable(ctx, "gandalf", 2)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = svc.IsUsernameAvailable(ctx, "gandalf", 1)
	require.NoError(t, err)
	assert.True(t, ok)
}

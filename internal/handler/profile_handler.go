package handler

import (
	"io"
	"mime/multipart"
	"net/http"

	"github.com/labstack/echo/v4"

	"cdm/internal/errors"
	"cdm/internal/service"
)

// AvatarFormField is the multipart field carrying the avatar file.
const AvatarFormField = "avatar"

// ProfileHandler handles profile and avatar endpoints.
type ProfileHandler struct {
	profiles service.ProfileService
	avatars  service.AvatarService
}

// NewProfileHandler creates a new profile handler.
func NewProfileHandler(profiles service.ProfileService, avatars service.AvatarService) *ProfileHandler {
	return &ProfileHandler{profiles: profiles, avatars: avatars}
}

// AvatarResponse is returned after a successful upload.
type AvatarResponse struct {
	AvatarURL string `json:"avatarUrl"`
}

// UsernameAvailabilityResponse reports whether a username is free.
type UsernameAvailabilityResponse struct {
	Username  string `json:"username"`
	Available bool   `json:"available"`
}

// GetProfile godoc
// @Summary Get the current user's profile
// @Tags users
// @Produce json
// @Security BearerAuth
// @Success 200 {object} service.Profile
// @Failure 401 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /users/profile [get]
func (h *ProfileHandler) GetProfile(c echo.Context) error {
	userID, err := currentUserID(c)
	if err != nil {
		return errorResponse(err)
	}
	profile, err := h.profiles.GetProfile(c.Request().Context(), userID)
	if err != nil {
		return errorResponse(err)
	}
	return c.JSON(http.StatusOK, profile)
}

// UpdateProfile godoc
// @Summary Update the current user's profile
// @Tags users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body service.UpdateProfileInput true "Profile changes"
// @Success 200 {object} service.Profile
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 409 {object} errors.ErrorResponse
// @Router /users/profile [put]
func (h *ProfileHandler) UpdateProfile(c echo.Context) error {
	userID, err := currentUserID(c)
	if err != nil {
		return errorResponse(err)
	}
	var req service.UpdateProfileInput
	if err := c.Bind(&req); err != nil {
		return badRequest("Invalid request body")
	}
	profile, err := h.profiles.UpdateProfile(c.Request().Context(), userID, req)
	if err != nil {
		return errorResponse(err)
	}
	return c.JSON(http.StatusOK, profile)
}

// UploadAvatar godoc
// @Summary Upload an avatar for the current user
// @Tags users
// @Accept mpfd
// @Produce json
// @Security BearerAuth
// @Param avatar formData file true "Avatar image (.jpg, .jpeg, .png, max 2MB)"
// @Success 200 {object} AvatarResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Router /users/avatar [post]
func (h *ProfileHandler) UploadAvatar(c echo.Context) error {
	userID, err := currentUserID(c)
	if err != nil {
		return errorResponse(err)
	}

	file := firstFile(c)
	if file == nil {
		return errorResponse(errors.ErrNoFile)
	}
	if err := h.avatars.Validate(file.Filename, file.Size); err != nil {
		return errorResponse(err)
	}

	src, err := file.Open()
	if err != nil {
		return errorResponse(err)
	}
	defer src.Close()

	data, err := io.ReadAll(io.LimitReader(src, service.MaxAvatarSize+1))
	if err != nil {
		return errorResponse(err)
	}

	url, err := h.avatars.Upload(c.Request().Context(), userID, file.Filename, data)
	if err != nil {
		return errorResponse(err)
	}
	return c.JSON(http.StatusOK, AvatarResponse{AvatarURL: url})
}

// UsernameAvailable godoc
// @Summary Check whether a username is free
// @Tags users
// @Produce json
// @Security BearerAuth
// @Param username query string true "Username"
// @Success 200 {object} UsernameAvailabilityResponse
// @Failure 401 {object} errors.ErrorResponse
// @Router /users/username-available [get]
func (h *ProfileHandler) UsernameAvailable(c echo.Context) error {
	userID, err := currentUserID(c)
	if err != nil {
		return errorResponse(err)
	}
	username := c.QueryParam("username")
	available, err := h.profiles.IsUsernameAvailable(c.Request().Context(), username, userID)
	if err != nil {
		return errorResponse(err)
	}
	return c.JSON(http.StatusOK, UsernameAvailabilityResponse{Username: username, Available: available})
}

// firstFile prefers the avatar field and falls back to the first file part of any field.
func firstFile(c echo.Context) *multipart.FileHeader {
	form, err := c.MultipartForm()
	if err != nil || form == nil {
		return nil
	}
	if files := form.File[AvatarFormField]; len(files) > 0 {
		return files[0]
	}
	for _, files := range form.File {
		if len(files) > 0 {
			return files[0]
		}
	}
	return nil
}

package handlers

import (
	"fmt"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"heartlink/internal/config"
	"heartlink/internal/models"
	redisc "heartlink/internal/redis"
	"heartlink/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type UserHandler struct {
	db      *gorm.DB
	redis   *redisc.Client
	cfg     *config.Config
	storage *services.StorageService
	push    *services.PushService
}

type UpdateProfileRequest struct {
	Name      string   `json:"name,omitempty"`
	Bio       *string  `json:"bio,omitempty"`
	Location  *string  `json:"location,omitempty"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
	Hobbies   []uint   `json:"hobbies,omitempty"`
}

type ReportUserRequest struct {
	ReportedID  uint   `json:"reported_id" binding:"required"`
	Reason      string `json:"reason" binding:"required"`
	Description string `json:"description,omitempty"`
}

type RegisterDeviceRequest struct {
	Token string `json:"token" binding:"required"`
}

func NewUserHandler(db *gorm.DB, redis *redisc.Client, cfg *config.Config, storage *services.StorageService, push *services.PushService) *UserHandler {
	return &UserHandler{db: db, redis: redis, cfg: cfg, storage: storage, push: push}
}

func (h *UserHandler) GetProfile(c *gin.Context) {
	userID, _ := c.Get("user_id")

	var user models.User
	if err := h.db.Preload("ProfilePhotos").Preload("Hobbies").Where("id = ?", userID).First(&user).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	// Missing hobby list or location is not an error; the profile renders
	// with empty defaults.
	if user.Hobbies == nil {
		user.Hobbies = []models.Hobby{}
	}

	c.JSON(http.StatusOK, gin.H{"user": user})
}

func (h *UserHandler) GetUser(c *gin.Context) {
	userID, _ := c.Get("user_id")
	targetID := c.Param("user_id")

	var blocked models.BlockedUser
	if err := h.db.Where("blocker_id = ? AND blocked_id = ?", targetID, userID).First(&blocked).Error; err == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	var user models.User
	if err := h.db.Preload("ProfilePhotos").Preload("Hobbies").
		Where("id = ? AND is_active = ?", targetID, true).First(&user).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": user})
}

func (h *UserHandler) UpdateProfile(c *gin.Context) {
	userID, _ := c.Get("user_id")

	var req UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var user models.User
	if err := h.db.Where("id = ?", userID).First(&user).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	if req.Name != "" {
		user.Name = req.Name
	}
	if req.Bio != nil {
		user.Bio = req.Bio
	}
	if req.Location != nil {
		user.Location = req.Location
	}
	if req.Latitude != nil {
		user.Latitude = req.Latitude
	}
	if req.Longitude != nil {
		user.Longitude = req.Longitude
	}

	if len(req.Hobbies) > 0 {
		h.db.Where("user_id = ?", userID).Delete(&models.UserHobby{})
		for _, hobbyID := range req.Hobbies {
			userHobby := models.UserHobby{
				UserID:  userID.(uint),
				HobbyID: hobbyID,
			}
			h.db.Create(&userHobby)
		}
	}

	user.ProfileDone = user.Bio != nil && user.Name != ""

	if err := h.db.Save(&user).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update profile"})
		return
	}

	h.db.Preload("ProfilePhotos").Preload("Hobbies").Where("id = ?", userID).First(&user)

	c.JSON(http.StatusOK, gin.H{"message": "Profile updated successfully", "user": user})
}

func (h *UserHandler) ListHobbies(c *gin.Context) {
	var hobbies []models.Hobby
	if err := h.db.Order("category, name").Find(&hobbies).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch hobbies"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"hobbies": hobbies})
}

func (h *UserHandler) UploadPhoto(c *gin.Context) {
	userID, _ := c.Get("user_id")

	file, header, err := c.Request.FormFile("photo")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No photo provided"})
		return
	}
	defer file.Close()

	if err := h.validateImageFile(header); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ext := filepath.Ext(header.Filename)
	objectKey := fmt.Sprintf("profile_photos/%d_%s%s", userID, uuid.New().String(), ext)

	url, err := h.storage.UploadFile(c.Request.Context(), file, header.Size, objectKey, header.Header.Get("Content-Type"))
	if err != nil {
		logrus.WithError(err).Error("photo upload failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to upload photo"})
		return
	}

	var photoCount int64
	h.db.Model(&models.ProfilePhoto{}).Where("user_id = ?", userID).Count(&photoCount)

	photo := models.ProfilePhoto{
		UserID:    userID.(uint),
		URL:       url,
		IsPrimary: photoCount == 0,
		Order:     int(photoCount),
	}

	if err := h.db.Create(&photo).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save photo record"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": "Photo uploaded successfully", "photo": photo})
}

func (h *UserHandler) DeletePhoto(c *gin.Context) {
	userID, _ := c.Get("user_id")
	photoID := c.Param("id")

	var photo models.ProfilePhoto
	if err := h.db.Where("id = ? AND user_id = ?", photoID, userID).First(&photo).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Photo not found"})
		return
	}

	if err := h.storage.DeleteFile(c.Request.Context(), photo.URL); err != nil {
		// Keep going; the DB record is the source of truth for the UI.
		logrus.WithError(err).Warn("failed to delete photo from storage")
	}

	if err := h.db.Delete(&photo).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete photo"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Photo deleted successfully"})
}

func (h *UserHandler) BlockUser(c *gin.Context) {
	userID, _ := c.Get("user_id")
	blockedID := c.Param("user_id")

	var target models.User
	if err := h.db.Where("id = ?", blockedID).First(&target).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	block := models.BlockedUser{BlockerID: userID.(uint), BlockedID: target.ID}
	if err := h.db.Where("blocker_id = ? AND blocked_id = ?", userID, target.ID).
		FirstOrCreate(&block).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to block user"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "User blocked successfully"})
}

func (h *UserHandler) UnblockUser(c *gin.Context) {
	userID, _ := c.Get("user_id")
	blockedID := c.Param("user_id")

	if err := h.db.Where("blocker_id = ? AND blocked_id = ?", userID, blockedID).
		Delete(&models.BlockedUser{}).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to unblock user"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "User unblocked successfully"})
}

func (h *UserHandler) ReportUser(c *gin.Context) {
	userID, _ := c.Get("user_id")

	var req ReportUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	report := models.Report{
		ReporterID: userID.(uint),
		ReportedID: req.ReportedID,
		Reason:     req.Reason,
	}
	if req.Description != "" {
		report.Description = &req.Description
	}

	if err := h.db.Create(&report).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to submit report"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": "Report submitted successfully"})
}

func (h *UserHandler) RegisterDevice(c *gin.Context) {
	userID, _ := c.Get("user_id")

	var req RegisterDeviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.push.RegisterToken(c.Request.Context(), userID.(uint), req.Token); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to register device"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Device registered"})
}

func (h *UserHandler) validateImageFile(header *multipart.FileHeader) error {
	if header.Size > h.cfg.MaxFileSize {
		return fmt.Errorf("file too large, max %d bytes", h.cfg.MaxFileSize)
	}

	contentType := header.Header.Get("Content-Type")
	for _, allowed := range h.cfg.AllowedImageTypes {
		if strings.EqualFold(contentType, allowed) {
			return nil
		}
	}
	return fmt.Errorf("unsupported image type %q", contentType)
}

package handlers

import (
	"net/http"
	"strconv"
	"time"

	"heartlink/internal/config"
	"heartlink/internal/models"
	redisc "heartlink/internal/redis"
	"heartlink/internal/services"
	"heartlink/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type AuthHandler struct {
	db    *gorm.DB
	redis *redisc.Client
	cfg   *config.Config
	chat  *services.ChatService
	deck  *services.DeckService
}

type RegisterRequest struct {
	Email       string `json:"email" binding:"required,email"`
	Phone       string `json:"phone,omitempty"`
	Password    string `json:"password" binding:"required,min=8"`
	Name        string `json:"name" binding:"required"`
	DateOfBirth string `json:"date_of_birth" binding:"required"`
	Gender      string `json:"gender" binding:"required,oneof=male female other"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type VerifyOTPRequest struct {
	Email string `json:"email" binding:"required,email"`
	Code  string `json:"code" binding:"required"`
}

type ResendOTPRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

func NewAuthHandler(db *gorm.DB, redis *redisc.Client, cfg *config.Config, chat *services.ChatService, deck *services.DeckService) *AuthHandler {
	return &AuthHandler{db: db, redis: redis, cfg: cfg, chat: chat, deck: deck}
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	dob, err := time.Parse("2006-01-02", req.DateOfBirth)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid date format. Use YYYY-MM-DD"})
		return
	}

	age := time.Since(dob).Hours() / 24 / 365
	if age < 18 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "You must be 18 or older to use this app"})
		return
	}

	var existingUser models.User
	if err := h.db.Where("email = ?", req.Email).First(&existingUser).Error; err == nil {
		c.JSON(http.StatusConflict, gin.H{"error": "User already exists with this email"})
		return
	}

	var phone *string
	if req.Phone != "" {
		formattedPhone := utils.FormatPhoneNumber(req.Phone)
		phone = &formattedPhone

		if err := h.db.Where("phone = ?", formattedPhone).First(&existingUser).Error; err == nil {
			c.JSON(http.StatusConflict, gin.H{"error": "User already exists with this phone number"})
			return
		}
	}

	hashedPassword, err := utils.HashPassword(req.Password)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to process password"})
		return
	}

	user := models.User{
		Email:        req.Email,
		Phone:        phone,
		PasswordHash: hashedPassword,
		Name:         req.Name,
		DateOfBirth:  dob,
		Gender:       req.Gender,
		IsVerified:   !h.cfg.OTPEnabled, // Auto-verify if OTP is disabled
		IsActive:     true,
	}

	if err := h.db.Create(&user).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create user"})
		return
	}

	if h.cfg.OTPEnabled {
		code, err := h.issueOTP(c, req.Email, phone)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate OTP"})
			return
		}

		// TODO: deliver via SMS/email provider; returned inline for development
		c.JSON(http.StatusCreated, gin.H{
			"message": "User created successfully. Please verify your account.",
			"otp":     code,
		})
		return
	}

	h.issueTokens(c, &user, http.StatusCreated, "User created successfully")
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var user models.User
	if err := h.db.Where("email = ? AND is_active = ?", req.Email, true).First(&user).Error; err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid email or password"})
		return
	}

	if !utils.CheckPassword(req.Password, user.PasswordHash) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid email or password"})
		return
	}

	if h.cfg.OTPEnabled && !user.IsVerified {
		c.JSON(http.StatusForbidden, gin.H{"error": "Account not verified. Please verify with the OTP sent to you."})
		return
	}

	now := time.Now()
	h.db.Model(&user).Updates(map[string]interface{}{"is_online": true, "last_seen": now})

	h.issueTokens(c, &user, http.StatusOK, "Logged in successfully")
}

func (h *AuthHandler) VerifyOTP(c *gin.Context) {
	var req VerifyOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var otp models.OTP
	if err := h.db.Where("email = ? AND code = ? AND is_used = ?", req.Email, req.Code, false).
		Order("created_at DESC").First(&otp).Error; err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid verification code"})
		return
	}

	if time.Now().After(otp.ExpiresAt) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Verification code has expired"})
		return
	}

	otp.IsUsed = true
	h.db.Save(&otp)

	var user models.User
	if err := h.db.Where("email = ?", req.Email).First(&user).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	user.IsVerified = true
	h.db.Save(&user)

	h.issueTokens(c, &user, http.StatusOK, "Account verified successfully")
}

func (h *AuthHandler) ResendOTP(c *gin.Context) {
	var req ResendOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var user models.User
	if err := h.db.Where("email = ?", req.Email).First(&user).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	if user.IsVerified {
		c.JSON(http.StatusConflict, gin.H{"error": "Account already verified"})
		return
	}

	code, err := h.issueOTP(c, req.Email, user.Phone)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate OTP"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Verification code sent",
		"otp":     code, // development only
	})
}

func (h *AuthHandler) RefreshToken(c *gin.Context) {
	var req RefreshTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	claims, err := utils.ParseToken(req.RefreshToken)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid refresh token"})
		return
	}
	if tokenType, _ := claims["type"].(string); tokenType != "refresh" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Refresh token required"})
		return
	}

	userID, err := utils.UserIDFromClaims(claims)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}

	var user models.User
	if err := h.db.Where("id = ? AND is_active = ?", userID, true).First(&user).Error; err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not found"})
		return
	}

	h.issueTokens(c, &user, http.StatusOK, "Token refreshed")
}

func (h *AuthHandler) Logout(c *gin.Context) {
	userID, _ := c.Get("user_id")
	uid := userID.(uint)

	now := time.Now()
	h.db.Model(&models.User{}).Where("id = ?", uid).
		Updates(map[string]interface{}{"is_online": false, "last_seen": now})

	sessionKey := "session:" + strconv.FormatUint(uint64(uid), 10)
	if err := h.redis.Del(c.Request.Context(), sessionKey); err != nil {
		logrus.WithError(err).Warn("failed to drop session")
	}

	// Drop per-identity state so nothing computed for this account leaks
	// into the next sign-in on the same device.
	h.chat.Forget(uid)
	h.deck.Drop(uid)

	c.JSON(http.StatusOK, gin.H{"message": "Logged out successfully"})
}

func (h *AuthHandler) issueOTP(c *gin.Context, email string, phone *string) (string, error) {
	code, err := utils.GenerateOTP()
	if err != nil {
		return "", err
	}

	otpRecord := models.OTP{
		Email:     email,
		Phone:     phone,
		Code:      code,
		ExpiresAt: time.Now().Add(h.cfg.OTPExpiry),
	}
	if err := h.db.Create(&otpRecord).Error; err != nil {
		return "", err
	}
	return code, nil
}

func (h *AuthHandler) issueTokens(c *gin.Context, user *models.User, status int, message string) {
	accessToken, err := utils.GenerateToken(user.ID, user.Email, h.cfg.JWTExpiry)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token"})
		return
	}

	refreshToken, err := utils.GenerateRefreshToken(user.ID, h.cfg.RefreshExpiry)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate refresh token"})
		return
	}

	sessionKey := "session:" + strconv.FormatUint(uint64(user.ID), 10)
	sessionData := map[string]interface{}{
		"user_id":       user.ID,
		"email":         user.Email,
		"access_token":  accessToken,
		"refresh_token": refreshToken,
		"expires_at":    time.Now().Add(h.cfg.JWTExpiry).Unix(),
	}
	if err := h.redis.HSet(c.Request.Context(), sessionKey, sessionData); err != nil {
		logrus.WithError(err).Warn("failed to store session")
	}

	c.JSON(status, gin.H{
		"message":       message,
		"access_token":  accessToken,
		"refresh_token": refreshToken,
		"user":          user,
		"profile_done":  user.ProfileDone,
	})
}

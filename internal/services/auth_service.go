package services

import (
	"context"
	cryptorand "crypto/rand"
	"database/sql"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-redis/redis/v8"
	"github.com/golang-jwt/jwt/v5"
	"github.com/spf13/viper"
	"github.com/triptracker/backend/internal/models"
	"golang.org/x/crypto/argon2"
)

type AuthService struct {
	db        *sql.DB
	redis     *redis.Client
	validator *validator.Validate
}

// LoginRequest represents the login request payload
// @Description Login request structure
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email" example:"user@example.com"` // User email address
	Password string `json:"password" validate:"required,min=6" example:"password123"`   // User password
}

// RegisterRequest represents the registration request payload
// @Description Registration request structure
type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email" example:"user@example.com"` // User email address
	Password string `json:"password" validate:"required,min=6" example:"password123"`   // User password
	Name     string `json:"name" validate:"required,min=2" example:"Jane Traveler"`     // Display name
}

// AuthResponse represents the authentication response
// @Description Authentication response structure
type AuthResponse struct {
	Token string      `json:"token" example:"eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9..."` // JWT token
	User  models.User `json:"user"`                                                    // User information
}

func NewAuthService(db *sql.DB, redisClient *redis.Client) *AuthService {
	return &AuthService{
		db:        db,
		redis:     redisClient,
		validator: validator.New(),
	}
}

func (s *AuthService) sendErrorResponse(w http.ResponseWriter, message string, statusCode int, validationErr error) {
	SendErrorResponse(w, message, statusCode, validationErr)
}

// Register handles user registration
// @Summary Register a new user
// @Description Register a new user with email, password and name; a verification token is issued and must be confirmed before login
// @Tags auth
// @Accept json
// @Produce json
// @Param request body RegisterRequest true "Registration request"
// @Success 201 {object} object{user=models.User,message=string} "Registration successful"
// @Failure 400 {object} ErrorResponse "Invalid request"
// @Failure 409 {object} ErrorResponse "Email already exists"
// @Failure 500 {object} ErrorResponse "Internal server error"
// @Router /auth/register [post]
func (s *AuthService) Register(w http.ResponseWriter, r *http.Request) {
	log.Printf("[AUTH] Registration attempt from IP: %s", r.RemoteAddr)

	maxBytes := 1_048_576 // 1 MB
	r.Body = http.MaxBytesReader(w, r.Body, int64(maxBytes))

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	var req RegisterRequest
	if err := dec.Decode(&req); err != nil {
		log.Printf("[AUTH] Registration failed - invalid request: %v", err)
		s.sendErrorResponse(w, "Invalid request", http.StatusBadRequest, nil)
		return
	}

	if err := dec.Decode(&struct{}{}); err != io.EOF {
		log.Printf("[AUTH] Multiple JSON objects detected")
		s.sendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return
	}

	if err := s.validator.Struct(&req); err != nil {
		log.Printf("[AUTH] Registration validation failed: %v", err)
		s.sendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	log.Printf("[AUTH] Registration request for email: %s", req.Email)

	hashedPassword, err := hashPassword(req.Password)
	if err != nil {
		log.Printf("[AUTH] Password hashing failed for %s: %v", req.Email, err)
		s.sendErrorResponse(w, "An Internal Error Occurred", http.StatusInternalServerError, nil)
		return
	}

	var userID int
	err = s.db.QueryRow(`
		INSERT INTO users (email, password, name, verified, created_at)
		VALUES ($1, $2, $3, false, NOW())
		RETURNING id
	`, strings.ToLower(req.Email), hashedPassword, req.Name).Scan(&userID)
	if err != nil {
		log.Printf("[AUTH] User creation failed for %s: %v", req.Email, err)
		s.sendErrorResponse(w, "Email Already Exists", http.StatusConflict, nil)
		return
	}

	verificationToken := generateToken()
	if s.redis != nil {
		key := fmt.Sprintf("verify:%s", verificationToken)
		if err := s.redis.Set(r.Context(), key, userID, 24*time.Hour).Err(); err != nil {
			log.Printf("[AUTH] Failed to store verification token for user %d: %v", userID, err)
		}
	}

	// Token delivery is normally email; logged here for development
	log.Printf("[AUTH] User created - ID: %d, Email: %s, verification token: %s", userID, req.Email, verificationToken)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"user":    models.User{ID: userID, Email: strings.ToLower(req.Email), Name: req.Name, Verified: false},
		"message": "Registration successful, please verify your email",
	})
}

// VerifyEmail confirms a registration verification token
// @Summary Verify email
// @Description Confirm a user's email address with the token issued at registration
// @Tags auth
// @Accept json
// @Produce json
// @Param request body object{token=string} true "Verification token"
// @Success 200 {object} map[string]string "Verification successful"
// @Failure 401 {object} ErrorResponse "Invalid or expired token"
// @Router /auth/verify [post]
func (s *AuthService) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token string `json:"token" validate:"required"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendErrorResponse(w, "Invalid request", http.StatusBadRequest, nil)
		return
	}

	if err := s.validator.Struct(&req); err != nil {
		s.sendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	if s.redis == nil {
		s.sendErrorResponse(w, "Verification unavailable", http.StatusServiceUnavailable, nil)
		return
	}

	key := fmt.Sprintf("verify:%s", req.Token)
	userID, err := s.redis.Get(r.Context(), key).Int()
	if err != nil {
		log.Printf("[AUTH] Verification token not found or expired")
		s.sendErrorResponse(w, "Invalid or expired token", http.StatusUnauthorized, nil)
		return
	}

	if _, err := s.db.Exec(`UPDATE users SET verified = true WHERE id = $1`, userID); err != nil {
		log.Printf("[AUTH] Failed to mark user %d verified: %v", userID, err)
		s.sendErrorResponse(w, "Verification failed", http.StatusInternalServerError, nil)
		return
	}

	s.redis.Del(r.Context(), key)

	log.Printf("[AUTH] User %d verified", userID)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"message": "Email verified successfully"})
}

// Login handles user authentication
// @Summary Login user
// @Description Authenticate user with email and password
// @Tags auth
// @Accept json
// @Produce json
// @Param request body LoginRequest true "Login request"
// @Success 200 {object} AuthResponse "Login successful"
// @Failure 400 {object} ErrorResponse "Invalid request"
// @Failure 401 {object} ErrorResponse "Invalid credentials"
// @Failure 403 {object} ErrorResponse "Email not verified"
// @Router /auth/login [post]
func (s *AuthService) Login(w http.ResponseWriter, r *http.Request) {
	log.Printf("[AUTH] Login attempt from IP: %s", r.RemoteAddr)

	maxBytes := 1_048_576 // 1 MB
	r.Body = http.MaxBytesReader(w, r.Body, int64(maxBytes))

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	var req LoginRequest
	if err := dec.Decode(&req); err != nil {
		log.Printf("[AUTH] Login failed - invalid request: %v", err)
		s.sendErrorResponse(w, "Invalid request", http.StatusBadRequest, nil)
		return
	}

	if err := dec.Decode(&struct{}{}); err != io.EOF {
		log.Printf("[AUTH] Multiple JSON objects detected")
		s.sendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return
	}

	if err := s.validator.Struct(&req); err != nil {
		log.Printf("[AUTH] Login validation failed: %v", err)
		s.sendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	log.Printf("[AUTH] Login request for email: %s", req.Email)

	var user models.User
	var hashedPassword string
	err := s.db.QueryRow(`
		SELECT id, email, name, COALESCE(photo_url, ''), verified, password FROM users WHERE email = $1
	`, strings.ToLower(req.Email)).Scan(&user.ID, &user.Email, &user.Name, &user.PhotoURL, &user.Verified, &hashedPassword)
	if err != nil {
		log.Printf("[AUTH] User not found for email: %s", req.Email)
		s.sendErrorResponse(w, "Invalid credentials", http.StatusUnauthorized, nil)
		return
	}

	if !verifyPassword(req.Password, hashedPassword) {
		log.Printf("[AUTH] Invalid password for user: %s", req.Email)
		s.sendErrorResponse(w, "Invalid credentials", http.StatusUnauthorized, nil)
		return
	}

	if !user.Verified {
		log.Printf("[AUTH] Unverified login attempt for user %d", user.ID)
		s.sendErrorResponse(w, "Email not verified", http.StatusForbidden, nil)
		return
	}

	token, err := generateJWT(user.ID)
	if err != nil {
		log.Printf("[AUTH] JWT generation failed for user %d: %v", user.ID, err)
		s.sendErrorResponse(w, "Failed to generate token", http.StatusInternalServerError, nil)
		return
	}

	log.Printf("[AUTH] Login successful for user %d", user.ID)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(AuthResponse{
		Token: token,
		User:  user,
	})
}

// Logout handles user logout
// @Summary Logout user
// @Description Logout user and blacklist token
// @Tags auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} map[string]string "Logout successful"
// @Router /auth/logout [post]
func (s *AuthService) Logout(w http.ResponseWriter, r *http.Request) {
	token := r.Header.Get("Authorization")
	if token != "" && len(token) > 7 {
		token = token[7:] // Remove "Bearer " prefix

		if s.redis != nil {
			ctx := context.Background()
			key := fmt.Sprintf("blacklist:%s", token)
			// Blacklist token until its expiration
			expiry := time.Duration(viper.GetInt("jwt.expiry_hours")) * time.Hour
			if err := s.redis.Set(ctx, key, "1", expiry).Err(); err != nil {
				log.Printf("[AUTH] Failed to blacklist token: %v", err)
			}
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"message": "Logout successful"})
}

// ForgotPassword issues a password reset token
// @Summary Request password reset
// @Description Issue a short-lived password reset token for the given email
// @Tags auth
// @Accept json
// @Produce json
// @Param request body object{email=string} true "Account email"
// @Success 200 {object} map[string]string "Reset token issued"
// @Failure 400 {object} ErrorResponse "Invalid request"
// @Router /auth/forgot-password [post]
func (s *AuthService) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email" validate:"required,email"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendErrorResponse(w, "Invalid request", http.StatusBadRequest, nil)
		return
	}

	if err := s.validator.Struct(&req); err != nil {
		s.sendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	// Respond identically whether or not the account exists
	var userID int
	err := s.db.QueryRow(`SELECT id FROM users WHERE email = $1`, strings.ToLower(req.Email)).Scan(&userID)
	if err == nil && s.redis != nil {
		resetToken := generateToken()
		key := fmt.Sprintf("reset:%s", resetToken)
		if err := s.redis.Set(r.Context(), key, userID, 15*time.Minute).Err(); err != nil {
			log.Printf("[AUTH] Failed to store reset token for user %d: %v", userID, err)
		} else {
			log.Printf("[AUTH] Reset token issued for user %d: %s", userID, resetToken)
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"message": "If the account exists, a reset token has been sent"})
}

// ResetPassword sets a new password using a reset token
// @Summary Reset password
// @Description Set a new password using a previously issued reset token
// @Tags auth
// @Accept json
// @Produce json
// @Param request body object{token=string,password=string} true "Reset token and new password"
// @Success 200 {object} map[string]string "Password updated"
// @Failure 401 {object} ErrorResponse "Invalid or expired token"
// @Router /auth/reset-password [post]
func (s *AuthService) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token    string `json:"token" validate:"required"`
		Password string `json:"password" validate:"required,min=6"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendErrorResponse(w, "Invalid request", http.StatusBadRequest, nil)
		return
	}

	if err := s.validator.Struct(&req); err != nil {
		s.sendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	if s.redis == nil {
		s.sendErrorResponse(w, "Password reset unavailable", http.StatusServiceUnavailable, nil)
		return
	}

	key := fmt.Sprintf("reset:%s", req.Token)
	userID, err := s.redis.Get(r.Context(), key).Int()
	if err != nil {
		log.Printf("[AUTH] Reset token not found or expired")
		s.sendErrorResponse(w, "Invalid or expired token", http.StatusUnauthorized, nil)
		return
	}

	hashedPassword, err := hashPassword(req.Password)
	if err != nil {
		log.Printf("[AUTH] Password hashing failed during reset for user %d: %v", userID, err)
		s.sendErrorResponse(w, "An Internal Error Occurred", http.StatusInternalServerError, nil)
		return
	}

	if _, err := s.db.Exec(`UPDATE users SET password = $1 WHERE id = $2`, hashedPassword, userID); err != nil {
		log.Printf("[AUTH] Failed to update password for user %d: %v", userID, err)
		s.sendErrorResponse(w, "Failed to update password", http.StatusInternalServerError, nil)
		return
	}

	s.redis.Del(r.Context(), key)

	log.Printf("[AUTH] Password reset for user %d", userID)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"message": "Password updated successfully"})
}

// GetUserAccount retrieves user account details from auth token
// @Summary Get user account details
// @Description Get the authenticated user's profile
// @Tags auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.User "User account details"
// @Failure 401 {object} ErrorResponse "Unauthorized"
// @Router /auth/account [get]
func (s *AuthService) GetUserAccount(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("userID").(int)
	if !ok {
		log.Printf("[AUTH] Unauthorized account request - no user ID in context")
		s.sendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	var user models.User
	err := s.db.QueryRow(`
		SELECT id, email, name, COALESCE(photo_url, ''), verified, created_at FROM users WHERE id = $1
	`, userID).Scan(&user.ID, &user.Email, &user.Name, &user.PhotoURL, &user.Verified, &user.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			s.sendErrorResponse(w, "User not found", http.StatusNotFound, nil)
		} else {
			log.Printf("[AUTH] Failed to fetch user details for ID %d: %v", userID, err)
			s.sendErrorResponse(w, "Failed to fetch user details", http.StatusInternalServerError, nil)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(user)
}

// UpdateUserAccount updates the authenticated user's profile
// @Summary Update user account
// @Description Update the authenticated user's display name and photo
// @Tags auth
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body object{name=string,photoUrl=string} true "Profile fields"
// @Success 200 {object} models.User "Updated profile"
// @Failure 400 {object} ErrorResponse "Invalid request"
// @Router /auth/account [put]
func (s *AuthService) UpdateUserAccount(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("userID").(int)
	if !ok {
		s.sendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	var req struct {
		Name     string `json:"name" validate:"required,min=2"`
		PhotoURL string `json:"photoUrl" validate:"omitempty,max=500"`
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1_048_576)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(&req); err != nil {
		s.sendErrorResponse(w, "Invalid request", http.StatusBadRequest, nil)
		return
	}

	if err := dec.Decode(&struct{}{}); err != io.EOF {
		s.sendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return
	}

	if err := s.validator.Struct(&req); err != nil {
		s.sendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	var user models.User
	err := s.db.QueryRow(`
		UPDATE users SET name = $1, photo_url = $2 WHERE id = $3
		RETURNING id, email, name, COALESCE(photo_url, ''), verified, created_at
	`, req.Name, req.PhotoURL, userID).Scan(&user.ID, &user.Email, &user.Name, &user.PhotoURL, &user.Verified, &user.CreatedAt)
	if err != nil {
		log.Printf("[AUTH] Failed to update profile for user %d: %v", userID, err)
		s.sendErrorResponse(w, "Failed to update profile", http.StatusInternalServerError, nil)
		return
	}

	log.Printf("[AUTH] Profile updated for user %d", userID)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(user)
}

// DeleteUserAccount deletes the authenticated user and all of their data
// @Summary Delete user account
// @Description Delete the authenticated user, their ledgers and every entry
// @Tags auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} object{success=bool}
// @Failure 401 {object} ErrorResponse "Unauthorized"
// @Router /auth/account [delete]
func (s *AuthService) DeleteUserAccount(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("userID").(int)
	if !ok {
		s.sendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	tx, err := s.db.Begin()
	if err != nil {
		log.Printf("[AUTH] Failed to begin account delete for user %d: %v", userID, err)
		s.sendErrorResponse(w, "Failed to delete account", http.StatusInternalServerError, nil)
		return
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`
		DELETE FROM entries WHERE ledger_id IN (SELECT id FROM ledgers WHERE user_id = $1)
	`, userID); err != nil {
		log.Printf("[AUTH] Failed to delete entries for user %d: %v", userID, err)
		s.sendErrorResponse(w, "Failed to delete account", http.StatusInternalServerError, nil)
		return
	}

	if _, err := tx.Exec(`DELETE FROM ledgers WHERE user_id = $1`, userID); err != nil {
		log.Printf("[AUTH] Failed to delete ledgers for user %d: %v", userID, err)
		s.sendErrorResponse(w, "Failed to delete account", http.StatusInternalServerError, nil)
		return
	}

	result, err := tx.Exec(`DELETE FROM users WHERE id = $1`, userID)
	if err != nil {
		log.Printf("[AUTH] Failed to delete user %d: %v", userID, err)
		s.sendErrorResponse(w, "Failed to delete account", http.StatusInternalServerError, nil)
		return
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		s.sendErrorResponse(w, "User not found", http.StatusNotFound, nil)
		return
	}

	if err := tx.Commit(); err != nil {
		log.Printf("[AUTH] Failed to commit account delete for user %d: %v", userID, err)
		s.sendErrorResponse(w, "Failed to delete account", http.StatusInternalServerError, nil)
		return
	}

	log.Printf("[AUTH] Deleted account and all data for user %d", userID)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": true,
	})
}

func generateJWT(userID int) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": userID,
		"exp":     time.Now().Add(time.Duration(viper.GetInt("jwt.expiry_hours")) * time.Hour).Unix(),
	})

	return token.SignedString([]byte(viper.GetString("jwt.secret_key")))
}

func hashPassword(password string) (string, error) {
	salt := make([]byte, viper.GetInt("argon2.salt_length"))
	if _, err := cryptorand.Read(salt); err != nil {
		return "", err
	}

	hash := argon2.IDKey([]byte(password), salt,
		uint32(viper.GetInt("argon2.time")),
		uint32(viper.GetInt("argon2.memory")),
		uint8(viper.GetInt("argon2.threads")),
		uint32(viper.GetInt("argon2.key_length")))
	return fmt.Sprintf("%s$%s", base64.StdEncoding.EncodeToString(salt), base64.StdEncoding.EncodeToString(hash)), nil
}

func verifyPassword(password, hashedPassword string) bool {
	parts := strings.Split(hashedPassword, "$")
	if len(parts) != 2 {
		return false
	}

	salt, err := base64.StdEncoding.DecodeString(parts[0])
	if err != nil {
		return false
	}

	hash, err := base64.StdEncoding.DecodeString(parts[1])
	if err != nil {
		return false
	}

	computedHash := argon2.IDKey([]byte(password), salt,
		uint32(viper.GetInt("argon2.time")),
		uint32(viper.GetInt("argon2.memory")),
		uint8(viper.GetInt("argon2.threads")),
		uint32(viper.GetInt("argon2.key_length")))
	return string(hash) == string(computedHash)
}

func generateToken() string {
	b := make([]byte, 32)
	cryptorand.Read(b)
	return hex.EncodeToString(b)
}

package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/naveenvaja/ridit-webapp/internal/auth"
	"github.com/naveenvaja/ridit-webapp/internal/kv"
	"github.com/naveenvaja/ridit-webapp/internal/market"
	"github.com/naveenvaja/ridit-webapp/internal/model"
	"github.com/naveenvaja/ridit-webapp/internal/store"
)

// AuthHandler handles registration, login and profile endpoints.
type AuthHandler struct {
	DB        kv.Store
	Service   *market.Service
	JWTSecret string
	TokenTTL  time.Duration
	Verifier  auth.IdentityVerifier
}

type registerRequest struct {
	Name     string `json:"name"`
	Phone    string `json:"phone"`
	Email    string `json:"email"`
	Password string `json:"password"`
	UserType string `json:"user_type"`
}

type loginRequest struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

type googleRequest struct {
	IDToken  string `json:"id_token"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	UserType string `json:"user_type"`
}

type updateProfileRequest struct {
	Name       *string `json:"name"`
	Phone      *string `json:"phone"`
	ReferredBy *string `json:"referred_by"`
}

type authResponse struct {
	model.Profile
	Token   string `json:"token"`
	Message string `json:"message"`
}

// Register handles POST /api/auth/register.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.UserType == "" {
		req.UserType = model.RoleSeller
	}

	if req.Name == "" {
		jsonError(w, http.StatusBadRequest, "name is required")
		return
	}
	if err := model.ValidatePhone(req.Phone); err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := model.ValidatePassword(req.Password); err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.UserType != model.RoleSeller && req.UserType != model.RoleCollector {
		jsonError(w, http.StatusBadRequest, "user_type must be seller or collector")
		return
	}

	existing, err := store.FindUser(r.Context(), h.DB, func(u *model.User) bool {
		return u.Phone == req.Phone || (req.Email != "" && u.Email == req.Email)
	})
	if err != nil {
		slog.Error("checking existing user", "error", err)
		jsonError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if existing != nil {
		jsonError(w, http.StatusBadRequest, "user with this phone number or email already exists")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to hash password")
		return
	}

	user := &model.User{
		Name:         req.Name,
		Phone:        req.Phone,
		Email:        req.Email,
		Role:         req.UserType,
		PasswordHash: hash,
		AuthProvider: model.ProviderPassword,
	}
	if err := h.createUser(r, user); err != nil {
		if errors.Is(err, store.ErrContactTaken) {
			jsonError(w, http.StatusBadRequest, "user with this phone number or email already exists")
			return
		}
		slog.Error("registering user", "error", err)
		jsonError(w, http.StatusInternalServerError, "registration failed")
		return
	}

	slog.Info("user registered", "user", user.Key, "role", user.Role)
	h.issueToken(w, http.StatusCreated, user, "Registration successful")
}

// Login handles POST /api/auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	identifier := strings.TrimSpace(req.Identifier)
	if identifier == "" || req.Password == "" {
		jsonError(w, http.StatusBadRequest, "identifier and password required")
		return
	}
	if strings.Contains(identifier, "@") {
		identifier = strings.ToLower(identifier)
	}

	user, err := store.FindUserByLogin(r.Context(), h.DB, identifier)
	if err != nil {
		slog.Error("looking up user", "error", err)
		jsonError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if user == nil || user.PasswordHash == "" || !auth.CheckPassword(user.PasswordHash, req.Password) {
		slog.Warn("login failed", "identifier", identifier, "remote", r.RemoteAddr)
		jsonError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	slog.Info("user logged in", "user", user.Key, "role", user.Role)
	h.issueToken(w, http.StatusOK, user, "Login successful")
}

// GoogleRegister handles POST /api/auth/google-register. Unknown emails get
// a new account; known ones are logged in.
func (h *AuthHandler) GoogleRegister(w http.ResponseWriter, r *http.Request) {
	req, identity, ok := h.verifyGoogle(w, r)
	if !ok {
		return
	}

	if req.UserType == "" {
		req.UserType = model.RoleSeller
	}
	if req.UserType != model.RoleSeller && req.UserType != model.RoleCollector {
		jsonError(w, http.StatusBadRequest, "user_type must be seller or collector")
		return
	}

	user, err := h.findByEmail(r, identity.Email)
	if err != nil {
		slog.Error("looking up user", "error", err)
		jsonError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if user != nil {
		if !googleAccount(w, r, user) {
			return
		}
		slog.Info("user logged in", "user", user.Key, "provider", model.ProviderGoogle)
		h.issueToken(w, http.StatusOK, user, "Google authentication successful")
		return
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = identity.Name
	}
	user = &model.User{
		Name:         name,
		Email:        identity.Email,
		Role:         req.UserType,
		AuthProvider: model.ProviderGoogle,
	}
	if err := h.createUser(r, user); err != nil {
		if errors.Is(err, store.ErrContactTaken) {
			jsonError(w, http.StatusBadRequest, "user with this email already exists")
			return
		}
		slog.Error("registering user", "error", err)
		jsonError(w, http.StatusInternalServerError, "registration failed")
		return
	}

	slog.Info("user registered", "user", user.Key, "role", user.Role, "provider", model.ProviderGoogle)
	h.issueToken(w, http.StatusCreated, user, "Google authentication successful")
}

// GoogleLogin handles POST /api/auth/google-login.
func (h *AuthHandler) GoogleLogin(w http.ResponseWriter, r *http.Request) {
	_, identity, ok := h.verifyGoogle(w, r)
	if !ok {
		return
	}

	user, err := h.findByEmail(r, identity.Email)
	if err != nil {
		slog.Error("looking up user", "error", err)
		jsonError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if user == nil {
		slog.Warn("google login for unknown email", "remote", r.RemoteAddr)
		jsonError(w, http.StatusUnauthorized, "user not found. Please register first with Google")
		return
	}
	if !googleAccount(w, r, user) {
		return
	}

	slog.Info("user logged in", "user", user.Key, "provider", model.ProviderGoogle)
	h.issueToken(w, http.StatusOK, user, "Google login successful")
}

// verifyGoogle decodes a Google request and verifies its identity token. The
// email asserted by the token must match the one in the request, if any.
func (h *AuthHandler) verifyGoogle(w http.ResponseWriter, r *http.Request) (*googleRequest, *auth.Identity, bool) {
	if h.Verifier == nil {
		jsonError(w, http.StatusNotImplemented, "identity provider login is not configured")
		return nil, nil, false
	}

	var req googleRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return nil, nil, false
	}
	if req.IDToken == "" {
		jsonError(w, http.StatusBadRequest, "id_token is required")
		return nil, nil, false
	}
	identity, err := h.Verifier.Verify(r.Context(), req.IDToken)
	if err != nil {
		slog.Warn("identity token rejected", "error", err, "remote", r.RemoteAddr)
		if errors.Is(err, auth.ErrInvalidIdentity) {
			jsonError(w, http.StatusUnauthorized, "invalid identity token")
		} else {
			jsonError(w, http.StatusInternalServerError, "identity verification failed")
		}
		return nil, nil, false
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email != "" && email != strings.ToLower(identity.Email) {
		slog.Warn("identity token email mismatch", "remote", r.RemoteAddr)
		jsonError(w, http.StatusUnauthorized, "token email does not match")
		return nil, nil, false
	}
	return &req, identity, true
}

// googleAccount refuses Google sign-in for accounts created another way and
// for admins, who must use their password.
func googleAccount(w http.ResponseWriter, r *http.Request, user *model.User) bool {
	if user.AuthProvider == model.ProviderGoogle && user.Role != model.RoleAdmin {
		return true
	}
	slog.Warn("google sign-in refused", "user", user.Key, "provider", user.AuthProvider, "remote", r.RemoteAddr)
	jsonError(w, http.StatusForbidden, "this account does not use Google sign-in")
	return false
}

func (h *AuthHandler) findByEmail(r *http.Request, email string) (*model.User, error) {
	email = strings.ToLower(email)
	return store.FindUser(r.Context(), h.DB, func(u *model.User) bool {
		return u.Email != "" && strings.ToLower(u.Email) == email
	})
}

// createUser stores a new user with a referral code. Collectors start with
// an inactive subscription.
func (h *AuthHandler) createUser(r *http.Request, user *model.User) error {
	code, err := auth.GenerateReferralCode()
	if err != nil {
		return err
	}
	user.ReferralCode = code

	if user.Role == model.RoleCollector {
		user.Subscription = &model.Subscription{
			Status:    model.SubscriptionInactive,
			PlanType:  model.PlanNone,
			CreatedAt: model.FormatTimestamp(time.Now()),
		}
	}

	_, err = store.CreateUser(r.Context(), h.DB, user)
	return err
}

func (h *AuthHandler) issueToken(w http.ResponseWriter, status int, user *model.User, message string) {
	token, err := auth.GenerateToken(h.JWTSecret, user.Key, user.Role, h.TokenTTL)
	if err != nil {
		slog.Error("generating token", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to generate token")
		return
	}
	jsonResponse(w, status, authResponse{Profile: user.Profile(), Token: token, Message: message})
}

// Logout handles POST /api/auth/logout.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())
	if claims == nil {
		jsonError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	expiresAt := time.Now().Add(auth.TokenExpiry)
	if claims.ExpiresAt != nil {
		expiresAt = claims.ExpiresAt.Time
	}
	if err := store.RevokeToken(r.Context(), h.DB, claims.ID, expiresAt); err != nil {
		slog.Error("revoking token", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to revoke token")
		return
	}

	slog.Info("user logged out", "user", claims.UserID)
	jsonResponse(w, http.StatusOK, map[string]string{"message": "logged out"})
}

// GetProfile handles GET /api/auth/profile/{userId}.
func (h *AuthHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	user, ok := authorizeUser(w, r, h.Service, r.PathValue("userId"))
	if !ok {
		return
	}
	jsonResponse(w, http.StatusOK, user.Profile())
}

// UpdateProfile handles PUT /api/auth/profile/{userId}.
func (h *AuthHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	user, ok := authorizeUser(w, r, h.Service, r.PathValue("userId"))
	if !ok {
		return
	}

	var req updateProfileRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	fields := map[string]any{}
	var newPhone string
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			jsonError(w, http.StatusBadRequest, "name cannot be empty")
			return
		}
		fields["name"] = name
	}
	if req.Phone != nil && *req.Phone != user.Phone {
		if err := model.ValidatePhone(*req.Phone); err != nil {
			jsonError(w, http.StatusBadRequest, err.Error())
			return
		}
		taken, err := store.FindUser(r.Context(), h.DB, func(u *model.User) bool {
			return u.Phone == *req.Phone && u.Key != user.Key
		})
		if err != nil {
			slog.Error("checking phone", "error", err)
			jsonError(w, http.StatusInternalServerError, "internal error")
			return
		}
		if taken != nil {
			jsonError(w, http.StatusBadRequest, "phone number already in use")
			return
		}
		newPhone = *req.Phone
	}
	if req.ReferredBy != nil {
		fields["referred_by"] = strings.TrimSpace(*req.ReferredBy)
	}

	if len(fields) == 0 && newPhone == "" {
		jsonError(w, http.StatusBadRequest, "No fields to update")
		return
	}

	if newPhone != "" {
		if err := store.ChangePhone(r.Context(), h.DB, user.Key, user.Phone, newPhone); err != nil {
			if errors.Is(err, store.ErrContactTaken) {
				jsonError(w, http.StatusBadRequest, "phone number already in use")
				return
			}
			slog.Error("changing phone", "error", err)
			jsonError(w, http.StatusInternalServerError, "failed to update profile")
			return
		}
	}
	if len(fields) > 0 {
		if err := store.UpdateUser(r.Context(), h.DB, user.Key, fields); err != nil {
			slog.Error("updating profile", "error", err)
			jsonError(w, http.StatusInternalServerError, "failed to update profile")
			return
		}
	}

	slog.Info("profile updated", "user", user.Key, "by", GetClaims(r.Context()).UserID)
	jsonResponse(w, http.StatusOK, map[string]string{"message": "Profile updated", "user_id": user.Key})
}

package users

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/mail"
	"time"

	"github.com/iBlazeX/FitForm3/internal/middleware"
	"github.com/iBlazeX/FitForm3/internal/telemetry/metrics"
	"github.com/iBlazeX/FitForm3/internal/telemetry/tracing"
	"github.com/iBlazeX/FitForm3/pkg"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

//go:generate mockgen -source=handler.go -destination=users_mocks_test.go -package=users_test

type usersRepo interface {
	Create(ctx context.Context, user User) (*User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)
	GetByID(ctx context.Context, id int) (*User, error)
	GetProfile(ctx context.Context, userID int) (*Profile, error)
	UpdateProfile(ctx context.Context, userID int, update Profile) (*Profile, error)
}

type loginService interface {
	Login(ctx context.Context, userID int, createdAt time.Time) (string, error)
	Logout(ctx context.Context, token string) (bool, error)
}

type AuthResponse struct {
	Token string `json:"token"`
	User  *User  `json:"user"`
}

type Handler struct {
	repo           usersRepo
	loginService   loginService
	metricsManager *metrics.Manager
}

func NewHandler(
	repo usersRepo,
	loginService loginService,
	metricsManager *metrics.Manager,
) *Handler {
	return &Handler{
		repo:           repo,
		loginService:   loginService,
		metricsManager: metricsManager,
	}
}

func (handler *Handler) SetupRoutes(
	mainRouter *mux.Router,
	rateLimiter middleware.RequestRateLimiter,
	authRateLimitAllowedPerMin int,
) {
	authSubrouter := mainRouter.PathPrefix("/api/auth").Subrouter()
	authSubrouter.HandleFunc("/register", handler.HandleRegister).Methods("POST", "OPTIONS").Name("register")
	authSubrouter.HandleFunc("/login", handler.HandleLogin).Methods("POST", "OPTIONS").Name("login")
	authSubrouter.HandleFunc("/logout", handler.HandleLogout).Methods("GET", "OPTIONS").Name("logout")
	authSubrouter.HandleFunc("/verify-token", handler.HandleVerifyToken).Methods("POST", "OPTIONS").Name("verify-token")
	authSubrouter.HandleFunc("/profile", handler.HandleGetProfile).Methods("GET", "OPTIONS").Name("get-profile")
	authSubrouter.HandleFunc("/profile", handler.HandleUpdateProfile).Methods("PUT", "OPTIONS").Name("update-profile")

	// register/login get brute-forced first, keep the whole subrouter behind the limiter
	authSubrouter.Use(middleware.RateLimit(
		rateLimiter, "auth",
		authRateLimitAllowedPerMin,
		handler.metricsManager,
	))
}

func (handler *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.users.register")
	defer span.End()

	if r.Header.Get("Content-Type") != "application/json" {
		http.Error(w, "invalid content type", http.StatusBadRequest)
		return
	}

	type registerRequest struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}

	var registerReq registerRequest
	if err := json.NewDecoder(r.Body).Decode(&registerReq); err != nil {
		log.Errorf("register, unmarshal json params: %s", err)
		http.Error(w, "register failed", http.StatusBadRequest)
		return
	}

	var validationErrs pkg.ValidationErrors
	if len(registerReq.Username) < 3 {
		validationErrs.Add("username", "must be at least 3 characters long")
	}
	if _, err := mail.ParseAddress(registerReq.Email); err != nil {
		validationErrs.Add("email", "must be a valid email address")
	}
	if len(registerReq.Password) < 6 {
		validationErrs.Add("password", "must be at least 6 characters long")
	}
	if len(validationErrs) > 0 {
		pkg.WriteValidationErrors(w, validationErrs)
		return
	}

	passwordHash, err := pkg.HashPassword(registerReq.Password)
	if err != nil {
		log.Errorf("register, hash password: %s", err)
		http.Error(w, "register failed", http.StatusInternalServerError)
		return
	}

	// the profile starts with all fields unset, it only ever changes
	// through the profile update endpoint
	user, err := handler.repo.Create(ctx, User{
		Username:     registerReq.Username,
		Email:        registerReq.Email,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now(),
	})
	if errors.Is(err, ErrUserExists) {
		http.Error(w, "error, user exists already", http.StatusConflict)
		return
	}
	if err != nil {
		log.Errorf("failed to register user [%s]: %s", registerReq.Username, err)
		http.Error(w, "register failed", http.StatusInternalServerError)
		return
	}

	token, err := handler.loginService.Login(ctx, user.ID, time.Now())
	if err != nil {
		log.Errorf("register, create session for user %d: %s", user.ID, err)
		http.Error(w, "register failed", http.StatusInternalServerError)
		return
	}

	log.Debugf("new user registered: [%s]: %d", user.Username, user.ID)
	handler.metricsManager.CounterUsersRegistered.Inc()
	span.SetAttributes(attribute.Int("user.id", user.ID))

	respJson, err := json.Marshal(AuthResponse{Token: token, User: user})
	if err != nil {
		log.Errorf("register, marshal response: %s", err)
		http.Error(w, "register failed", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, respJson, http.StatusCreated)
}

func (handler *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.users.login")
	defer span.End()

	type loginRequest struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}

	var loginReq loginRequest
	if r.Header.Get("Content-Type") == "application/json" {
		if err := json.NewDecoder(r.Body).Decode(&loginReq); err != nil {
			log.Errorf("login, unmarshal json params: %s", err)
			http.Error(w, "login failed", http.StatusBadRequest)
			return
		}
	} else {
		if err := r.ParseForm(); err != nil {
			log.Errorf("login failed, parse form error: %s", err)
			http.Error(w, "parse form error", http.StatusInternalServerError)
			return
		}
		loginReq = loginRequest{
			Username: r.Form.Get("username"),
			Password: r.Form.Get("password"),
		}
	}

	if loginReq.Username == "" {
		http.Error(w, "error, username empty", http.StatusBadRequest)
		return
	}
	if loginReq.Password == "" {
		http.Error(w, "error, password empty", http.StatusBadRequest)
		return
	}

	user, err := handler.repo.GetByUsername(ctx, loginReq.Username)
	if errors.Is(err, ErrUserNotFound) {
		log.Tracef("[username] failed login attempt for user: %s", loginReq.Username)
		http.Error(w, "error, wrong credentials", http.StatusUnauthorized)
		return
	}
	if err != nil {
		log.Errorf("login, get user [%s]: %s", loginReq.Username, err)
		http.Error(w, "login failed", http.StatusInternalServerError)
		return
	}

	if !pkg.CheckPasswordHash(loginReq.Password, user.PasswordHash) {
		log.Tracef("[password] failed login attempt for user: %s", loginReq.Username)
		http.Error(w, "error, wrong credentials", http.StatusUnauthorized)
		return
	}

	token, err := handler.loginService.Login(ctx, user.ID, time.Now())
	if err != nil {
		log.Errorf("login failed, generate token error: %s", err)
		http.Error(w, "generate token error", http.StatusInternalServerError)
		return
	}

	span.SetAttributes(attribute.Int("user.id", user.ID))

	respJson, err := json.Marshal(AuthResponse{Token: token, User: user})
	if err != nil {
		log.Errorf("login, marshal response: %s", err)
		http.Error(w, "login failed", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytesOK(w, pkg.ContentType.JSON, respJson)
}

func (handler *Handler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.users.logout")
	defer span.End()

	token := r.Header.Get("X-FITFORM-TOKEN")
	if token == "" {
		http.Error(w, "error, auth token empty", http.StatusBadRequest)
		return
	}

	loggedOut, err := handler.loginService.Logout(ctx, token)
	if err != nil {
		log.Errorf("logout: %s", err)
		http.Error(w, "logout failed", http.StatusInternalServerError)
		return
	}
	if !loggedOut {
		span.SetStatus(codes.Error, "not-logged-in")
		http.Error(w, "error, not logged in", http.StatusBadRequest)
		return
	}

	pkg.WriteTextResponseOK(w, "logged-out")
}

// HandleVerifyToken reports whether the client session is still alive.
// The auth middleware already resolved the token, so reaching this
// handler at all means it is.
func (handler *Handler) HandleVerifyToken(w http.ResponseWriter, r *http.Request) {
	_, span := tracing.GlobalTracer.Start(r.Context(), "handler.users.verifyToken")
	defer span.End()

	userID, ok := middleware.UserIDFromRequest(r)
	if !ok {
		http.Error(w, "no can do", http.StatusUnauthorized)
		return
	}

	type verifyTokenResponse struct {
		Valid  bool `json:"valid"`
		UserID int  `json:"userId"`
	}
	respJson, err := json.Marshal(verifyTokenResponse{Valid: true, UserID: userID})
	if err != nil {
		log.Errorf("verify token, marshal response: %s", err)
		http.Error(w, "verify token failed", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytesOK(w, pkg.ContentType.JSON, respJson)
}

func (handler *Handler) HandleGetProfile(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.users.getProfile")
	defer span.End()

	userID, ok := middleware.UserIDFromRequest(r)
	if !ok {
		http.Error(w, "no can do", http.StatusUnauthorized)
		return
	}

	user, err := handler.repo.GetByID(ctx, userID)
	if errors.Is(err, ErrUserNotFound) {
		http.Error(w, "user not found", http.StatusNotFound)
		return
	}
	if err != nil {
		log.Errorf("failed to get user %d: %s", userID, err)
		http.Error(w, "get profile failed", http.StatusInternalServerError)
		return
	}

	userJson, err := json.Marshal(user)
	if err != nil {
		log.Errorf("get profile, marshal user: %s", err)
		http.Error(w, "get profile failed", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytesOK(w, pkg.ContentType.JSON, userJson)
}

func (handler *Handler) HandleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.users.updateProfile")
	defer span.End()

	userID, ok := middleware.UserIDFromRequest(r)
	if !ok {
		http.Error(w, "no can do", http.StatusUnauthorized)
		return
	}

	if r.Header.Get("Content-Type") != "application/json" {
		http.Error(w, "invalid content type", http.StatusBadRequest)
		return
	}

	var profileUpdate Profile
	if err := json.NewDecoder(r.Body).Decode(&profileUpdate); err != nil {
		log.Errorf("update profile, unmarshal json params: %s", err)
		http.Error(w, "update profile failed", http.StatusBadRequest)
		return
	}

	if validationErrs := validateProfile(profileUpdate); len(validationErrs) > 0 {
		pkg.WriteValidationErrors(w, validationErrs)
		return
	}

	profile, err := handler.repo.UpdateProfile(ctx, userID, profileUpdate)
	if errors.Is(err, ErrUserNotFound) {
		http.Error(w, "user not found", http.StatusNotFound)
		return
	}
	if err != nil {
		log.Errorf("failed to update profile for user %d: %s", userID, err)
		http.Error(w, "update profile failed", http.StatusInternalServerError)
		return
	}

	log.Debugf("profile updated for user %d", userID)

	profileJson, err := json.Marshal(profile)
	if err != nil {
		log.Errorf("update profile, marshal profile: %s", err)
		http.Error(w, "update profile failed", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytesOK(w, pkg.ContentType.JSON, profileJson)
}

func validateProfile(profile Profile) pkg.ValidationErrors {
	var validationErrs pkg.ValidationErrors
	if profile.Age != nil && (*profile.Age < 1 || *profile.Age > 150) {
		validationErrs.Add("age", "must be between 1 and 150")
	}
	if profile.Weight != nil && (*profile.Weight < 1 || *profile.Weight > 500) {
		validationErrs.Add("weight", "must be between 1 and 500 kilograms")
	}
	if profile.Height != nil && (*profile.Height < 30 || *profile.Height > 300) {
		validationErrs.Add("height", "must be between 30 and 300 centimeters")
	}
	if profile.Gender != nil && !profile.Gender.Known() {
		validationErrs.Add("gender", "must be one of: male, female, other")
	}
	if profile.DailyCalorieGoal != nil && *profile.DailyCalorieGoal < 0 {
		validationErrs.Add("dailyCalorieGoal", "must not be negative")
	}
	if profile.DailyRepsGoal != nil && *profile.DailyRepsGoal < 0 {
		validationErrs.Add("dailyRepsGoal", "must not be negative")
	}
	if profile.WeeklyWorkoutGoal != nil && *profile.WeeklyWorkoutGoal < 0 {
		validationErrs.Add("weeklyWorkoutGoal", "must not be negative")
	}
	return validationErrs
}

package auth

import (
	"context"
	"errors"
	"net/http"
	"regexp"
	"time"

	"schoolsite-app/internal/api/respond"
	"schoolsite-app/internal/app/http/middleware"
	"schoolsite-app/internal/domain/apperr"
	"schoolsite-app/internal/domain/subscriptions"
	"schoolsite-app/internal/domain/tenants"
	"schoolsite-app/internal/domain/users"
	"schoolsite-app/internal/infra/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type Config struct {
	TrialDays          int
	MaxSchools         int
	TokenTTL           time.Duration
	ReservedSubdomains []string
	Google             GoogleConfig
}

type Handler struct {
	users   users.Store
	schools tenants.Store
	subs    subscriptions.Store
	tx      Transactor
	cfg     Config
	now     func() time.Time
}

func NewHandler(us users.Store, ts tenants.Store, subs subscriptions.Store, cfg Config) *Handler {
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = 24 * time.Hour
	}
	return &Handler{
		users:   us,
		schools: ts,
		subs:    subs,
		tx:      undoTransactor{stores: Stores{Users: us, Schools: ts, Subscriptions: subs}},
		cfg:     cfg,
		now:     time.Now,
	}
}

// WithTransactor makes the onboarding flows run inside tx. A nil tx keeps
// the default, which deletes partial writes on failure.
func (h *Handler) WithTransactor(tx Transactor) *Handler {
	if tx != nil {
		h.tx = tx
	}
	return h
}

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

func isPasswordStrong(password string) bool {
	if len(password) < 8 {
		return false
	}
	hasLetter := false
	hasDigit := false
	for _, c := range password {
		switch {
		case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z':
			hasLetter = true
		case '0' <= c && c <= '9':
			hasDigit = true
		}
	}
	return hasLetter && hasDigit
}

func isEmailValid(email string) bool {
	return emailPattern.MatchString(email)
}

type credentials struct {
	Name     string `json:"name" binding:"required"`
	Lastname string `json:"lastname" binding:"required"`
	Tel      string `json:"tel"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

func (in credentials) validate() string {
	if !isPasswordStrong(in.Password) {
		return "Password must be at least 8 characters long and contain both letters and numbers"
	}
	if !isEmailValid(in.Email) {
		return "Invalid email format"
	}
	return ""
}

func (h *Handler) newLocalUser(in credentials, role string) (*users.User, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, apperr.Internal("hash password", err)
	}
	pw := string(hashed)
	return &users.User{
		Name:         in.Name,
		Lastname:     in.Lastname,
		Tel:          in.Tel,
		Email:        in.Email,
		Password:     &pw,
		AuthProvider: "local",
		Role:         role,
	}, nil
}

func (h *Handler) token(u *users.User) (string, error) {
	return middleware.IssueToken(u.ID, u.Email, u.Role, h.cfg.TokenTTL)
}

// RegisterSchool is self-service onboarding: a school admin account, a
// starter trial subscription and the school itself.
func (h *Handler) RegisterSchool(c *gin.Context) {
	var input struct {
		credentials
		SchoolName string `json:"school_name" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		respond.Invalid(c, err.Error())
		return
	}
	if msg := input.validate(); msg != "" {
		respond.Invalid(c, msg)
		return
	}

	ctx := c.Request.Context()
	user, err := h.newLocalUser(input.credentials, users.RoleSchoolAdmin)
	if err != nil {
		respond.Error(c, "register school", err, false)
		return
	}

	var (
		school *tenants.Tenant
		sub    *subscriptions.Subscription
	)
	err = h.tx.InTx(ctx, func(s Stores) error {
		if err := s.Users.Create(ctx, user); err != nil {
			return err
		}
		var err error
		school, sub, err = h.createSchool(ctx, s, user.ID, input.SchoolName, nil)
		return err
	})
	if err != nil {
		respond.Error(c, "register school", err, false)
		return
	}

	token, err := h.token(user)
	if err != nil {
		respond.Error(c, "register school", apperr.Internal("issue token", err), false)
		return
	}

	logger.WithRequest(c).Info("school registered",
		zap.Uint("school_id", school.ID), zap.String("slug", school.Slug), zap.Uint("user_id", user.ID))

	c.JSON(http.StatusCreated, gin.H{
		"token":        token,
		"school":       school,
		"subscription": subscriptions.NewAdminView(sub, subscriptions.Derive(sub, h.now())),
	})
}

// createSchool creates the school with a unique slug and makes ownerID its
// admin. A nil sub starts a new trial. Callers run it inside h.tx.
func (h *Handler) createSchool(ctx context.Context, s Stores, ownerID uint, name string, sub *subscriptions.Subscription) (*tenants.Tenant, *subscriptions.Subscription, error) {
	if sub == nil {
		sub = subscriptions.NewTrial(ownerID, h.now(), h.cfg.TrialDays, h.cfg.MaxSchools)
		if err := s.Subscriptions.Create(ctx, sub); err != nil {
			return nil, nil, err
		}
	}

	slug, err := tenants.UniqueSlug(ctx, s.Schools, name, h.cfg.ReservedSubdomains)
	if err != nil {
		return nil, nil, err
	}
	school := &tenants.Tenant{
		Name:           name,
		Slug:           slug,
		OwnerID:        ownerID,
		SubscriptionID: &sub.ID,
		IsActive:       true,
	}
	if err := s.Schools.Create(ctx, school); err != nil {
		return nil, nil, err
	}
	if err := s.Users.AddMembership(ctx, ownerID, school.ID); err != nil {
		return nil, nil, err
	}
	return school, sub, nil
}

// AddSchool creates another school under the caller's subscription, within
// its MaxSchools allowance.
func (h *Handler) AddSchool(c *gin.Context) {
	var input struct {
		Name string `json:"name" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		respond.Invalid(c, err.Error())
		return
	}

	ctx := c.Request.Context()
	user := middleware.UserFrom(c)
	if user == nil || user.Role != users.RoleSchoolAdmin {
		respond.Error(c, "add school", apperr.Forbidden("forbidden", "only school admins can add schools"), false)
		return
	}

	sub, err := h.ownedSubscription(ctx, user)
	if err != nil {
		respond.Error(c, "add school", err, true)
		return
	}
	if subscriptions.Derive(sub, h.now()).Blocking {
		respond.Error(c, "add school", apperr.Forbidden("subscription_inactive", "subscription is not active"), true)
		return
	}

	owned, err := h.schools.CountByOwner(ctx, user.ID)
	if err != nil {
		respond.Error(c, "add school", err, true)
		return
	}
	if owned >= int64(sub.MaxSchools) {
		respond.Error(c, "add school", apperr.Forbidden("school_limit", "your plan does not allow more schools"), true)
		return
	}

	var school *tenants.Tenant
	err = h.tx.InTx(ctx, func(s Stores) error {
		var err error
		school, _, err = h.createSchool(ctx, s, user.ID, input.Name, sub)
		return err
	})
	if err != nil {
		respond.Error(c, "add school", err, true)
		return
	}
	c.JSON(http.StatusCreated, school)
}

// ownedSubscription is the subscription shared by the schools user owns.
func (h *Handler) ownedSubscription(ctx context.Context, user *users.User) (*subscriptions.Subscription, error) {
	for _, id := range user.SchoolIDs() {
		t, err := h.schools.GetByID(ctx, id)
		if err != nil {
			if errors.Is(err, tenants.ErrNotFound) {
				continue
			}
			return nil, err
		}
		if t.OwnerID != user.ID {
			continue
		}
		sub, err := tenants.LoadSubscription(ctx, h.subs, t)
		if err != nil {
			return nil, err
		}
		if sub != nil {
			return sub, nil
		}
	}
	return nil, apperr.NotFound("subscription_not_found", "no subscription found for this account")
}

// RegisterParent creates a parent account attached to one school. A parent
// who already has an account joins the school with the same credentials;
// any other existing email is a conflict.
func (h *Handler) RegisterParent(c *gin.Context) {
	var input struct {
		credentials
		SchoolSlug    string `json:"school_slug" binding:"required"`
		AcceptPrivacy string `json:"accept_privacy"`
		AcceptTerms   string `json:"accept_terms"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		respond.Invalid(c, err.Error())
		return
	}
	if msg := input.validate(); msg != "" {
		respond.Invalid(c, msg)
		return
	}

	ctx := c.Request.Context()
	school, err := h.schools.FindActiveBySlug(ctx, input.SchoolSlug)
	if err != nil {
		respond.Error(c, "register parent", err, false)
		return
	}
	if school == nil {
		respond.Error(c, "register parent", tenants.ErrNotFound, false)
		return
	}

	existing, err := h.users.GetByEmail(ctx, input.Email)
	switch {
	case err == nil:
		h.joinSchool(c, existing, input.Password, school)
		return
	case !errors.Is(err, users.ErrNotFound):
		respond.Error(c, "register parent", err, false)
		return
	}

	user, err := h.newLocalUser(input.credentials, users.RoleParent)
	if err != nil {
		respond.Error(c, "register parent", err, false)
		return
	}
	if input.AcceptPrivacy != "" && input.AcceptTerms != "" {
		user.AcceptConsent(input.AcceptPrivacy, input.AcceptTerms, h.now())
	}
	err = h.tx.InTx(ctx, func(s Stores) error {
		if err := s.Users.Create(ctx, user); err != nil {
			return err
		}
		return s.Users.AddMembership(ctx, user.ID, school.ID)
	})
	if err != nil {
		respond.Error(c, "register parent", err, false)
		return
	}

	token, err := h.token(user)
	if err != nil {
		respond.Error(c, "register parent", apperr.Internal("issue token", err), false)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"token": token, "school": gin.H{"id": school.ID, "slug": school.Slug}})
}

// joinSchool adds a membership for an existing local parent whose password
// matches. Consent is not carried over from the request; the parents area
// asks for it against the current versions.
func (h *Handler) joinSchool(c *gin.Context, user *users.User, password string, school *tenants.Tenant) {
	if user.Role != users.RoleParent || user.Password == nil ||
		bcrypt.CompareHashAndPassword([]byte(*user.Password), []byte(password)) != nil {
		respond.Error(c, "register parent", users.ErrEmailTaken, false)
		return
	}
	if err := h.users.AddMembership(c.Request.Context(), user.ID, school.ID); err != nil {
		respond.Error(c, "register parent", err, false)
		return
	}

	token, err := h.token(user)
	if err != nil {
		respond.Error(c, "register parent", apperr.Internal("issue token", err), false)
		return
	}
	logger.WithRequest(c).Info("parent joined school", zap.Uint("user_id", user.ID), zap.Uint("school_id", school.ID))
	c.JSON(http.StatusOK, gin.H{"token": token, "school": gin.H{"id": school.ID, "slug": school.Slug}})
}

func (h *Handler) Login(c *gin.Context) {
	var input struct {
		Email    string `json:"email" binding:"required,email"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		respond.Invalid(c, err.Error())
		return
	}

	invalid := apperr.Unauthorized("invalid_credentials", "invalid credentials")

	user, err := h.users.GetByEmail(c.Request.Context(), input.Email)
	if err != nil {
		if errors.Is(err, users.ErrNotFound) {
			respond.Error(c, "login", invalid, false)
			return
		}
		respond.Error(c, "login", err, false)
		return
	}
	if user.Password == nil || *user.Password == "" {
		respond.Error(c, "login", apperr.Unauthorized("google_account", "This account uses Google sign-in"), true)
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(*user.Password), []byte(input.Password)); err != nil {
		respond.Error(c, "login", invalid, false)
		return
	}

	token, err := h.token(user)
	if err != nil {
		respond.Error(c, "login", apperr.Internal("issue token", err), false)
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token})
}

func (h *Handler) ChangePassword(c *gin.Context) {
	var body struct {
		OldPassword string `json:"old_password"`
		NewPassword string `json:"new_password"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		respond.Invalid(c, "Invalid input")
		return
	}
	if !isPasswordStrong(body.NewPassword) {
		respond.Invalid(c, "New password must be at least 8 characters with letters and numbers")
		return
	}

	user := middleware.UserFrom(c)
	if user == nil {
		respond.Error(c, "change password", apperr.Unauthorized("unauthorized", "unauthorized"), false)
		return
	}
	if user.Password == nil || *user.Password == "" {
		respond.Invalid(c, "This account does not have a password. Sign in with Google.")
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(*user.Password), []byte(body.OldPassword)); err != nil {
		respond.Error(c, "change password", apperr.Unauthorized("wrong_password", "Old password is incorrect"), true)
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(body.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		respond.Error(c, "change password", apperr.Internal("hash password", err), false)
		return
	}
	pw := string(hashed)
	user.Password = &pw
	if err := h.users.Save(c.Request.Context(), user); err != nil {
		respond.Error(c, "change password", err, false)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Password changed successfully"})
}

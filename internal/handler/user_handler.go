package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/prn-tf/meridian-bank/internal/auth"
	"github.com/prn-tf/meridian-bank/internal/domain"
	"github.com/prn-tf/meridian-bank/internal/service"
)

// UserHandler handles user management requests.
type UserHandler struct {
	userService *service.UserService
	policy      *auth.AccessPolicy

	// userCache, when set, is invalidated after updates and deactivations
	// so stale users cannot keep authenticating until the TTL runs out.
	userCache *auth.CachedUserLoader

	logger zerolog.Logger
}

// NewUserHandler creates a new UserHandler. userCache may be nil.
func NewUserHandler(userService *service.UserService, policy *auth.AccessPolicy, userCache *auth.CachedUserLoader, logger zerolog.Logger) *UserHandler {
	return &UserHandler{
		userService: userService,
		policy:      policy,
		userCache:   userCache,
		logger:      logger.With().Str("handler", "user").Logger(),
	}
}

// RegisterPublicRoutes registers the routes reachable without a token.
func (h *UserHandler) RegisterPublicRoutes(r chi.Router) {
	r.Post("/users", h.handleRegister)
}

// RegisterRoutes registers the authenticated user routes.
func (h *UserHandler) RegisterRoutes(r chi.Router) {
	r.Get("/users", h.handleList)
	r.Get("/users/me", h.handleGetMe)
	r.Get("/users/{id}", h.handleGet)
	r.Put("/users/{id}", h.handleUpdate)
	r.Delete("/users/{id}", h.handleDelete)
}

type registerRequest struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Password  string `json:"password"`
}

// handleRegister is open self-registration; it always creates a regular
// customer. Employees are provisioned out of band.
func (h *UserHandler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeBody(r, &req); err != nil {
		WriteError(w, r, err)
		return
	}

	output, err := h.userService.Register(r.Context(), service.RegisterInput{
		Username:  req.Username,
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Password:  req.Password,
		Role:      domain.RoleRegular,
	})
	if err != nil {
		WriteError(w, r, err)
		return
	}

	writeData(w, http.StatusCreated, output.User)
}

func (h *UserHandler) handleList(w http.ResponseWriter, r *http.Request) {
	p, err := auth.RequirePrincipal(r.Context())
	if err != nil {
		WriteError(w, r, err)
		return
	}
	if err := h.policy.RequireEmployee(p); err != nil {
		WriteError(w, r, err)
		return
	}

	withoutAccounts := r.URL.Query().Get("hasNoAccounts") == "true"
	users, err := h.userService.List(r.Context(), withoutAccounts)
	if err != nil {
		WriteError(w, r, err)
		return
	}

	writeData(w, http.StatusOK, users)
}

func (h *UserHandler) handleGetMe(w http.ResponseWriter, r *http.Request) {
	p, err := auth.RequirePrincipal(r.Context())
	if err != nil {
		WriteError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, p.User)
}

func (h *UserHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	p, err := auth.RequirePrincipal(r.Context())
	if err != nil {
		WriteError(w, r, err)
		return
	}

	userID, err := userIDParam(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}

	if !h.policy.CanViewUser(p, userID) {
		WriteError(w, r, auth.ErrForbidden)
		return
	}

	user, err := h.userService.GetByID(r.Context(), userID)
	if err != nil {
		WriteError(w, r, err)
		return
	}

	writeData(w, http.StatusOK, user)
}

type updateUserRequest struct {
	Username  *string `json:"username"`
	Email     *string `json:"email"`
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
	Password  *string `json:"password"`
	Role      *string `json:"role"`
}

func (h *UserHandler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	p, err := auth.RequirePrincipal(r.Context())
	if err != nil {
		WriteError(w, r, err)
		return
	}

	userID, err := userIDParam(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}

	if !h.policy.CanModifyUser(p, userID) {
		WriteError(w, r, auth.ErrForbidden)
		return
	}

	var req updateUserRequest
	if err := decodeBody(r, &req); err != nil {
		WriteError(w, r, err)
		return
	}

	input := service.UpdateUserInput{
		Username:  req.Username,
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Password:  req.Password,
	}

	// Only employees may change roles; customers cannot promote themselves.
	if req.Role != nil {
		if err := h.policy.RequireEmployee(p); err != nil {
			WriteError(w, r, err)
			return
		}
		role := domain.Role(*req.Role)
		input.Role = &role
	}

	user, err := h.userService.Update(r.Context(), userID, input)
	if err != nil {
		WriteError(w, r, err)
		return
	}

	if h.userCache != nil {
		h.userCache.Invalidate(r.Context(), userID)
	}

	writeData(w, http.StatusOK, user)
}

func (h *UserHandler) handleDelete(w http.ResponseWriter, r *http.Request) {
	p, err := auth.RequirePrincipal(r.Context())
	if err != nil {
		WriteError(w, r, err)
		return
	}
	if err := h.policy.RequireEmployee(p); err != nil {
		WriteError(w, r, err)
		return
	}

	userID, err := userIDParam(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}

	if err := h.userService.Delete(r.Context(), userID); err != nil {
		WriteError(w, r, err)
		return
	}

	if h.userCache != nil {
		h.userCache.Invalidate(r.Context(), userID)
	}

	writeMessage(w, http.StatusOK, "user deactivated")
}

// userIDParam parses the {id} route parameter.
func userIDParam(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		return 0, domain.ErrUserNotFound
	}
	return id, nil
}

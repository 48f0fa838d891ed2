package user

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"
	idmerrors "github.com/tendant/oauth-idm/pkg/errors"
	"golang.org/x/exp/slog"
)

type Handle struct {
	userService *UserService
	// basePath is used to build the Location header of a conflict
	basePath string
}

func NewHandle(userService *UserService, basePath string) Handle {
	return Handle{
		userService: userService,
		basePath:    basePath,
	}
}

type RegisterUserRequest struct {
	Login      string  `json:"login"`
	Passwd     string  `json:"passwd"`
	Name       *string `json:"name"`
	Surname    *string `json:"surname"`
	Patronymic *string `json:"patronymic"`
}

type ListUsersResponse struct {
	Users []User `json:"users"`
	Count int    `json:"count"`
}

// Handler mounts the user routes
func Handler(h Handle) http.Handler {
	r := chi.NewRouter()
	r.Post("/", h.RegisterUser)
	r.Get("/all", h.ListUsers)
	r.Get("/{user_id}", h.GetUser)
	r.Put("/{user_id}", h.UpdateUser)
	r.Delete("/{user_id}", h.DeleteUser)
	return r
}

// Register a user
// (POST /users/)
func (h Handle) RegisterUser(w http.ResponseWriter, r *http.Request) {
	var request RegisterUserRequest
	if err := render.DecodeJSON(r.Body, &request); err != nil {
		idmerrors.Render(w, r, idmerrors.Body(idmerrors.CodeInvalidRequest, "Invalid request body"))
		return
	}

	user, err := h.userService.Register(r.Context(), request.Login, request.Passwd, Profile{
		Name:       request.Name,
		Surname:    request.Surname,
		Patronymic: request.Patronymic,
	})
	if err != nil {
		var exists *LoginExistsError
		switch {
		case errors.As(err, &exists):
			idmerrors.Render(w, r, idmerrors.Conflict(idmerrors.CodeUserExists, "User already exists", h.userPath(exists.UserID)))
		case errors.Is(err, ErrInvalidLogin), errors.Is(err, ErrInvalidPassword):
			idmerrors.Render(w, r, idmerrors.Body(idmerrors.CodeInvalidRequest, err.Error()))
		default:
			slog.Error("Failed registering user", "error", err)
			idmerrors.Render(w, r, idmerrors.Internal(err))
		}
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, user)
}

// Get a page of users
// (GET /users/all)
func (h Handle) ListUsers(w http.ResponseWriter, r *http.Request) {
	start, err := queryInt(r, "start", 0)
	if err != nil {
		idmerrors.Render(w, r, idmerrors.Body(idmerrors.CodeInvalidRequest, err.Error()))
		return
	}
	limit, err := queryInt(r, "limit", DefaultPageLimit)
	if err != nil {
		idmerrors.Render(w, r, idmerrors.Body(idmerrors.CodeInvalidRequest, err.Error()))
		return
	}

	users, count, err := h.userService.ListUsers(r.Context(), start, limit)
	if err != nil {
		slog.Error("Failed listing users", "error", err)
		idmerrors.Render(w, r, idmerrors.Internal(err))
		return
	}
	if users == nil {
		users = []User{}
	}

	render.JSON(w, r, ListUsersResponse{Users: users, Count: count})
}

// Get user details
// (GET /users/{user_id})
func (h Handle) GetUser(w http.ResponseWriter, r *http.Request) {
	id, ok := h.userID(w, r)
	if !ok {
		return
	}

	user, err := h.userService.GetUser(r.Context(), id)
	if err != nil {
		h.renderLookupError(w, r, id, err)
		return
	}
	render.JSON(w, r, user)
}

// Edit user display fields
// (PUT /users/{user_id})
func (h Handle) UpdateUser(w http.ResponseWriter, r *http.Request) {
	id, ok := h.userID(w, r)
	if !ok {
		return
	}

	var profile Profile
	if err := render.DecodeJSON(r.Body, &profile); err != nil {
		idmerrors.Render(w, r, idmerrors.Body(idmerrors.CodeInvalidRequest, "Invalid request body"))
		return
	}

	user, err := h.userService.UpdateUser(r.Context(), id, profile)
	if err != nil {
		h.renderLookupError(w, r, id, err)
		return
	}

	render.Status(r, http.StatusAccepted)
	render.JSON(w, r, user)
}

// Delete a user and its credential
// (DELETE /users/{user_id})
func (h Handle) DeleteUser(w http.ResponseWriter, r *http.Request) {
	id, ok := h.userID(w, r)
	if !ok {
		return
	}

	if err := h.userService.DeleteUser(r.Context(), id); err != nil {
		h.renderLookupError(w, r, id, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h Handle) userID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	raw := chi.URLParam(r, "user_id")
	id, err := uuid.Parse(raw)
	if err != nil {
		idmerrors.Render(w, r, notFound(raw))
		return uuid.Nil, false
	}
	return id, true
}

func (h Handle) renderLookupError(w http.ResponseWriter, r *http.Request, id uuid.UUID, err error) {
	if errors.Is(err, ErrUserNotFound) {
		idmerrors.Render(w, r, notFound(id.String()))
		return
	}
	slog.Error("User lookup failed", "user_id", id, "error", err)
	idmerrors.Render(w, r, idmerrors.Internal(err))
}

func (h Handle) userPath(id uuid.UUID) string {
	return fmt.Sprintf("%s/%s", h.basePath, id)
}

func notFound(id string) *idmerrors.Error {
	return idmerrors.NotFound(idmerrors.CodeUserDoesNotExist, fmt.Sprintf("User %s does not exist", id))
}

func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("%s must be a non-negative integer", name)
	}
	return v, nil
}

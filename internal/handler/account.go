package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/foodsaver/internal/model"
	"github.com/sakif/foodsaver/internal/service"
)

// AccountHandler serves registration, login and profile endpoints.
//
//	POST  /api/account/register
//	POST  /api/account/login
//	POST  /api/account/logout
//	GET   /api/account/me
//	PATCH /api/account/profile
//	POST  /api/account/password
type AccountHandler struct {
	stores *service.StoreFactory
	logger *slog.Logger
}

// NewAccountHandler creates an AccountHandler.
func NewAccountHandler(stores *service.StoreFactory, logger *slog.Logger) *AccountHandler {
	return &AccountHandler{stores: stores, logger: logger}
}

// Routes mounts the account endpoints on r.
func (h *AccountHandler) Routes(r chi.Router) {
	r.Route("/account", func(r chi.Router) {
		r.Post("/register", h.HandleRegister)
		r.Post("/login", h.HandleLogin)
		r.Post("/logout", h.HandleLogout)
		r.Get("/me", h.HandleMe)
		r.Patch("/profile", h.HandleUpdateProfile)
		r.Post("/password", h.HandleChangePassword)
	})
}

// The service checks required fields and formats; tags here only bound
// sizes.
type registerRequest struct {
	FirstName       string `json:"firstName" validate:"max=100"`
	LastName        string `json:"lastName" validate:"max=100"`
	Email           string `json:"email" validate:"max=254"`
	Password        string `json:"password" validate:"max=128"`
	ConfirmPassword string `json:"confirmPassword" validate:"max=128"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"max=254"`
	Password string `json:"password" validate:"max=128"`
}

type profileRequest struct {
	FirstName *string `json:"firstName" validate:"omitnil,max=100"`
	LastName  *string `json:"lastName" validate:"omitnil,max=100"`
	Email     *string `json:"email" validate:"omitnil,max=254"`
}

type passwordRequest struct {
	CurrentPassword string `json:"currentPassword" validate:"max=128"`
	NewPassword     string `json:"newPassword" validate:"max=128"`
	ConfirmPassword string `json:"confirmPassword" validate:"max=128"`
}

// meResponse tells the client whether this scope is logged in.
type meResponse struct {
	Authenticated bool              `json:"authenticated"`
	User          *model.PublicUser `json:"user"`
}

// HandleRegister creates an account. The new user is not logged in.
func (h *AccountHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	store, err := openStore(h.stores, r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	u, err := store.Register(r.Context(), service.RegisterInput{
		FirstName:       req.FirstName,
		LastName:        req.LastName,
		Email:           req.Email,
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, u.Public())
}

// HandleLogin starts a session for this client scope.
func (h *AccountHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	store, err := openStore(h.stores, r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	u, err := store.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, u.Public())
}

// HandleLogout ends the session. It succeeds even when nobody is logged in.
func (h *AccountHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	store, err := openStore(h.stores, r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if err := store.Logout(r.Context()); err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

// HandleMe reports the logged-in user, if any. Never 401: the client
// calls it on load to decide what to show.
func (h *AccountHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	store, err := openStore(h.stores, r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	u, err := store.CurrentUser(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	resp := meResponse{}
	if u != nil {
		pub := u.Public()
		resp.Authenticated = true
		resp.User = &pub
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleUpdateProfile applies the fields present in the body.
func (h *AccountHandler) HandleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req profileRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	store, err := openStore(h.stores, r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	u, err := store.UpdateProfile(r.Context(), service.ProfileUpdate{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, u.Public())
}

// HandleChangePassword replaces the password after checking the old one.
func (h *AccountHandler) HandleChangePassword(w http.ResponseWriter, r *http.Request) {
	var req passwordRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	store, err := openStore(h.stores, r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	if err := store.ChangePassword(r.Context(), req.CurrentPassword, req.NewPassword, req.ConfirmPassword); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

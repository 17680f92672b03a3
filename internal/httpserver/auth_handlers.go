package httpserver

import (
	"errors"
	"log/slog"
	"net/http"

	"campushub/internal/auth"
	"campushub/internal/httpx"
)

func registerHandler(svc *auth.Service, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		var p struct {
			Email      string    `json:"email"`
			Password   string    `json:"password"`
			Name       string    `json:"name"`
			Role       auth.Role `json:"role"`
			Department string    `json:"department"`
		}
		if !httpx.Decode(w, r, &p) {
			return
		}
		if p.Role == "" {
			p.Role = auth.RoleStudent
		}
		// Self-registration never grants admin.
		if p.Role == auth.RoleAdmin {
			httpx.Error(w, http.StatusBadRequest, "cannot self-register as admin")
			return
		}
		user, token, err := svc.Register(r.Context(), auth.CreateParams{
			Email:      p.Email,
			Password:   p.Password,
			Name:       p.Name,
			Role:       p.Role,
			Department: p.Department,
		})
		if err != nil {
			if errors.Is(err, auth.ErrDuplicateEmail) {
				httpx.Error(w, http.StatusConflict, "email already registered")
				return
			}
			logger.Error("register user", "err", err)
			httpx.Error(w, http.StatusBadRequest, "invalid registration")
			return
		}
		httpx.JSON(w, http.StatusCreated, map[string]interface{}{
			"user":  user,
			"token": token,
		})
	})
}

func loginHandler(svc *auth.Service, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		var p struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		if !httpx.Decode(w, r, &p) {
			return
		}
		user, token, err := svc.Authenticate(r.Context(), p.Email, p.Password)
		if err != nil {
			if errors.Is(err, auth.ErrInvalidCredentials) {
				// Unknown email and bad password answer identically.
				httpx.Error(w, http.StatusUnauthorized, "invalid credentials")
				return
			}
			logger.Error("login", "err", err)
			httpx.Error(w, http.StatusInternalServerError, "internal error")
			return
		}
		httpx.JSON(w, http.StatusOK, map[string]interface{}{
			"user":  user,
			"token": token,
		})
	})
}

func meHandler(store auth.Store, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		user, ok := auth.UserFromContext(r.Context())
		if !ok {
			auth.WriteDenied(w, auth.ErrUnauthenticated)
			return
		}
		full, err := store.GetByID(r.Context(), user.ID)
		if err != nil {
			if errors.Is(err, auth.ErrUserNotFound) {
				httpx.Error(w, http.StatusNotFound, "user not found")
				return
			}
			logger.Error("get current user", "err", err)
			httpx.Error(w, http.StatusInternalServerError, "internal error")
			return
		}
		httpx.JSON(w, http.StatusOK, full)
	}
}

func profileHandler(store auth.Store, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		user, ok := auth.UserFromContext(r.Context())
		if !ok {
			auth.WriteDenied(w, auth.ErrUnauthenticated)
			return
		}
		var p struct {
			Name       string `json:"name"`
			Department string `json:"department"`
		}
		if !httpx.Decode(w, r, &p) {
			return
		}
		current, err := store.GetByID(r.Context(), user.ID)
		if err != nil {
			logger.Error("get user for profile update", "err", err)
			httpx.Error(w, http.StatusInternalServerError, "internal error")
			return
		}
		if p.Name == "" {
			p.Name = current.Name
		}
		updated, err := store.UpdateProfile(r.Context(), user.ID, auth.ProfileParams{
			Name:       p.Name,
			Department: p.Department,
		})
		if err != nil {
			logger.Error("update profile", "err", err)
			httpx.Error(w, http.StatusInternalServerError, "internal error")
			return
		}
		httpx.JSON(w, http.StatusOK, updated)
	}
}

func changePasswordHandler(svc *auth.Service, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		user, ok := auth.UserFromContext(r.Context())
		if !ok {
			auth.WriteDenied(w, auth.ErrUnauthenticated)
			return
		}
		var p struct {
			OldPassword string `json:"old_password"`
			NewPassword string `json:"new_password"`
		}
		if !httpx.Decode(w, r, &p) {
			return
		}
		if len(p.NewPassword) < 6 {
			httpx.Error(w, http.StatusBadRequest, "new password must be at least 6 characters")
			return
		}
		if err := svc.ChangePassword(r.Context(), user.ID, p.OldPassword, p.NewPassword); err != nil {
			if errors.Is(err, auth.ErrInvalidCredentials) {
				httpx.Error(w, http.StatusUnauthorized, "invalid credentials")
				return
			}
			logger.Error("change password", "err", err)
			httpx.Error(w, http.StatusInternalServerError, "internal error")
			return
		}
		httpx.JSON(w, http.StatusOK, map[string]string{"message": "password changed"})
	}
}

func listUsersHandler(store auth.Store, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		users, err := store.List(r.Context())
		if err != nil {
			logger.Error("list users", "err", err)
			httpx.Error(w, http.StatusInternalServerError, "internal error")
			return
		}
		httpx.JSON(w, http.StatusOK, users)
	}
}

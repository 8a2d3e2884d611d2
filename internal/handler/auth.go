package handler

import (
    "context"
    "errors"
    "net/http"
    "strings"
    "time"

    "github.com/labstack/echo/v4"
    "github.com/rs/zerolog/log"

    "github.com/Nat-hsm/DragonRise/internal/config"
    "github.com/Nat-hsm/DragonRise/internal/middleware"
    "github.com/Nat-hsm/DragonRise/internal/model"
    "github.com/Nat-hsm/DragonRise/internal/repository"
    "github.com/Nat-hsm/DragonRise/internal/utils"
)

// AuthHandler bundles dependencies for auth endpoints.
type AuthHandler struct {
    Cfg    config.Config
    Users  *repository.UserRepo
    Tokens *repository.TokenRepo
    Now    func() time.Time
}

func NewAuthHandler(cfg config.Config, u *repository.UserRepo, t *repository.TokenRepo) *AuthHandler {
    return &AuthHandler{Cfg: cfg, Users: u, Tokens: t, Now: time.Now}
}

// ----- DTOs -----

type registerReq struct {
    Username string `json:"username" validate:"required,username"`
    Password string `json:"password" validate:"required,min=8,max=72"`
    House    string `json:"house" validate:"required,max=50"`
    Email    string `json:"email" validate:"omitempty,email,max=120"`
}
type loginReq struct {
    Username string `json:"username" validate:"required"`
    Password string `json:"password" validate:"required"`
}
type refreshReq struct {
    RefreshToken string `json:"refresh_token"`
}

type tokenPart struct {
    Token   string    `json:"token"`
    Expires time.Time `json:"expires"`
}
type authResp struct {
    User    userResp  `json:"user"`
    Access  tokenPart `json:"access"`
    Refresh tokenPart `json:"refresh"`
}

// Register creates a MEMBER in the chosen house and returns tokens
// immediately.
func (h *AuthHandler) Register(c echo.Context) error {
    var req registerReq
    if ok, err := bindValid(c, &req); !ok {
        return err
    }
    req.Username = strings.TrimSpace(req.Username)
    req.Email = strings.ToLower(strings.TrimSpace(req.Email))

    ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
    defer cancel()

    uid, err := h.Users.Create(ctx, repository.NewUser{
        Username: req.Username,
        Email:    req.Email,
        Password: req.Password,
        House:    strings.TrimSpace(req.House),
        Role:     model.RoleMember,
    }, h.Cfg.BcryptCost)
    switch {
    case errors.Is(err, repository.ErrUsernameExists):
        return errJSON(c, http.StatusConflict, "conflict", "username already exists")
    case errors.Is(err, repository.ErrEmailExists):
        return errJSON(c, http.StatusConflict, "conflict", "email already exists")
    case errors.Is(err, repository.ErrUnknownHouse):
        return errJSON(c, http.StatusBadRequest, "validation_failed", "unknown house")
    case errors.Is(err, utils.ErrPasswordTooLong):
        return errJSON(c, http.StatusBadRequest, "validation_failed", err.Error())
    case err != nil:
        log.Error().Err(err).Str("username", req.Username).Msg("register failed")
        return errJSON(c, http.StatusInternalServerError, "internal", "create user failed")
    }

    u, err := h.Users.GetByID(ctx, uid)
    if err != nil {
        return errJSON(c, http.StatusInternalServerError, "internal", "load user failed")
    }
    resp, err := h.issue(ctx, u)
    if err != nil {
        return errJSON(c, http.StatusInternalServerError, "internal", err.Error())
    }
    return c.JSON(http.StatusCreated, resp)
}

// Login verifies credentials and returns a new token pair.
func (h *AuthHandler) Login(c echo.Context) error {
    var req loginReq
    if ok, err := bindValid(c, &req); !ok {
        return err
    }

    ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
    defer cancel()

    u, err := h.Users.GetByUsername(ctx, strings.TrimSpace(req.Username))
    if err != nil {
        if errors.Is(err, repository.ErrNotFound) {
            utils.SpendVerify(req.Password)
            return errJSON(c, http.StatusUnauthorized, "unauthorized", "invalid credentials")
        }
        return errJSON(c, http.StatusInternalServerError, "internal", "query failed")
    }
    if !utils.VerifyPassword(u.PasswordHash, req.Password) || !u.IsActive {
        return errJSON(c, http.StatusUnauthorized, "unauthorized", "invalid credentials")
    }
    if err := h.Users.TouchLogin(ctx, u.ID, h.Now().UTC()); err != nil {
        log.Warn().Err(err).Uint64("user_id", u.ID).Msg("update last login failed")
    }

    resp, err := h.issue(ctx, u)
    if err != nil {
        return errJSON(c, http.StatusInternalServerError, "internal", err.Error())
    }
    return c.JSON(http.StatusOK, resp)
}

// Refresh consumes a refresh token and issues a new pair.  Each refresh
// token works once.
func (h *AuthHandler) Refresh(c echo.Context) error {
    var req refreshReq
    if err := c.Bind(&req); err != nil || strings.TrimSpace(req.RefreshToken) == "" {
        return errJSON(c, http.StatusBadRequest, "validation_failed", "refresh_token required")
    }
    hash := utils.HashRefreshRaw(strings.TrimSpace(req.RefreshToken))

    ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
    defer cancel()

    userID, err := h.Tokens.Consume(ctx, hash)
    if err != nil {
        if errors.Is(err, repository.ErrNotFound) {
            return errJSON(c, http.StatusUnauthorized, "unauthorized", "invalid refresh")
        }
        return errJSON(c, http.StatusInternalServerError, "internal", "revoke refresh failed")
    }
    u, err := h.Users.GetByID(ctx, userID)
    if err != nil || !u.IsActive {
        return errJSON(c, http.StatusUnauthorized, "unauthorized", "invalid refresh")
    }

    resp, err := h.issue(ctx, u)
    if err != nil {
        return errJSON(c, http.StatusInternalServerError, "internal", err.Error())
    }
    return c.JSON(http.StatusOK, resp)
}

// Logout revokes one session when a refresh_token is supplied, otherwise
// every session of the authenticated caller.  The route is JWT protected.
func (h *AuthHandler) Logout(c echo.Context) error {
    uid, err := getUserID(c)
    if err != nil {
        return errJSON(c, http.StatusUnauthorized, "unauthorized", "unauthorized")
    }
    var req refreshReq
    _ = c.Bind(&req)
    raw := strings.TrimSpace(req.RefreshToken)

    ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
    defer cancel()

    if raw == "" {
        if err := h.Tokens.RevokeAllForUser(ctx, uid); err != nil {
            return errJSON(c, http.StatusInternalServerError, "internal", "logout failed")
        }
        return c.NoContent(http.StatusNoContent)
    }
    hash := utils.HashRefreshRaw(raw)
    owner, err := h.Tokens.ValidateRefresh(ctx, hash)
    if err != nil || owner != uid {
        return errJSON(c, http.StatusUnauthorized, "unauthorized", "invalid refresh token")
    }
    if err := h.Tokens.RevokeByHash(ctx, hash); err != nil {
        return errJSON(c, http.StatusInternalServerError, "internal", "logout failed")
    }
    return c.NoContent(http.StatusNoContent)
}

// Me returns the caller's profile.
func (h *AuthHandler) Me(c echo.Context) error {
    uid, err := getUserID(c)
    if err != nil {
        return errJSON(c, http.StatusUnauthorized, "unauthorized", "unauthorized")
    }
    ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
    defer cancel()

    u, err := h.Users.GetByID(ctx, uid)
    if err != nil {
        if errors.Is(err, repository.ErrNotFound) {
            return errJSON(c, http.StatusNotFound, "not_found", "user not found")
        }
        return errJSON(c, http.StatusInternalServerError, "internal", "load user failed")
    }
    return c.JSON(http.StatusOK, echo.Map{"user": toUserResp(u), "role": middleware.Role(c)})
}

// issue signs an access token and stores a fresh refresh token for u.
func (h *AuthHandler) issue(ctx context.Context, u model.User) (authResp, error) {
    access, err := utils.NewAccessToken(h.Cfg.JWTSecret, u.ID, u.Role, h.Cfg.AccessTTLMin)
    if err != nil {
        return authResp{}, errors.New("issue access failed")
    }
    refresh, err := utils.NewRefreshToken(h.Cfg.RefreshTTLDays)
    if err != nil {
        return authResp{}, errors.New("issue refresh failed")
    }
    if err := h.Tokens.StoreRefresh(ctx, u.ID, utils.HashRefreshRaw(refresh.Raw), refresh.Exp); err != nil {
        return authResp{}, errors.New("save refresh failed")
    }
    return authResp{
        User:    toUserResp(u),
        Access:  tokenPart{Token: access.Token, Expires: access.Exp},
        Refresh: tokenPart{Token: refresh.Raw, Expires: refresh.Exp},
    }, nil
}

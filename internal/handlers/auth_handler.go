package handlers

import (
	"errors"
	"net/mail"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/abdur-rahman-shawl/MentorLoopBack/internal/middleware"
	"github.com/abdur-rahman-shawl/MentorLoopBack/internal/models"
	"github.com/abdur-rahman-shawl/MentorLoopBack/internal/repository"
	"github.com/abdur-rahman-shawl/MentorLoopBack/pkg/utils"
)

type AuthHandler struct {
	db        *pgxpool.Pool
	userRepo  *repository.UserRepository
	jwtSecret string
}

func NewAuthHandler(db *pgxpool.Pool, userRepo *repository.UserRepository, jwtSecret string) *AuthHandler {
	return &AuthHandler{db: db, userRepo: userRepo, jwtSecret: jwtSecret}
}

type registerRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	Role     string `json:"role" validate:"required"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req registerRequest
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, fiber.StatusBadRequest, "Invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return respondError(c, fiber.StatusBadRequest, "Invalid registration payload")
	}

	parsedEmail, err := mail.ParseAddress(strings.TrimSpace(req.Email))
	if err != nil {
		return respondError(c, fiber.StatusBadRequest, "Invalid email format")
	}
	req.Email = strings.ToLower(parsedEmail.Address)

	role, ok := models.ParseRole(req.Role)
	if !ok || role.IsAdmin() {
		return respondError(c, fiber.StatusBadRequest, "Invalid role")
	}

	existing, err := h.userRepo.GetByEmail(c.Context(), req.Email)
	if err == nil && existing != nil {
		return respondError(c, fiber.StatusConflict, "Email already exists")
	}
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return respondError(c, fiber.StatusInternalServerError, "Failed to check email")
	}

	hashed, err := utils.HashPassword(req.Password)
	if err != nil {
		return respondError(c, fiber.StatusInternalServerError, "Failed to hash password")
	}

	user := &models.User{
		Email:        req.Email,
		PasswordHash: hashed,
		Role:         role,
	}

	tx, err := h.db.Begin(c.Context())
	if err != nil {
		return respondError(c, fiber.StatusInternalServerError, "Failed to start registration transaction")
	}
	defer func() {
		_ = tx.Rollback(c.Context())
	}()

	txUserRepo := repository.NewUserRepository(tx)
	txMentorProfileRepo := repository.NewMentorProfileRepository(tx)

	if err := txUserRepo.CreateUser(c.Context(), user); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return respondError(c, fiber.StatusConflict, "Email already exists")
		}
		return respondError(c, fiber.StatusInternalServerError, "Failed to create user")
	}

	if role.IsMentor() {
		if err := txMentorProfileRepo.CreateEmpty(c.Context(), user.ID); err != nil {
			return respondError(c, fiber.StatusInternalServerError, "Failed to create mentor profile")
		}
	}

	if err := tx.Commit(c.Context()); err != nil {
		return respondError(c, fiber.StatusInternalServerError, "Failed to complete registration")
	}

	token, err := utils.GenerateToken(strconv.FormatInt(user.ID, 10), string(user.Role), h.jwtSecret)
	if err != nil {
		return respondError(c, fiber.StatusInternalServerError, "Failed to generate token")
	}

	return respondData(c, fiber.StatusCreated, fiber.Map{"user": user, "token": token})
}

func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, fiber.StatusBadRequest, "Invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return respondError(c, fiber.StatusBadRequest, "Invalid login payload")
	}

	user, err := h.userRepo.GetByEmail(c.Context(), strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return respondError(c, fiber.StatusUnauthorized, "Invalid credentials")
		}
		return respondError(c, fiber.StatusInternalServerError, "Failed to look up user")
	}
	if !utils.CheckPassword(req.Password, user.PasswordHash) {
		return respondError(c, fiber.StatusUnauthorized, "Invalid credentials")
	}

	token, err := utils.GenerateToken(strconv.FormatInt(user.ID, 10), string(user.Role), h.jwtSecret)
	if err != nil {
		return respondError(c, fiber.StatusInternalServerError, "Failed to generate token")
	}

	return respondData(c, fiber.StatusOK, fiber.Map{"user": user, "token": token})
}

func (h *AuthHandler) Me(c *fiber.Ctx) error {
	actor, ok := middleware.ActorFromCtx(c)
	if !ok {
		return respondError(c, fiber.StatusUnauthorized, "Unauthenticated")
	}

	user, err := h.userRepo.GetByID(c.Context(), actor.ID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return respondError(c, fiber.StatusNotFound, "User not found")
		}
		return respondError(c, fiber.StatusInternalServerError, "Failed to load user")
	}

	return respondData(c, fiber.StatusOK, fiber.Map{"user": user})
}

package httpserver

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pscheid92/chatlabels/internal/domain"
)

const (
	msgUserAdded   = "User added successfully"
	msgUserExists  = "User already exists"
	msgUserDeleted = "User deleted successfully"
)

type userResponse struct {
	Phone     string    `json:"phone"`
	CreatedAt time.Time `json:"created_at"`
}

type messageResponse struct {
	Message string `json:"message"`
}

func (s *Server) handleGetUsers(c echo.Context) error {
	users, err := s.app.ListUsers(c.Request().Context(), c.QueryParam("adminToken"))
	if err != nil {
		return err
	}

	resp := make([]userResponse, 0, len(users))
	for _, u := range users {
		resp = append(resp, userResponse{Phone: u.Phone, CreatedAt: u.CreatedAt})
	}
	if err := c.JSON(http.StatusOK, resp); err != nil {
		return fmt.Errorf("failed to write users response: %w", err)
	}
	return nil
}

func (s *Server) handleAddUser(c echo.Context) error {
	err := s.app.AddUser(c.Request().Context(), c.QueryParam("phone"), c.QueryParam("accessToken"), c.QueryParam("adminToken"))

	msg := msgUserAdded
	switch {
	case errors.Is(err, domain.ErrUserExists):
		msg = msgUserExists
	case err != nil:
		return err
	}

	if err := c.JSON(http.StatusCreated, messageResponse{Message: msg}); err != nil {
		return fmt.Errorf("failed to write add-user response: %w", err)
	}
	return nil
}

func (s *Server) handleDeleteUser(c echo.Context) error {
	if err := s.app.DeleteUser(c.Request().Context(), c.QueryParam("phone"), c.QueryParam("adminToken")); err != nil {
		return err
	}

	if err := c.JSON(http.StatusOK, messageResponse{Message: msgUserDeleted}); err != nil {
		return fmt.Errorf("failed to write delete-user response: %w", err)
	}
	return nil
}

package httpserver

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pscheid92/chatlabels/internal/domain"
	apperrors "github.com/pscheid92/chatlabels/internal/platform/errors"
)

// Soft outcomes are reported in the response body with the route's success status.
const (
	sentinelInvalidToken  = "Invalid access token"
	sentinelReconnect     = "reconnect"
	sentinelLabelNotFound = "label does not exist"
)

type phonesRequest struct {
	Phones []string `json:"phones"`
}

type labelQuery struct {
	label string
	phone string
	token string
}

func parseLabelQuery(c echo.Context) (labelQuery, error) {
	q := labelQuery{
		label: strings.TrimSpace(c.QueryParam("label")),
		phone: strings.TrimSpace(c.QueryParam("phone")),
		token: c.QueryParam("accessToken"),
	}
	if q.label == "" {
		return q, apperrors.ValidationError("label is required")
	}
	return q, nil
}

func bindPhones(c echo.Context) ([]string, error) {
	var req phonesRequest
	if err := (&echo.DefaultBinder{}).BindBody(c, &req); err != nil {
		return nil, apperrors.ValidationError("invalid request body").WithField("cause", err.Error())
	}
	return req.Phones, nil
}

func (s *Server) handleAddLabel(c echo.Context) error {
	q, err := parseLabelQuery(c)
	if err != nil {
		return err
	}
	phones, err := bindPhones(c)
	if err != nil {
		return err
	}

	err = s.app.AddLabel(c.Request().Context(), q.phone, q.token, q.label, phones)
	return writeLabelResult(c, http.StatusCreated, []string{}, err)
}

func (s *Server) handleRemoveLabel(c echo.Context) error {
	q, err := parseLabelQuery(c)
	if err != nil {
		return err
	}
	phones, err := bindPhones(c)
	if err != nil {
		return err
	}

	err = s.app.RemoveLabel(c.Request().Context(), q.phone, q.token, q.label, phones)
	return writeLabelResult(c, http.StatusOK, []string{}, err)
}

func (s *Server) handleChatsByLabel(c echo.Context) error {
	q, err := parseLabelQuery(c)
	if err != nil {
		return err
	}

	chats, err := s.app.ListChatsByLabel(c.Request().Context(), q.phone, q.token, q.label)
	if chats == nil {
		chats = []string{}
	}
	return writeLabelResult(c, http.StatusOK, chats, err)
}

// writeLabelResult renders guard failures as single-element sentinel arrays and
// returns every other error to the error middleware.
func writeLabelResult(c echo.Context, status int, body []string, err error) error {
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrUnauthorized):
		body = []string{sentinelInvalidToken}
	case errors.Is(err, domain.ErrNoSession):
		body = []string{sentinelReconnect}
	case errors.Is(err, domain.ErrLabelNotFound):
		body = []string{sentinelLabelNotFound}
	default:
		return err
	}

	if err := c.JSON(status, body); err != nil {
		return fmt.Errorf("failed to write label response: %w", err)
	}
	return nil
}

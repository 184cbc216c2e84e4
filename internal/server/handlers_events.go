package server

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/msusndrotcunit-boop/MSU-SND-RGMS-sub000/internal/domain"
	apperrors "github.com/msusndrotcunit-boop/MSU-SND-RGMS-sub000/internal/errors"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

type eventListResponse struct {
	Events []domain.Event `json:"events"`
	Limit  int            `json:"limit"`
	Offset int            `json:"offset"`
}

// handleListEvents is the operational read endpoint: a paginated, filterable
// view of the event log for debugging and audit. Staff only; it bypasses the
// visibility rule.
func (s *Server) handleListEvents(c echo.Context) error {
	filter, err := parseEventFilter(c)
	if err != nil {
		return err
	}

	events, err := s.store.List(c.Request().Context(), filter)
	if err != nil {
		return apperrors.InternalError("failed to list events", err)
	}
	if events == nil {
		events = []domain.Event{}
	}

	return c.JSON(http.StatusOK, eventListResponse{
		Events: events,
		Limit:  filter.Limit,
		Offset: filter.Offset,
	})
}

func parseEventFilter(c echo.Context) (domain.EventFilter, error) {
	filter := domain.EventFilter{Limit: defaultListLimit}

	if raw := c.QueryParam("processed"); raw != "" {
		processed, err := strconv.ParseBool(raw)
		if err != nil {
			return filter, apperrors.ValidationError("processed must be true or false").WithContext("value", raw)
		}
		filter.Processed = &processed
	}

	if raw := c.QueryParam("subject_id"); raw != "" {
		subjectID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || subjectID < 1 {
			return filter, apperrors.ValidationError("subject_id must be a positive integer").WithContext("value", raw)
		}
		filter.SubjectID = &subjectID
	}

	if raw := c.QueryParam("type"); raw != "" {
		typ := domain.EventType(raw)
		if !typ.Valid() {
			return filter, apperrors.ValidationError("unknown event type").WithContext("value", raw)
		}
		filter.Type = &typ
	}

	if raw := c.QueryParam("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 || limit > maxListLimit {
			return filter, apperrors.ValidationError("limit must be between 1 and 500").WithContext("value", raw)
		}
		filter.Limit = limit
	}

	if raw := c.QueryParam("offset"); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil || offset < 0 {
			return filter, apperrors.ValidationError("offset must be a non-negative integer").WithContext("value", raw)
		}
		filter.Offset = offset
	}

	return filter, nil
}

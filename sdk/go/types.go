package sdk

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/tamaskk/foodybackend-sub000/core"
)

// ActionResult is the response of recording an action or setting progress.
type ActionResult struct {
	Queued  bool          `json:"queued"`
	Unlocks []core.Unlock `json:"unlocks"`
}

// LevelResult is the response of a level recalculation.
type LevelResult struct {
	Level   int  `json:"level"`
	Changed bool `json:"changed"`
}

// CatalogTier is one rung of a catalog achievement with display copy.
type CatalogTier struct {
	core.Tier
	Label       string `json:"label"`
	Icon        string `json:"icon"`
	Description string `json:"description"`
}

// CatalogAchievement mirrors one entry of GET /catalog.
type CatalogAchievement struct {
	ID          core.AchievementID `json:"id"`
	Category    core.Category      `json:"category"`
	Name        string             `json:"name"`
	Description string             `json:"description"`
	Action      core.ActionKey     `json:"action"`
	Tiers       []CatalogTier      `json:"tiers"`
}

type Catalog struct {
	Version      int                  `json:"version"`
	Achievements []CatalogAchievement `json:"achievements"`
}

// HealthStatus describes the /healthz response.
type HealthStatus struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// APIError is a non-2xx response. Detail comes from the server's problem
// document when one is returned.
type APIError struct {
	StatusCode int
	Title      string `json:"title"`
	Detail     string `json:"detail"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	msg := e.Detail
	if msg == "" {
		msg = e.Message
	}
	if msg == "" {
		msg = e.Title
	}
	if msg == "" {
		return fmt.Sprintf("request failed: status %d", e.StatusCode)
	}
	return fmt.Sprintf("request failed: status %d: %s", e.StatusCode, msg)
}

// IsNotFound reports whether err is a 404 from the API.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

func decodeJSON(resp *http.Response, target any) error {
	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		_ = json.Unmarshal(body, apiErr)
		return apiErr
	}
	if target == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(target)
}

// ErrEmptyUserID is returned when user id is empty.
var ErrEmptyUserID = errors.New("user id is required")

package session

import (
	"github.com/aretw0/introspection"
)

// ControllerState exposes the controller for observability.
type ControllerState struct {
	Window             string `json:"window,omitempty"`
	Status             string `json:"status"`
	ResumeID           string `json:"resume_id,omitempty"`
	DraftLength        int    `json:"draft_length"`
	Notes              int    `json:"notes"`
	Policy             string `json:"policy"`
	Started            bool   `json:"started"`
	Toggles            int    `json:"toggles"`
	Suggestions        int    `json:"suggestions"`
	DroppedSuggestions int    `json:"dropped_suggestions"`
}

// State implements introspection.Introspectable.
func (c *Controller) State() any {
	c.mu.Lock()
	defer c.mu.Unlock()

	var window string
	if c.bus != nil {
		window = c.bus.Label()
	}
	return ControllerState{
		Window:             window,
		Status:             c.status().String(),
		ResumeID:           c.resumeID,
		DraftLength:        len(c.draft),
		Notes:              c.list.len(),
		Policy:             c.policy.String(),
		Started:            c.started,
		Toggles:            c.toggles,
		Suggestions:        c.generated,
		DroppedSuggestions: c.dropped,
	}
}

// ComponentType implements introspection.Component.
func (c *Controller) ComponentType() string {
	return "session-controller"
}

var (
	_ introspection.Introspectable = (*Controller)(nil)
	_ introspection.Component      = (*Controller)(nil)
)

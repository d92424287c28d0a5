package models

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/dmitrijs2005/daybook/internal/common"
)

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", common.ErrValidation, fmt.Sprintf(format, args...))
}

// ItemType classifies an item.
type ItemType string

const (
	ItemTypeTask  ItemType = "task"
	ItemTypeNote  ItemType = "note"
	ItemTypeLink  ItemType = "link"
	ItemTypeEvent ItemType = "event"
)

// Item is a task, note, link or calendar event.
type Item struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Notes       string    `json:"notes,omitempty"`
	SpaceID     string    `json:"spaceId,omitempty"`
	Type        ItemType  `json:"type"`
	Completed   bool      `json:"completed"`
	CompletedAt time.Time `json:"completedAt,omitzero"`
	DueDate     time.Time `json:"dueDate,omitzero"`
	Tags        []string  `json:"tags,omitempty"`
	CreatedAt   time.Time `json:"createdAt,omitzero"`
	UpdatedAt   time.Time `json:"updatedAt,omitzero"`
}

func (i Item) Validate() error {
	if strings.TrimSpace(i.Title) == "" {
		return invalid("item title is required")
	}
	switch i.Type {
	case ItemTypeTask, ItemTypeNote, ItemTypeLink, ItemTypeEvent:
	default:
		return invalid("unknown item type %q", i.Type)
	}
	if i.Completed && i.Type != ItemTypeTask {
		return invalid("only tasks can be completed")
	}
	return nil
}

// Space groups items and feeds.
type Space struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color,omitempty"`
	Icon  string `json:"icon,omitempty"`
	Order int    `json:"order"`
}

func (s Space) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return invalid("space name is required")
	}
	return nil
}

// Feed is a subscribed source. Fetching and parsing happen elsewhere.
type Feed struct {
	ID          string    `json:"id"`
	Title       string    `json:"title,omitempty"`
	URL         string    `json:"url"`
	SpaceID     string    `json:"spaceId,omitempty"`
	LastFetched time.Time `json:"lastFetched,omitzero"`
}

func (f Feed) Validate() error {
	u, err := url.Parse(f.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return invalid("feed url %q must be an absolute http(s) url", f.URL)
	}
	return nil
}

type Quote struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Author    string    `json:"author,omitempty"`
	Favorite  bool      `json:"favorite"`
	CreatedAt time.Time `json:"createdAt,omitzero"`
	UpdatedAt time.Time `json:"updatedAt,omitzero"`
}

func (q Quote) Validate() error {
	if strings.TrimSpace(q.Text) == "" {
		return invalid("quote text is required")
	}
	return nil
}

type Set struct {
	Reps   int     `json:"reps"`
	Weight float64 `json:"weight"`
}

type Exercise struct {
	Name string `json:"name"`
	Sets []Set  `json:"sets,omitempty"`
}

func validateExercises(exercises []Exercise) error {
	for n, e := range exercises {
		if strings.TrimSpace(e.Name) == "" {
			return invalid("exercise %d has no name", n)
		}
		for _, s := range e.Sets {
			if s.Reps < 0 || s.Weight < 0 {
				return invalid("exercise %q has a negative set", e.Name)
			}
		}
	}
	return nil
}

type WorkoutSession struct {
	ID              string     `json:"id"`
	TemplateID      string     `json:"templateId,omitempty"`
	Date            time.Time  `json:"date,omitzero"`
	Exercises       []Exercise `json:"exercises,omitempty"`
	DurationMinutes int        `json:"durationMinutes,omitempty"`
	Notes           string     `json:"notes,omitempty"`
	CreatedAt       time.Time  `json:"createdAt,omitzero"`
	UpdatedAt       time.Time  `json:"updatedAt,omitzero"`
}

func (w WorkoutSession) Validate() error {
	if w.Date.IsZero() {
		return invalid("workout date is required")
	}
	if w.DurationMinutes < 0 {
		return invalid("workout duration must not be negative")
	}
	return validateExercises(w.Exercises)
}

type WorkoutTemplate struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Exercises []Exercise `json:"exercises,omitempty"`
	CreatedAt time.Time  `json:"createdAt,omitzero"`
	UpdatedAt time.Time  `json:"updatedAt,omitzero"`
}

func (w WorkoutTemplate) Validate() error {
	if strings.TrimSpace(w.Name) == "" {
		return invalid("template name is required")
	}
	return validateExercises(w.Exercises)
}

type BodyWeight struct {
	ID        string    `json:"id"`
	Date      time.Time `json:"date,omitzero"`
	WeightKg  float64   `json:"weightKg"`
	CreatedAt time.Time `json:"createdAt,omitzero"`
	UpdatedAt time.Time `json:"updatedAt,omitzero"`
}

func (b BodyWeight) Validate() error {
	if b.WeightKg <= 0 {
		return invalid("weight must be positive")
	}
	if b.Date.IsZero() {
		return invalid("weight date is required")
	}
	return nil
}

// AuthToken holds credentials for one external service, keyed by Service.
type AuthToken struct {
	Service      string    `json:"service"`
	AccessToken  string    `json:"accessToken"`
	RefreshToken string    `json:"refreshToken,omitempty"`
	ExpiresAt    time.Time `json:"expiresAt,omitzero"`
	UpdatedAt    time.Time `json:"updatedAt,omitzero"`
}

func (a AuthToken) Validate() error {
	if strings.TrimSpace(a.Service) == "" {
		return invalid("token service is required")
	}
	if a.AccessToken == "" {
		return invalid("access token is required")
	}
	return nil
}

// Expired reports whether the token has an expiry at or before now.
func (a AuthToken) Expired(now time.Time) bool {
	return !a.ExpiresAt.IsZero() && !now.Before(a.ExpiresAt)
}

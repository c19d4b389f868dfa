package models

import (
	"time"
)

type ReflectionType string

const (
	MicroblogReflection ReflectionType = "microblog"
	StoryReflection     ReflectionType = "story"
)

// Valid reports whether t is a known reflection type.
func (t ReflectionType) Valid() bool {
	return t == MicroblogReflection || t == StoryReflection
}

type Reflection struct {
	ID        int64          `json:"id"`
	Title     string         `json:"title"`
	Content   string         `json:"content"`
	Type      ReflectionType `json:"type"`
	Published bool           `json:"published"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// ReflectionPatch carries a partial update; nil fields are left unchanged.
type ReflectionPatch struct {
	ID        int64           `json:"id"`
	Title     *string         `json:"title,omitempty"`
	Content   *string         `json:"content,omitempty"`
	Type      *ReflectionType `json:"type,omitempty"`
	Published *bool           `json:"published,omitempty"`
}

// Apply copies the set fields of p onto r.
func (p *ReflectionPatch) Apply(r *Reflection) {
	if p.Title != nil {
		r.Title = *p.Title
	}
	if p.Content != nil {
		r.Content = *p.Content
	}
	if p.Type != nil {
		r.Type = *p.Type
	}
	if p.Published != nil {
		r.Published = *p.Published
	}
}

// Package models defines the records persisted by the store and exchanged
// by the services: projects, media metadata, thumbnails, settings, books and
// the whole-database snapshot.
package models

import (
	"encoding/json"
	"time"
)

// Project is a named snapshot of the workspace state.
type Project struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Author    string         `json:"author"`
	Payload   ProjectPayload `json:"payload"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

// MediaFileRef describes one media file placed in a project. Only metadata
// is kept; the binary content lives outside the store.
type MediaFileRef struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Type         string    `json:"type"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"lastModified"`
	URL          string    `json:"url,omitempty"`
	Thumbnail    string    `json:"thumbnail,omitempty"`
}

// ProjectPayload is the opaque workspace state of a project. The store never
// interprets it. Keys not modelled here are kept in Extra so a payload
// written by a newer client survives a load and re-save.
type ProjectPayload struct {
	MediaFiles    []MediaFileRef             `json:"mediaFiles"`
	GridSlots     json.RawMessage            `json:"gridSlots,omitempty"`
	FreeGridItems json.RawMessage            `json:"freeGridItems,omitempty"`
	Books         json.RawMessage            `json:"books,omitempty"`
	Shapes        json.RawMessage            `json:"shapes,omitempty"`
	Paths         json.RawMessage            `json:"paths,omitempty"`
	Texts         json.RawMessage            `json:"texts,omitempty"`
	Extra         map[string]json.RawMessage `json:"-"`
}

var payloadKeys = map[string]struct{}{
	"mediaFiles": {}, "gridSlots": {}, "freeGridItems": {}, "books": {},
	"shapes": {}, "paths": {}, "texts": {},
}

type payloadAlias ProjectPayload

// MarshalJSON writes the modelled fields and merges Extra into the same
// object. Modelled fields win over Extra keys of the same name.
func (p ProjectPayload) MarshalJSON() ([]byte, error) {
	if p.MediaFiles == nil {
		p.MediaFiles = []MediaFileRef{}
	}
	base, err := json.Marshal(payloadAlias(p))
	if err != nil {
		return nil, err
	}
	if len(p.Extra) == 0 {
		return base, nil
	}

	merged := make(map[string]json.RawMessage, len(p.Extra)+len(payloadKeys))
	for k, v := range p.Extra {
		merged[k] = v
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(base, &fields); err != nil {
		return nil, err
	}
	for k, v := range fields {
		merged[k] = v
	}
	return json.Marshal(merged)
}

// UnmarshalJSON fills the modelled fields and collects every other key into
// Extra.
func (p *ProjectPayload) UnmarshalJSON(data []byte) error {
	var alias payloadAlias
	if err := json.Unmarshal(data, &alias); err != nil {
		return err
	}
	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return err
	}
	for k, v := range all {
		if _, known := payloadKeys[k]; known {
			continue
		}
		if alias.Extra == nil {
			alias.Extra = make(map[string]json.RawMessage)
		}
		alias.Extra[k] = v
	}
	*p = ProjectPayload(alias)
	return nil
}

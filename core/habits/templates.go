package habits

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/jrazmi/habitsync/core/kvstore"
	"github.com/jrazmi/habitsync/core/model"
	"github.com/jrazmi/habitsync/sdk/validation"
	"gopkg.in/yaml.v3"
)

// Templates returns the stored active templates, or none when storage is
// empty or unreadable.
func (s *Scheduler) Templates(ctx context.Context) []model.ActiveTemplate {
	return kvstore.Load(ctx, s.store, s.store.Keys().Templates, []model.ActiveTemplate{})
}

// SaveTemplates replaces the stored templates after validating each one.
func (s *Scheduler) SaveTemplates(ctx context.Context, templates []model.ActiveTemplate) error {
	for _, t := range templates {
		if err := t.Validate(); err != nil {
			return fmt.Errorf("template %q: %w", t.TemplateID, err)
		}
	}
	if !kvstore.Save(ctx, s.store, s.store.Keys().Templates, templates) {
		return model.StorageError("save templates", kvstore.ErrWriteFailed)
	}
	return nil
}

// ImportTemplates merges incoming into the stored set. Templates with a
// matching id are replaced in place; new ones are appended. It returns the
// number of templates written.
func (s *Scheduler) ImportTemplates(ctx context.Context, incoming []model.ActiveTemplate) (int, error) {
	current := s.Templates(ctx)
	index := make(map[string]int, len(current))
	for i, t := range current {
		index[t.TemplateID] = i
	}
	for _, t := range incoming {
		if i, ok := index[t.TemplateID]; ok {
			current[i] = t
			continue
		}
		index[t.TemplateID] = len(current)
		current = append(current, t)
	}
	if err := s.SaveTemplates(ctx, current); err != nil {
		return 0, err
	}
	return len(incoming), nil
}

type templateFile struct {
	Templates []templateDoc `yaml:"templates"`
}

type templateDoc struct {
	Name                 string `yaml:"name"`
	model.ActiveTemplate `yaml:",inline"`
}

// ParseTemplatesYAML reads templates from a document of the form
//
//	templates:
//	  - name: Morning
//	    activeDays: [Monday, Wednesday]
//	    habits:
//	      - name: Meditate
//	        metrics: {type: timer, target: 600}
//
// Missing template and habit ids are derived from their names.
func ParseTemplatesYAML(r io.Reader) ([]model.ActiveTemplate, error) {
	var doc templateFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("decode templates: %w", err)
	}

	out := make([]model.ActiveTemplate, 0, len(doc.Templates))
	for i, d := range doc.Templates {
		t := d.ActiveTemplate
		if t.TemplateID == "" {
			t.TemplateID = validation.Slugify(d.Name)
		}
		for j := range t.Habits {
			if t.Habits[j].ID == "" {
				t.Habits[j].ID = validation.Slugify(t.Habits[j].Name)
			}
		}
		if err := t.Validate(); err != nil {
			return nil, fmt.Errorf("template %d: %w", i, err)
		}
		out = append(out, t)
	}
	return out, nil
}

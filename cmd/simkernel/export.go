package main

import (
	"fmt"

	"github.com/expworld/simkernel/internal/component"
	"github.com/expworld/simkernel/internal/core/ecs"
	"github.com/expworld/simkernel/internal/stage"
	"github.com/expworld/simkernel/internal/world"
)

// buildStage lays out every entity with a Position as an Xform under /world
// with a Sphere child. Labelled entities carry the label as a comment.
func buildStage(w *world.World, ids *component.IDs, path string) (*stage.Stage, int, error) {
	st := stage.CreateStage(path)
	st.SetDoc(fmt.Sprintf("world %s at tick %d\n", w.ID(), w.Tick()))
	if _, err := st.DefinePrim("/world", "Xform"); err != nil {
		return nil, 0, err
	}

	q, err := w.Query([]ecs.TypeID{ids.Position}, nil)
	if err != nil {
		return nil, 0, err
	}
	n := 0
	for r := range q.Iterate() {
		positions, err := ecs.Column[component.Position](r, ids.Position)
		if err != nil {
			return nil, n, err
		}
		var labels []component.Label
		if r.Archetype().Has(ids.Label) {
			if labels, err = ecs.Column[component.Label](r, ids.Label); err != nil {
				return nil, n, err
			}
		}
		for i, h := range r.Entities() {
			xf, err := st.DefinePrim(fmt.Sprintf("/world/e%d_%d", h.Index, h.Generation), "Xform")
			if err != nil {
				return nil, n, err
			}
			xf.SetTranslate(float64(positions[i].X), float64(positions[i].Y), 0)
			body, err := st.DefinePrim(xf.Path()+"/body", "Sphere")
			if err != nil {
				return nil, n, err
			}
			if labels != nil {
				body.SetMetadata("comment", labels[i].Name)
			}
			n++
		}
	}
	return st, n, nil
}

func exportStage(w *world.World, ids *component.IDs, path string) (int, error) {
	st, n, err := buildStage(w, ids, path)
	if err != nil {
		return 0, err
	}
	return n, st.Save()
}

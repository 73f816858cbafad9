package records

import "github.com/starford/storybundle/internal/models"

// ParseProjects converts project table rows into project entries, in table order.
func ParseProjects(recs []Record) []models.Project {
	var out []models.Project
	for _, rec := range recs {
		r := rec.Row
		storyID := r.Get("story_id")
		if skipKey(storyID) || skipKey(r.Get("order")) {
			continue
		}
		order, ok := parseInt(r.Get("order"))
		if !ok {
			continue
		}
		title := r.Get("title")
		if title == "" {
			continue
		}
		out = append(out, models.Project{
			Order:    order,
			StoryID:  storyID,
			Title:    title,
			Subtitle: r.Get("subtitle"),
			Byline:   r.Get("byline"),
		})
	}
	return out
}

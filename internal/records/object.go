package records

import "github.com/starford/storybundle/internal/models"

var objectFields = map[string]func(*models.Object, string){
	"title":       func(o *models.Object, v string) { o.Title = v },
	"description": func(o *models.Object, v string) { o.Description = v },
	"source_url":  func(o *models.Object, v string) { o.SourceURL = v },
	"creator":     func(o *models.Object, v string) { o.Creator = v },
	"period":      func(o *models.Object, v string) { o.Period = v },
	"medium":      func(o *models.Object, v string) { o.Medium = v },
	"dimensions":  func(o *models.Object, v string) { o.Dimensions = v },
	"location":    func(o *models.Object, v string) { o.Location = v },
	"credit":      func(o *models.Object, v string) { o.Credit = v },
	"thumbnail":   func(o *models.Object, v string) { o.Thumbnail = v },
	"year":        func(o *models.Object, v string) { o.Year = v },
	"object_type": func(o *models.Object, v string) { o.ObjectType = v },
	"subjects":    func(o *models.Object, v string) { o.Subjects = v },
	"featured":    func(o *models.Object, v string) { o.Featured = v },
	"source":      func(o *models.Object, v string) { o.Source = v },
}

// ParseObjects converts object table rows into object records, in table order.
// Only non-empty optional fields are set.
func ParseObjects(recs []Record) []models.Object {
	var out []models.Object
	for _, rec := range recs {
		id := rec.Row.Get("object_id")
		if skipKey(id) {
			continue
		}
		obj := models.Object{ObjectID: id}
		for field, set := range objectFields {
			if v := rec.Row.Get(field); v != "" {
				set(&obj, v)
			}
		}
		out = append(out, obj)
	}
	return out
}

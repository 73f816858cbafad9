package bundle

import "path"

// Layout names the tables and directories inside one language directory.
type Layout struct {
	ProjectTable  string
	ObjectTable   string
	GlossaryTable string
	GlossaryDir   string
	StoriesDir    string
	BundleFile    string
}

// DefaultLayout returns the conventional file names.
func DefaultLayout() Layout {
	return Layout{
		ProjectTable:  "project.csv",
		ObjectTable:   "objects.csv",
		GlossaryTable: "glossary.csv",
		GlossaryDir:   "texts/glossary",
		StoriesDir:    "texts/stories",
		BundleFile:    "bundle.json",
	}
}

// StoryTable is the step table of a story.
func (l Layout) StoryTable(storyID string) string { return storyID + ".csv" }

// VersionDir is the source directory of a version below the demos directory.
func VersionDir(demosDir, version string) string {
	return path.Join(demosDir, "v"+version)
}

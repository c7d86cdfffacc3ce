package optimizer

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Category maps a taxonomy key to an ordered list of related role phrases.
// Order matters: earlier phrases win length ties during optimization.
type Category struct {
	Key     string   `yaml:"key"`
	Phrases []string `yaml:"phrases"`
}

// Taxonomy is the curated category set plus the abbreviation table.
type Taxonomy struct {
	Categories    []Category        `yaml:"categories"`
	Abbreviations map[string]string `yaml:"abbreviations"`
}

// defaultTaxonomy is the built-in curated set. Keys and phrases are all
// lowercase; matching happens on lowercased input.
var defaultTaxonomy = Taxonomy{
	Categories: []Category{
		{Key: "frontend", Phrases: []string{
			"frontend developer",
			"frontend engineer",
			"front end developer",
			"senior frontend developer",
			"react developer",
			"ui developer",
		}},
		{Key: "backend", Phrases: []string{
			"backend developer",
			"backend engineer",
			"back end developer",
			"senior backend engineer",
			"api developer",
		}},
		{Key: "fullstack", Phrases: []string{
			"full stack developer",
			"fullstack engineer",
			"full stack engineer",
			"senior full stack developer",
		}},
		{Key: "swe", Phrases: []string{
			"software engineer",
			"software developer",
			"senior software engineer",
			"staff software engineer",
		}},
		{Key: "mobile", Phrases: []string{
			"mobile developer",
			"ios developer",
			"android developer",
			"mobile engineer",
		}},
		{Key: "devops", Phrases: []string{
			"devops engineer",
			"site reliability engineer",
			"platform engineer",
			"infrastructure engineer",
			"cloud engineer",
		}},
		{Key: "data", Phrases: []string{
			"data engineer",
			"data scientist",
			"data analyst",
			"machine learning engineer",
			"analytics engineer",
		}},
		{Key: "qa", Phrases: []string{
			"qa engineer",
			"quality assurance engineer",
			"test engineer",
			"automation engineer",
		}},
		{Key: "security", Phrases: []string{
			"security engineer",
			"application security engineer",
			"security analyst",
		}},
		{Key: "product", Phrases: []string{
			"product manager",
			"senior product manager",
			"technical product manager",
			"product owner",
		}},
		{Key: "design", Phrases: []string{
			"product designer",
			"ux designer",
			"ui designer",
			"ux researcher",
		}},
	},
	Abbreviations: map[string]string{
		"swe":   "software engineer",
		"sre":   "site reliability engineer",
		"dev":   "developer",
		"eng":   "engineer",
		"engr":  "engineer",
		"fe":    "frontend",
		"be":    "backend",
		"qa":    "quality assurance",
		"ml":    "machine learning",
		"pm":    "product manager",
		"mgr":   "manager",
		"sr":    "senior",
		"jr":    "junior",
		"admin": "administrator",
	},
}

// LoadTaxonomy reads a taxonomy override file. Categories and abbreviations
// from the file are appended to (and, for duplicate abbreviation keys,
// override) the built-in set.
func LoadTaxonomy(path string) (Taxonomy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Taxonomy{}, eris.Wrapf(err, "optimizer: read taxonomy %s", path)
	}

	var override Taxonomy
	if err := yaml.Unmarshal(data, &override); err != nil {
		return Taxonomy{}, eris.Wrapf(err, "optimizer: parse taxonomy %s", path)
	}

	merged := Taxonomy{
		Categories:    append(append([]Category{}, defaultTaxonomy.Categories...), override.Categories...),
		Abbreviations: make(map[string]string, len(defaultTaxonomy.Abbreviations)+len(override.Abbreviations)),
	}
	for k, v := range defaultTaxonomy.Abbreviations {
		merged.Abbreviations[k] = v
	}
	for k, v := range override.Abbreviations {
		merged.Abbreviations[k] = v
	}
	return merged, nil
}

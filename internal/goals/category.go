// Package goals implements SMART-goal creation: transforming a user's
// stated goal into a first-person present-tense affirmation, classifying
// it into a category, and generating starter milestones. Grounded on
// original_source/src/tools/goals.rs.
package goals

import "strings"

// Category classifies a goal for milestone generation.
type Category string

const (
	CategoryCareer        Category = "career"
	CategoryFinance       Category = "finance"
	CategoryHealth        Category = "health"
	CategoryRelationships Category = "relationships"
	CategoryPersonal      Category = "personal"
	CategoryEducation     Category = "education"
	CategoryOther         Category = "other"
)

// ParseCategory recognizes English and Russian aliases for each category,
// falling back to CategoryOther for anything unrecognized.
func ParseCategory(s string) Category {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "career", "работа", "карьера":
		return CategoryCareer
	case "finance", "money", "финансы", "деньги":
		return CategoryFinance
	case "health", "fitness", "здоровье", "спорт":
		return CategoryHealth
	case "relationships", "family", "отношения", "семья":
		return CategoryRelationships
	case "personal", "личное", "саморазвитие":
		return CategoryPersonal
	case "education", "learning", "обучение", "образование":
		return CategoryEducation
	default:
		return CategoryOther
	}
}

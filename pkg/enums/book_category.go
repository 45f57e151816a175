package enums

import "fmt"

// BookCategory is the fixed set of shelving categories for catalog entries.
type BookCategory string

const (
	BookCategoryStory       BookCategory = "Story"
	BookCategoryEducation   BookCategory = "Education"
	BookCategoryExploring   BookCategory = "Exploring"
	BookCategoryScience     BookCategory = "Science"
	BookCategoryHistory     BookCategory = "History"
	BookCategoryNovel       BookCategory = "Novel"
	BookCategoryPoetry      BookCategory = "Poetry"
	BookCategoryComics      BookCategory = "Comics"
	BookCategoryTechnology  BookCategory = "Technology"
	BookCategoryTravel      BookCategory = "Travel"
	BookCategoryArt         BookCategory = "Art"
	BookCategoryBiography   BookCategory = "Biography"
	BookCategoryFantasy     BookCategory = "Fantasy"
	BookCategoryPhilosophy  BookCategory = "Philosophy"
	BookCategoryEngineering BookCategory = "Engineering"
	BookCategoryOther       BookCategory = "Other"
)

var validBookCategories = []BookCategory{
	BookCategoryStory,
	BookCategoryEducation,
	BookCategoryExploring,
	BookCategoryScience,
	BookCategoryHistory,
	BookCategoryNovel,
	BookCategoryPoetry,
	BookCategoryComics,
	BookCategoryTechnology,
	BookCategoryTravel,
	BookCategoryArt,
	BookCategoryBiography,
	BookCategoryFantasy,
	BookCategoryPhilosophy,
	BookCategoryEngineering,
	BookCategoryOther,
}

// String implements fmt.Stringer.
func (c BookCategory) String() string {
	return string(c)
}

func (c BookCategory) IsValid() bool {
	for _, candidate := range validBookCategories {
		if candidate == c {
			return true
		}
	}
	return false
}

// BookCategories returns the literal set in declaration order.
func BookCategories() []BookCategory {
	out := make([]BookCategory, len(validBookCategories))
	copy(out, validBookCategories)
	return out
}

// ParseBookCategory converts raw strings into BookCategory. Matching is exact.
func ParseBookCategory(value string) (BookCategory, error) {
	for _, candidate := range validBookCategories {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid book category %q", value)
}

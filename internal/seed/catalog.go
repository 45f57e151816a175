package seed

import (
	"github.com/angelmondragon/library-backend/pkg/db/models"
	"github.com/angelmondragon/library-backend/pkg/enums"
)

// DefaultAccount is a bootstrap login created when its username is free.
type DefaultAccount struct {
	Username string
	Password string
	Role     enums.Role
}

// DefaultAccounts are the demo logins shipped with a fresh install.
var DefaultAccounts = []DefaultAccount{
	{Username: "admin", Password: "admin123", Role: enums.RoleAdmin},
	{Username: "student", Password: "student123", Role: enums.RoleStudent},
}

// SampleBooks returns a fresh copy of the starter catalog.
func SampleBooks() []models.Book {
	return []models.Book{
		{Title: "The Great Adventure", Author: "John Smith", Category: enums.BookCategoryStory, Copies: 3,
			Description: "An adventurous tale across continents.", StackNumber: "A1", ShelfNumber: "S1-777"},
		{Title: "Physics Fundamentals", Author: "Dr. Sarah Wilson", Category: enums.BookCategoryEducation, Copies: 5,
			Description: "A concise introduction to classical physics.", StackNumber: "E2", ShelfNumber: "S1-973"},
		{Title: "Journey to the Unknown", Author: "Mike Explorer", Category: enums.BookCategoryExploring, Copies: 2,
			Description: "Travel stories and exploration notes.", StackNumber: "B3", ShelfNumber: "S2-911"},
		{Title: "Quantum Mechanics", Author: "Prof. Einstein Jr", Category: enums.BookCategoryScience, Copies: 4,
			Description: "Advanced concepts in quantum theory.", StackNumber: "S5", ShelfNumber: "S3-000"},
		{Title: "Ancient Civilizations", Author: "Historical Society", Category: enums.BookCategoryHistory, Copies: 3,
			Description: "A study of early human civilizations.", StackNumber: "H1", ShelfNumber: "S4-663"},
		{Title: "Love in Paris", Author: "Romance Writer", Category: enums.BookCategoryNovel, Copies: 6,
			Description: "A romantic novel set in Paris.", StackNumber: "N2", ShelfNumber: "S1-664"},
		{Title: "Poems of the Heart", Author: "Poet Laureate", Category: enums.BookCategoryPoetry, Copies: 2,
			Description: "A collection of love poems.", StackNumber: "P1", ShelfNumber: "S2-666"},
		{Title: "Super Hero Adventures", Author: "Comic Creator", Category: enums.BookCategoryComics, Copies: 4,
			Description: "Comic adventures of modern heroes.", StackNumber: "C2", ShelfNumber: "S3-098"},
		{Title: "AI and the Future", Author: "Tech Guru", Category: enums.BookCategoryTechnology, Copies: 3,
			Description: "An overview of AI progress and implications.", StackNumber: "T1", ShelfNumber: "S1-811"},
		{Title: "Around the World", Author: "Travel Expert", Category: enums.BookCategoryTravel, Copies: 2,
			Description: "Travel guide to top destinations.", StackNumber: "TR1", ShelfNumber: "S2-754"},
		{Title: "Renaissance Art", Author: "Art Historian", Category: enums.BookCategoryArt, Copies: 3,
			Description: "Exploration of Renaissance masterpieces.", StackNumber: "AR1", ShelfNumber: "S4-123"},
		{Title: "Life of Gandhi", Author: "Biographer", Category: enums.BookCategoryBiography, Copies: 2,
			Description: "Biography of Mahatma Gandhi.", StackNumber: "BIO1", ShelfNumber: "S3-654"},
		{Title: "Dragons and Magic", Author: "Fantasy Author", Category: enums.BookCategoryFantasy, Copies: 4,
			Description: "High fantasy with dragons and wizards.", StackNumber: "F1", ShelfNumber: "S3-100"},
		{Title: "Philosophy 101", Author: "Deep Thinker", Category: enums.BookCategoryPhilosophy, Copies: 2,
			Description: "Introductory philosophy concepts.", StackNumber: "PH1", ShelfNumber: "S4-200"},
		{Title: "Random Thoughts", Author: "Various Authors", Category: enums.BookCategoryOther, Copies: 3,
			Description: "Assorted essays and short pieces.", StackNumber: "O1", ShelfNumber: "S2-345"},
	}
}

package services

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"spendtrack/internal/core"
	"spendtrack/internal/store"
)

var titleCaser = cases.Title(language.Und)

// CategoryService owns the category registry: explicit creation, rename
// with uniqueness enforcement, and cascading delete.
type CategoryService struct {
	repo store.Repository
}

func NewCategoryService(repo store.Repository) *CategoryService {
	return &CategoryService{repo: repo}
}

func validateCategoryName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", &core.ValidationError{Field: "name", Reason: core.ErrEmptyCategory.Error()}
	}
	// The limit counts characters, not bytes.
	if utf8.RuneCountInString(name) > core.MaxCategoryNameLen {
		return "", &core.ValidationError{
			Field:  "name",
			Reason: fmt.Sprintf("name must be at most %d characters", core.MaxCategoryNameLen),
		}
	}
	return name, nil
}

// Add creates a category from an explicit user request. Unlike the
// get-or-create path used by ledger writes, explicit names are title-cased
// before storage.
func (s *CategoryService) Add(ctx context.Context, userID int64, name string) (core.Category, error) {
	name, err := validateCategoryName(name)
	if err != nil {
		return core.Category{}, err
	}
	return s.repo.GetOrCreateCategory(ctx, userID, titleCaser.String(name))
}

// GetOrCreate resolves a category by exact name, creating it when absent.
// The name is stored as given.
func (s *CategoryService) GetOrCreate(ctx context.Context, userID int64, name string) (core.Category, error) {
	name, err := validateCategoryName(name)
	if err != nil {
		return core.Category{}, err
	}
	return s.repo.GetOrCreateCategory(ctx, userID, name)
}

func (s *CategoryService) List(ctx context.Context, userID int64) ([]core.Category, error) {
	return s.repo.ListCategories(ctx, userID)
}

// Rename changes a category's name. The uniqueness check is
// case-insensitive and runs in the same unit of work as the rename.
func (s *CategoryService) Rename(ctx context.Context, userID, id int64, newName string) (core.Category, error) {
	newName, err := validateCategoryName(newName)
	if err != nil {
		return core.Category{}, err
	}

	err = s.repo.WithinTx(ctx, func(st store.Store) error {
		if _, err := st.GetCategory(ctx, userID, id); err != nil {
			return err
		}
		taken, err := st.CategoryNameTaken(ctx, userID, newName, id)
		if err != nil {
			return err
		}
		if taken {
			return &core.ConflictError{Name: newName}
		}
		return st.RenameCategory(ctx, userID, id, newName)
	})
	if err != nil {
		return core.Category{}, err
	}
	return s.repo.GetCategory(ctx, userID, id)
}

// Delete removes a category together with every transaction in it. The
// count of removed transactions is returned for the confirmation message.
func (s *CategoryService) Delete(ctx context.Context, userID, id int64) (int64, error) {
	var removed int64
	err := s.repo.WithinTx(ctx, func(st store.Store) error {
		if _, err := st.GetCategory(ctx, userID, id); err != nil {
			return err
		}
		var err error
		removed, err = st.DeleteTransactionsByCategory(ctx, userID, id)
		if err != nil {
			return err
		}
		return st.DeleteCategory(ctx, userID, id)
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}

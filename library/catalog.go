package library

import (
	"fmt"
	"iter"
	"strings"
)

// Catalog holds book records partitioned by category. The JSON field names
// are the persisted document's top-level "books" keys.
type Catalog struct {
	StudentBooks []*Book `json:"student_books"`
	TeacherBooks []*Book `json:"teacher_books"`
}

func (c *Catalog) partition(cat Category) *[]*Book {
	if cat == CategoryTeacher {
		return &c.TeacherBooks
	}
	return &c.StudentBooks
}

// CategoriesFor maps a role to the categories it may see. Admins and the
// "all" style listings see the union of both partitions.
func CategoriesFor(role Role) []Category {
	switch role {
	case RoleTeacher:
		return []Category{CategoryTeacher}
	case RoleAdmin:
		return []Category{CategoryStudent, CategoryTeacher}
	default:
		return []Category{CategoryStudent}
	}
}

// AddBook validates spec, sets available to the full copy count, and appends
// it to the category partition. The id is normalized to uppercase and must be
// unique across both categories.
func (c *Catalog) AddBook(cat Category, spec *Book) (*Book, error) {
	spec.ID = strings.ToUpper(strings.TrimSpace(spec.ID))
	if spec.ID == "" || spec.Title == "" || spec.Author == "" {
		return nil, fmt.Errorf("add book: id, title and author are required: %w", ErrInvalidInput)
	}
	if spec.Copies < 1 {
		return nil, fmt.Errorf("add book %q: copies must be at least 1: %w", spec.ID, ErrInvalidInput)
	}
	if b, _ := c.Find(spec.ID); b != nil {
		return nil, fmt.Errorf("book id %q: %w", spec.ID, ErrDuplicateKey)
	}

	spec.Available = spec.Copies
	part := c.partition(cat)
	*part = append(*part, spec)
	return spec, nil
}

// Books yields the books of the given categories in partition order. The
// sequence is lazy and restartable; ranging over it twice walks the catalog
// twice.
func (c *Catalog) Books(cats ...Category) iter.Seq[*Book] {
	return func(yield func(*Book) bool) {
		for _, cat := range cats {
			for _, b := range *c.partition(cat) {
				if !yield(b) {
					return
				}
			}
		}
	}
}

// Search yields books whose title or author contains query, case-insensitive,
// restricted to the given categories. An empty query matches everything.
func (c *Catalog) Search(query string, cats ...Category) iter.Seq[*Book] {
	q := strings.ToLower(strings.TrimSpace(query))
	return func(yield func(*Book) bool) {
		for b := range c.Books(cats...) {
			if q != "" &&
				!strings.Contains(strings.ToLower(b.Title), q) &&
				!strings.Contains(strings.ToLower(b.Author), q) {
				continue
			}
			if !yield(b) {
				return
			}
		}
	}
}

// Find locates a book by id across both categories.
func (c *Catalog) Find(id string) (*Book, Category) {
	for _, b := range c.StudentBooks {
		if b.ID == id {
			return b, CategoryStudent
		}
	}
	for _, b := range c.TeacherBooks {
		if b.ID == id {
			return b, CategoryTeacher
		}
	}
	return nil, ""
}

// remove deletes the book from whichever category list contains it. The
// open-transaction guard lives in the engine.
func (c *Catalog) remove(id string) error {
	for _, part := range []*[]*Book{&c.StudentBooks, &c.TeacherBooks} {
		for idx, b := range *part {
			if b.ID == id {
				*part = append((*part)[:idx], (*part)[idx+1:]...)
				return nil
			}
		}
	}
	return fmt.Errorf("delete book %q: %w", id, ErrNotFound)
}

// adjustAvailable moves a book's available count by delta. Only the
// circulation engine calls this; availability never leaves [0, copies].
func (c *Catalog) adjustAvailable(id string, delta int) error {
	b, _ := c.Find(id)
	if b == nil {
		return fmt.Errorf("adjust book %q: %w", id, ErrNotFound)
	}
	next := b.Available + delta
	if next < 0 || next > b.Copies {
		return fmt.Errorf("adjust book %q: available %d out of range [0,%d]", id, next, b.Copies)
	}
	b.Available = next
	return nil
}

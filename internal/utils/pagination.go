package utils

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
)

const (
	defaultLimit = 20
	maxLimit     = 100
)

// Pagination holds pagination parameters.
type Pagination struct {
	Page   int
	Limit  int
	Offset int
}

// NewPagination normalizes page and limit: page starts at 1, limit falls back
// to the default when non-positive and is capped.
func NewPagination(page, limit int) Pagination {
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	if page <= 0 {
		page = 1
	}

	return Pagination{
		Page:   page,
		Limit:  limit,
		Offset: (page - 1) * limit,
	}
}

// ParsePagination reads page and limit query params with sane defaults.
func ParsePagination(c *fiber.Ctx) Pagination {
	return NewPagination(
		parseInt(c.Query("page", "1"), 1),
		parseInt(c.Query("limit", strconv.Itoa(defaultLimit)), defaultLimit),
	)
}

// Pages is the number of pages needed for total items.
func (p Pagination) Pages(total int64) int64 {
	if total == 0 {
		return 0
	}
	return (total + int64(p.Limit) - 1) / int64(p.Limit)
}

func parseInt(value string, fallback int) int {
	if parsed, err := strconv.Atoi(value); err == nil {
		return parsed
	}
	return fallback
}

// Package policy decides who may read and edit catalogs. It performs no I/O:
// callers hand it snapshots and get back decisions.
//
// Every identifier is a uuid.UUID obtained through ParseID, so two spellings of
// the same id (upper case, braces, urn prefix) compare equal and nothing else does.
package policy

import (
	"strings"

	"github.com/google/uuid"
)

// Role is the coarse authority attached to a user account.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// Subject is the caller a decision is made for.
type Subject struct {
	UserID uuid.UUID
	Role   Role
}

// IsAdmin reports whether the subject carries the admin role.
func (s Subject) IsAdmin() bool {
	return s.Role == RoleAdmin
}

// Principal is a user as seen by recipient selection.
type Principal struct {
	ID       uuid.UUID
	Role     Role
	IsActive bool
}

// CatalogView is the part of a catalog that visibility depends on.
type CatalogView struct {
	ID             uuid.UUID
	OwnerID        uuid.UUID
	IsPublic       bool
	AllowedUserIDs []uuid.UUID
}

// ParseID canonicalizes a textual identifier. The nil UUID is rejected.
func ParseID(raw string) (uuid.UUID, bool) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil || id == uuid.Nil {
		return uuid.Nil, false
	}
	return id, true
}

// ParseIDs canonicalizes and deduplicates ids, preserving first-seen order.
// Entries that do not parse are returned separately.
func ParseIDs(raw []string) (ids []uuid.UUID, invalid []string) {
	seen := make(map[uuid.UUID]struct{}, len(raw))
	ids = make([]uuid.UUID, 0, len(raw))
	for _, r := range raw {
		id, ok := ParseID(r)
		if !ok {
			invalid = append(invalid, r)
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids, invalid
}

// DedupeIDs drops repeats and nil ids, preserving first-seen order.
func DedupeIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id == uuid.Nil {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func contains(ids []uuid.UUID, id uuid.UUID) bool {
	if id == uuid.Nil {
		return false
	}
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}

// CanRead reports whether s may see the catalog and its products.
func CanRead(c CatalogView, s Subject) bool {
	if s.IsAdmin() {
		return true
	}
	if c.IsPublic {
		return true
	}
	if s.UserID == uuid.Nil {
		return false
	}
	if s.UserID == c.OwnerID {
		return true
	}
	return contains(c.AllowedUserIDs, s.UserID)
}

// CanEdit reports whether s may change the catalog. Read access alone is not enough.
func CanEdit(c CatalogView, s Subject) bool {
	if s.IsAdmin() {
		return true
	}
	return s.UserID != uuid.Nil && s.UserID == c.OwnerID
}

// ListAccessible keeps the items whose catalog s can read, in input order.
func ListAccessible[T any](items []T, view func(T) CatalogView, s Subject) []T {
	if s.IsAdmin() {
		return items
	}
	out := make([]T, 0, len(items))
	for _, item := range items {
		if CanRead(view(item), s) {
			out = append(out, item)
		}
	}
	return out
}

// RecipientsFor selects who is told about changes to a catalog: every active
// non-admin user for a public catalog, otherwise the active allow-listed users.
func RecipientsFor(c CatalogView, users []Principal) []Principal {
	allowed := make(map[uuid.UUID]struct{}, len(c.AllowedUserIDs))
	for _, id := range c.AllowedUserIDs {
		allowed[id] = struct{}{}
	}

	out := make([]Principal, 0)
	for _, u := range users {
		if !u.IsActive {
			continue
		}
		if c.IsPublic {
			if u.Role != RoleAdmin {
				out = append(out, u)
			}
			continue
		}
		if _, ok := allowed[u.ID]; ok {
			out = append(out, u)
		}
	}
	return out
}

// Package access decides which users may run privileged commands.
package access

import (
	"maps"
	"slices"
)

// Gate answers whether a user holds admin rights.
type Gate interface {
	IsAdmin(userID int64) bool
}

// AllowList is an immutable set of admin user ids.
type AllowList struct {
	ids map[int64]struct{}
}

// NewAllowList copies ids into a lookup set. Zero ids are ignored.
func NewAllowList(ids ...int64) *AllowList {
	set := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		if id == 0 {
			continue
		}
		set[id] = struct{}{}
	}
	return &AllowList{ids: set}
}

// IsAdmin reports membership; a nil list admits nobody.
func (a *AllowList) IsAdmin(userID int64) bool {
	if a == nil {
		return false
	}
	_, ok := a.ids[userID]
	return ok
}

// IDs returns the admin ids in ascending order.
func (a *AllowList) IDs() []int64 {
	if a == nil || len(a.ids) == 0 {
		return nil
	}
	return slices.Sorted(maps.Keys(a.ids))
}

// Len returns the number of admins.
func (a *AllowList) Len() int {
	if a == nil {
		return 0
	}
	return len(a.ids)
}

package handlers

import "belgian-housing-api/models"

const (
	DefaultLimit       = models.MaxMunicipalities
	MaxLimit           = models.MaxMunicipalities
	DefaultSearchLimit = 20
	MaxSearchLimit     = 100
)

type ListParams struct {
	Limit  int    `form:"limit" binding:"omitempty,min=1,max=581"`
	Offset int    `form:"offset" binding:"omitempty,min=0"`
	Sort   string `form:"sort" binding:"omitempty,oneof=code population"`
}

type SearchParams struct {
	Query string `form:"q"`
	Limit int    `form:"limit" binding:"omitempty,min=1,max=100"`
}

type ListResponse struct {
	Success bool                         `json:"success"`
	Data    []models.MunicipalitySummary `json:"data"`
	Total   int                          `json:"total"`
	Count   int                          `json:"count"`
	Limit   int                          `json:"limit"`
	Offset  int                          `json:"offset"`
	HasMore bool                         `json:"has_more"`
	Version uint64                       `json:"snapshot_version"`
}

// page cuts items to [offset, offset+limit).
func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return []T{}
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}

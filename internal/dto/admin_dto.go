package dto

import "textbook-rag-be/pkg/vectorindex"

type ReindexRequest struct {
	Dir      string `json:"dir"`
	Recreate bool   `json:"recreate"`
}

type ReindexResponse struct {
	Queued   bool   `json:"queued"`
	Dir      string `json:"dir"`
	Recreate bool   `json:"recreate"`
}

type CleanupRequest struct {
	Days int `json:"days" validate:"omitempty,min=1,max=3650"`
}

type CleanupResponse struct {
	Deleted int64 `json:"deleted"`
	Days    int   `json:"days"`
}

type IndexInfoResponse struct {
	vectorindex.CollectionInfo
	Backend string `json:"backend"`
}

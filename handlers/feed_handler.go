package handlers

import (
	"net/http"

	"kyoolAPI/services"
)

type FeedHandler struct {
	feedService *services.FeedService
}

func NewFeedHandler(feedService *services.FeedService) *FeedHandler {
	return &FeedHandler{
		feedService: feedService,
	}
}

// GET /api/v1/user/feed?limit=50
func (h *FeedHandler) GetFeed(w http.ResponseWriter, r *http.Request) {
	ctx, cancel, userID, ok := authedContext(w, r)
	if !ok {
		return
	}
	defer cancel()

	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid limit")
		return
	}

	items, err := h.feedService.GetFeed(ctx, userID, limit)
	if err != nil {
		respondWithServiceError(w, "GetFeed", err)
		return
	}

	respondWithJSON(w, http.StatusOK, items)
}

// internal/handlers/catalog.go
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/nyasabox/nyasabox-api/internal/i18n"
	"github.com/nyasabox/nyasabox-api/internal/services"
	"github.com/nyasabox/nyasabox-api/internal/utils"
)

type CatalogHandler struct {
	catalogService *services.CatalogService
}

func NewCatalogHandler(catalogService *services.CatalogService) *CatalogHandler {
	return &CatalogHandler{
		catalogService: catalogService,
	}
}

// GET /tracks
func (h *CatalogHandler) ListTracks(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	params := utils.GetPaginationParams(c)

	filter := services.TrackFilter{
		PaginationParams: params,
	}
	if albumID := c.Query("album_id"); albumID != "" {
		id, err := uuid.Parse(albumID)
		if err != nil {
			utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, "album_id"), nil)
			return
		}
		filter.AlbumID = &id
	}
	if uploaderID := c.Query("uploader_id"); uploaderID != "" {
		id, err := uuid.Parse(uploaderID)
		if err != nil {
			utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, "uploader_id"), nil)
			return
		}
		filter.UploaderID = &id
	}

	tracks, total, err := h.catalogService.ListTracks(filter)
	if err != nil {
		respondError(c, err, "track")
		return
	}

	utils.PaginatedResponse(c, utils.CreatePaginationResult(tracks, total, params))
}

// GET /tracks/:id
func (h *CatalogHandler) GetTrack(c *gin.Context) {
	trackID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	track, err := h.catalogService.GetTrack(trackID)
	if err != nil {
		respondError(c, err, "track")
		return
	}

	utils.SuccessResponse(c, gin.H{
		"track": track,
	})
}

// POST /tracks (multipart: audio + form fields)
func (h *CatalogHandler) CreateTrack(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	identity, ok := currentIdentity(c)
	if !ok {
		return
	}

	var req services.CreateTrackRequest
	if err := c.ShouldBind(&req); err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, "input"), err.Error())
		return
	}
	if validationErrors := utils.GetValidationErrors(utils.ValidateStruct(&req)); len(validationErrors) > 0 {
		utils.ValidationErrorResponse(c, validationErrors)
		return
	}
	if albumID := c.PostForm("album_id"); albumID != "" {
		id, err := uuid.Parse(albumID)
		if err != nil {
			utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, "album_id"), nil)
			return
		}
		req.AlbumID = &id
	}

	file, header, err := c.Request.FormFile("audio")
	if err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationRequired, "audio"), err.Error())
		return
	}
	defer file.Close()

	track, err := h.catalogService.CreateTrack(identity, &req, file, header)
	if err != nil {
		respondError(c, err, "track")
		return
	}

	utils.CreatedResponse(c, gin.H{
		"message": i18n.T(lang, i18n.KeyTrackCreated),
		"track":   track,
	})
}

// GET /albums
func (h *CatalogHandler) ListAlbums(c *gin.Context) {
	params := utils.GetPaginationParams(c)

	albums, total, err := h.catalogService.ListAlbums(params)
	if err != nil {
		respondError(c, err, "album")
		return
	}

	utils.PaginatedResponse(c, utils.CreatePaginationResult(albums, total, params))
}

// POST /albums
func (h *CatalogHandler) CreateAlbum(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	identity, ok := currentIdentity(c)
	if !ok {
		return
	}

	var req services.CreateAlbumRequest
	if !bindJSON(c, &req) {
		return
	}

	album, err := h.catalogService.CreateAlbum(identity, &req)
	if err != nil {
		respondError(c, err, "album")
		return
	}

	utils.CreatedResponse(c, gin.H{
		"message": i18n.T(lang, i18n.KeyAlbumCreated),
		"album":   album,
	})
}

// PUT /tracks/:id
func (h *CatalogHandler) UpdateTrack(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	identity, ok := currentIdentity(c)
	if !ok {
		return
	}
	trackID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req services.UpdateTrackRequest
	if !bindJSON(c, &req) {
		return
	}

	track, err := h.catalogService.UpdateTrack(identity, trackID, &req)
	if err != nil {
		respondError(c, err, "track")
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message": i18n.T(lang, i18n.KeyTrackUpdated),
		"track":   track,
	})
}

// DELETE /tracks/:id
func (h *CatalogHandler) DeleteTrack(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	identity, ok := currentIdentity(c)
	if !ok {
		return
	}
	trackID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	if err := h.catalogService.DeleteTrack(identity, trackID); err != nil {
		respondError(c, err, "track")
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message": i18n.T(lang, i18n.KeyTrackDeleted),
	})
}

// GET /tracks/:id/download redirects to the audio file.
func (h *CatalogHandler) DownloadTrack(c *gin.Context) {
	trackID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	url, err := h.catalogService.DownloadTrack(trackID)
	if err != nil {
		respondError(c, err, "track")
		return
	}

	c.Redirect(http.StatusFound, url)
}

// POST /tracks/:id/like toggles the caller's like.
func (h *CatalogHandler) LikeTrack(c *gin.Context) {
	identity, ok := currentIdentity(c)
	if !ok {
		return
	}
	trackID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	result, err := h.catalogService.ToggleLike(identity, trackID)
	if err != nil {
		respondError(c, err, "track")
		return
	}

	utils.SuccessResponse(c, result)
}

// GET /users/uploads
func (h *CatalogHandler) MyUploads(c *gin.Context) {
	identity, ok := currentIdentity(c)
	if !ok {
		return
	}

	summary, err := h.catalogService.MyUploads(identity)
	if err != nil {
		respondError(c, err, "track")
		return
	}

	utils.SuccessResponse(c, summary)
}

// GET /albums/:id
func (h *CatalogHandler) GetAlbum(c *gin.Context) {
	albumID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	album, err := h.catalogService.GetAlbum(albumID)
	if err != nil {
		respondError(c, err, "album")
		return
	}

	utils.SuccessResponse(c, gin.H{
		"album": album,
	})
}

// PUT /albums/:id
func (h *CatalogHandler) UpdateAlbum(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	identity, ok := currentIdentity(c)
	if !ok {
		return
	}
	albumID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req services.UpdateAlbumRequest
	if !bindJSON(c, &req) {
		return
	}

	album, err := h.catalogService.UpdateAlbum(identity, albumID, &req)
	if err != nil {
		respondError(c, err, "album")
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message": i18n.T(lang, i18n.KeyAlbumUpdated),
		"album":   album,
	})
}

// DELETE /albums/:id removes the album and its tracks.
func (h *CatalogHandler) DeleteAlbum(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	identity, ok := currentIdentity(c)
	if !ok {
		return
	}
	albumID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	if err := h.catalogService.DeleteAlbum(identity, albumID); err != nil {
		respondError(c, err, "album")
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message": i18n.T(lang, i18n.KeyAlbumDeleted),
	})
}

package api

import (
	"github.com/gofiber/fiber/v2"

	"askmydocs/loader"
	"askmydocs/types"
)

type FileHandler struct {
	files  loader.FileStorage
	loader *loader.Service
}

func NewFileHandler(files loader.FileStorage, svc *loader.Service) *FileHandler {
	return &FileHandler{
		files:  files,
		loader: svc,
	}
}

// HandleUpload stores one multipart upload and returns the id to
// ingest it under. Upload and ingestion are separate steps so a bad
// decode never loses the uploaded bytes.
func (h *FileHandler) HandleUpload(c *fiber.Ctx) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return ErrBadRequest()
	}

	file, err := fileHeader.Open()
	if err != nil {
		return err
	}
	defer file.Close()

	meta, err := h.files.Save(c.Context(), fileHeader.Filename, file)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(types.UploadResponse{
		FileID: meta.ID,
		Name:   meta.Name,
	})
}

// HandleIngest chunks and indexes the listed files. Per-file failures
// land in the summary; the call itself succeeds as long as the batch
// ran.
func (h *FileHandler) HandleIngest(c *fiber.Ctx) error {
	var params types.FilesParams
	if c.BodyParser(&params) != nil {
		return ErrBadRequest()
	}
	if errors := types.Validate(&params); len(errors) > 0 {
		return NewValidationError(errors)
	}

	summary, err := h.loader.Ingest(c.Context(), params.FileIDs)
	if err != nil {
		return err
	}
	return c.JSON(summary)
}

// HandleRemove drops every indexed chunk of the listed files.
func (h *FileHandler) HandleRemove(c *fiber.Ctx) error {
	var params types.FilesParams
	if c.BodyParser(&params) != nil {
		return ErrBadRequest()
	}
	if errors := types.Validate(&params); len(errors) > 0 {
		return NewValidationError(errors)
	}

	summary, err := h.loader.Remove(c.Context(), params.FileIDs)
	if err != nil {
		return err
	}
	return c.JSON(summary)
}

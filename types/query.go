package types

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

type Validater interface {
	Validate() map[string]string
}

func Validate(v Validater) map[string]string {
	return v.Validate()
}

type QueryParams struct {
	Query          string             `json:"query" validate:"required"`
	RecentMessages []ConversationTurn `json:"recent_messages" validate:"dive"`
	TopK           int                `json:"top_k" validate:"omitempty,gte=1"`
}

type FilesParams struct {
	FileIDs []string `json:"file_ids" validate:"required,min=1,dive,required"`
}

func (params *QueryParams) Validate() map[string]string {
	return validateStruct(params)
}

func (params *FilesParams) Validate() map[string]string {
	return validateStruct(params)
}

func validateStruct(v any) map[string]string {
	validate := validator.New()
	if err := validate.Struct(v); err != nil {
		errs := err.(validator.ValidationErrors)
		errors := make(map[string]string)
		for _, e := range errs {
			errors[e.Field()] = fmt.Sprintf("failed on '%s' tag", e.Tag())
		}
		return errors
	}
	return nil
}

// QueryResponse is the batch answer shape: the ranked context the
// answer was grounded on plus the generated text.
type QueryResponse struct {
	Results   []RetrievalResult `json:"results"`
	Answer    string            `json:"answer"`
	Timestamp time.Time         `json:"timestamp"`
}

type UploadResponse struct {
	FileID string `json:"file_id"`
	Name   string `json:"name"`
}

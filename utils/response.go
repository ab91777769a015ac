package utils

import (
	"encoding/json"
	"net/http"

	"venue-tickets-api/models"
)

func SendErrorResponse(w http.ResponseWriter, status int, message string) {
	SendErrorResponseWithData(w, status, message, nil)
}

// SendErrorResponseWithData is SendErrorResponse with a data payload, used
// when the client needs state alongside the error.
func SendErrorResponseWithData(w http.ResponseWriter, status int, message string, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(models.APIResponse{
		Status:  "error",
		Message: message,
		Data:    data,
	})
}

func SendSuccessResponse(w http.ResponseWriter, response models.APIResponse) {
	if response.Status == "" {
		response.Status = "success"
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(response)
}

package server

import (
	"encoding/json"
	"net/http"
)

func createResponse(success bool, data interface{}, errorMsg string) ResponseModel {
	response := ResponseModel{
		Success: success,
		Data:    data,
		Error:   errorMsg,
	}
	return response
}

func SendResponse(w http.ResponseWriter, success bool, data interface{}, errorMsg string) {
	SendResponseWithStatus(w, success, data, errorMsg, 0)
}

// SendResponseWithStatus writes a ResponseModel. A zero statusCode means 200
// on success and 400 otherwise.
func SendResponseWithStatus(w http.ResponseWriter, success bool, data interface{}, errorMsg string, statusCode int) {
	response := createResponse(success, data, errorMsg)
	w.Header().Set("Content-Type", "application/json")

	if statusCode == 0 {
		statusCode = http.StatusOK
		if !success {
			statusCode = http.StatusBadRequest
		}
	}
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, `{"success":false,"error":"Internal Server Error"}`, http.StatusInternalServerError)
	}
}
